package main

import (
	"strings"
	"testing"
	"time"

	"github.com/iburimskiy/sayyes/internal/notify"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

var t0 = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

func TestViewFirstSnapshotOnlySeeds(t *testing.T) {
	v := newView("abc")
	v.now = func() time.Time { return t0 }

	if evs := v.Observe(&tracking.Record{ID: "abc", Created: t0, LastUpdated: t0}); len(evs) != 0 {
		t.Fatalf("first snapshot produced %v", evs)
	}
	tail := v.tail(10)
	if len(tail) != 1 || !strings.Contains(tail[0], "watching abc") {
		t.Fatalf("tail = %q", tail)
	}
}

func TestViewLogsTransitions(t *testing.T) {
	v := newView("abc")
	rec := &tracking.Record{ID: "abc", Created: t0, LastUpdated: t0}
	v.Observe(rec)

	opened := t0.Add(time.Minute)
	rec = rec.Clone()
	rec.Opened = &opened
	evs := v.Observe(rec)
	if len(evs) != 1 || evs[0].Kind != notify.LinkOpened {
		t.Fatalf("open: %v", evs)
	}

	rec = rec.Clone()
	rec.EscapeCount = 3
	answered := t0.Add(2 * time.Minute)
	rec.Answered = &answered
	evs = v.Observe(rec)
	if len(evs) != 1 || evs[0].Kind != notify.Answered {
		t.Fatalf("answer: %v", evs)
	}

	// A repeated snapshot changes nothing.
	if evs := v.Observe(rec); len(evs) != 0 {
		t.Fatalf("duplicate snapshot produced %v", evs)
	}

	status := strings.Join(v.status(), "\n")
	if !strings.Contains(status, "escapes   3") {
		t.Fatalf("status = %s", status)
	}
	if got := v.tail(1); !strings.Contains(got[0], "They said YES!") {
		t.Fatalf("last line = %q", got)
	}
}

func TestViewAbsentRecordSeedsBaseline(t *testing.T) {
	v := newView("abc")
	if evs := v.Observe(nil); len(evs) != 0 {
		t.Fatalf("nil snapshot produced %v", evs)
	}
	if got := v.status(); len(got) != 1 {
		t.Fatalf("status before any record = %q", got)
	}

	opened := t0.Add(time.Minute)
	rec := &tracking.Record{ID: "abc", Created: t0, Opened: &opened, LastUpdated: opened}
	evs := v.Observe(rec)
	if len(evs) != 1 || evs[0].Kind != notify.LinkOpened {
		t.Fatalf("first record after nil: %v", evs)
	}
	if evs := v.Observe(rec.Clone()); len(evs) != 0 {
		t.Fatalf("repeated record produced %v", evs)
	}
}

func TestViewLogIsBounded(t *testing.T) {
	v := newView("abc")
	for i := 0; i < maxLog+50; i++ {
		v.add("x")
	}
	if len(v.log) != maxLog {
		t.Fatalf("log len = %d", len(v.log))
	}
}

func TestSessionID(t *testing.T) {
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"abc-123", "abc-123", false},
		{"https://sayyes.example/?to=Sam&sid=xyz", "xyz", false},
		{"to=Sam&sid=q1", "q1", false},
		{"https://sayyes.example/?to=Sam", "", true},
		{"  ", "", true},
	}
	for _, tt := range tests {
		got, err := sessionID(tt.arg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("sessionID(%q) = %q, %v", tt.arg, got, err)
		}
	}
}
