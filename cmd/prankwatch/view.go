package main

import (
	"fmt"
	"time"

	"github.com/iburimskiy/sayyes/internal/notify"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

const maxLog = 200

type logLine struct {
	at  time.Time
	msg string
}

// view is what the screen shows: the newest record and the notifications
// derived from the snapshots seen so far.
type view struct {
	sid    string
	rec    *tracking.Record
	differ *notify.Differ
	log    []logLine
	now    func() time.Time
}

func newView(sid string) *view {
	return &view{sid: sid, differ: notify.NewDiffer(), now: time.Now}
}

// Observe records a snapshot and returns the notifications it produced.
// A nil snapshot (no record yet) still seeds the baseline.
func (v *view) Observe(rec *tracking.Record) []notify.Event {
	events := v.differ.Observe(rec)
	if rec == nil {
		return events
	}
	if v.rec == nil {
		v.add("watching " + v.sid)
	}
	v.rec = rec.Clone()
	for _, ev := range events {
		v.add(ev.String())
	}
	return events
}

func (v *view) add(msg string) {
	v.log = append(v.log, logLine{at: v.now(), msg: msg})
	if len(v.log) > maxLog {
		v.log = v.log[len(v.log)-maxLog:]
	}
}

// status lists the record fields, one per line.
func (v *view) status() []string {
	if v.rec == nil {
		return []string{"waiting for the record..."}
	}
	r := v.rec
	return []string{
		"created   " + stamp(&r.Created),
		"opened    " + stamp(r.Opened),
		fmt.Sprintf("escapes   %d", r.EscapeCount),
		"answered  " + stamp(r.Answered),
		"updated   " + stamp(&r.LastUpdated),
	}
}

// tail returns the last n log lines formatted for display.
func (v *view) tail(n int) []string {
	if n <= 0 {
		return nil
	}
	lines := v.log
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.at.Format("15:04:05") + "  " + l.msg
	}
	return out
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
