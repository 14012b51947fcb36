package tracking

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

var t0 = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestApplyCreateIsIdempotent(t *testing.T) {
	rec, changed, err := Apply(nil, "abc", Mutation{Op: OpCreate, At: t0})
	if err != nil || !changed {
		t.Fatalf("create: changed=%v err=%v", changed, err)
	}
	if rec.ID != "abc" || !rec.Created.Equal(t0) || rec.Opened != nil || rec.Answered != nil || rec.EscapeCount != 0 {
		t.Fatalf("unexpected initial record %+v", rec)
	}

	again, changed, err := Apply(&rec, "abc", Mutation{Op: OpCreate, At: at(time.Hour)})
	if err != nil || changed {
		t.Fatalf("second create must not change anything: changed=%v err=%v", changed, err)
	}
	if !again.Created.Equal(t0) {
		t.Fatalf("created moved to %v", again.Created)
	}
}

func TestApplyOpenIsWriteOnce(t *testing.T) {
	rec, _, _ := Apply(nil, "abc", Mutation{Op: OpCreate, At: t0})
	rec, changed, err := Apply(&rec, "abc", Mutation{Op: OpOpen, At: at(time.Minute)})
	if err != nil || !changed || rec.Opened == nil || !rec.Opened.Equal(at(time.Minute)) {
		t.Fatalf("first open: %+v changed=%v err=%v", rec, changed, err)
	}

	for _, d := range []time.Duration{0, 2 * time.Minute} {
		next, changed, err := Apply(&rec, "abc", Mutation{Op: OpOpen, At: at(d)})
		if err != nil || changed {
			t.Fatalf("repeat open changed the record: %v %v", changed, err)
		}
		if !next.Opened.Equal(at(time.Minute)) {
			t.Fatalf("opened moved to %v", next.Opened)
		}
	}
}

func TestApplyOpenCreatesMissingRecord(t *testing.T) {
	rec, changed, err := Apply(nil, "late", Mutation{Op: OpOpen, At: t0})
	if err != nil || !changed {
		t.Fatalf("open on missing record: changed=%v err=%v", changed, err)
	}
	if rec.Opened == nil || !rec.Created.Equal(t0) {
		t.Fatalf("expected record with opened pre-set, got %+v", rec)
	}

	// The owner's create arriving afterwards must not wipe opened.
	after, changed, _ := Apply(&rec, "late", Mutation{Op: OpCreate, At: at(time.Second)})
	if changed || after.Opened == nil {
		t.Fatalf("late create clobbered the record: %+v", after)
	}
}

func TestApplyAnswerIsWriteOnceButCountStillUpdates(t *testing.T) {
	rec, _, _ := Apply(nil, "abc", Mutation{Op: OpCreate, At: t0})
	rec, _, _ = Apply(&rec, "abc", Mutation{Op: OpAnswer, At: at(time.Minute), EscapeCount: 5})
	if rec.Answered == nil || rec.EscapeCount != 5 {
		t.Fatalf("answer: %+v", rec)
	}

	rec, changed, err := Apply(&rec, "abc", Mutation{Op: OpAnswer, At: at(2 * time.Minute), EscapeCount: 7})
	if err != nil || !changed {
		t.Fatalf("second answer: changed=%v err=%v", changed, err)
	}
	if !rec.Answered.Equal(at(time.Minute)) {
		t.Fatalf("answered moved to %v", rec.Answered)
	}
	if rec.EscapeCount != 7 || !rec.LastUpdated.Equal(at(2*time.Minute)) {
		t.Fatalf("count/lastUpdated not updated: %+v", rec)
	}
}

func TestApplyRejects(t *testing.T) {
	cases := []struct {
		name string
		cur  *Record
		id   string
		m    Mutation
		want error
	}{
		{"escape on missing", nil, "x", Mutation{Op: OpEscape, At: t0, EscapeCount: 1}, ErrNotFound},
		{"answer on missing", nil, "x", Mutation{Op: OpAnswer, At: t0}, ErrNotFound},
		{"empty id", nil, "", Mutation{Op: OpCreate, At: t0}, ErrEmptyID},
		{"negative count", &Record{ID: "x"}, "x", Mutation{Op: OpEscape, At: t0, EscapeCount: -1}, ErrNegativeN},
		{"unknown op", &Record{ID: "x"}, "x", Mutation{Op: 99, At: t0}, ErrInvalidOp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Apply(tc.cur, tc.id, tc.m)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	opened := t0
	cur := &Record{ID: "x", Created: t0, Opened: &opened}
	next, _, _ := Apply(cur, "x", Mutation{Op: OpEscape, At: at(time.Second), EscapeCount: 3})
	*next.Opened = at(time.Hour)
	if !cur.Opened.Equal(t0) {
		t.Fatal("Apply returned a record sharing the caller's timestamps")
	}
	if cur.EscapeCount != 0 {
		t.Fatal("Apply mutated its input")
	}
}

func TestRecordEqual(t *testing.T) {
	a := &Record{ID: "x", Created: t0}
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatal("clone should be equal")
	}
	o := t0
	b.Opened = &o
	if a.Equal(b) || (*Record)(nil).Equal(a) || !(*Record)(nil).Equal(nil) {
		t.Fatal("Equal mismatch")
	}
}
