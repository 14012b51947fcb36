// Package notify turns a stream of full record snapshots into exactly-once
// user-visible notifications.
package notify

import (
	"fmt"
	"time"

	"github.com/iburimskiy/sayyes/internal/tracking"
)

type Kind uint8

const (
	LinkOpened Kind = iota + 1
	EscapeProgress
	Answered
)

func (k Kind) String() string {
	switch k {
	case LinkOpened:
		return "linkOpened"
	case EscapeProgress:
		return "escapeProgress"
	case Answered:
		return "answered"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind  Kind
	Count int
	At    time.Time
}

func (e Event) String() string {
	switch e.Kind {
	case LinkOpened:
		return "They opened your link"
	case EscapeProgress:
		if e.Count == 1 {
			return "They tried to escape 1 time"
		}
		return fmt.Sprintf("They tried to escape %d times", e.Count)
	case Answered:
		return "They said YES!"
	default:
		return e.Kind.String()
	}
}

// Differ compares successive snapshots. Write-once crossings are latched so
// duplicate, stale or reordered snapshots never repeat a notification, and
// escape progress uses a high-water mark for the same reason.
type Differ struct {
	seeded   bool
	opened   bool
	answered bool
	escapes  int
}

func NewDiffer() *Differ {
	return &Differ{}
}

// Observe consumes one snapshot (nil when the record does not exist) and
// returns the notifications it causes. The first snapshot only sets the
// baseline.
func (d *Differ) Observe(cur *tracking.Record) []Event {
	if !d.seeded {
		d.seeded = true
		d.absorb(cur)
		return nil
	}
	if cur == nil {
		return nil
	}

	var out []Event
	if cur.Opened != nil && !d.opened {
		d.opened = true
		out = append(out, Event{Kind: LinkOpened, At: *cur.Opened})
	}
	if cur.EscapeCount > d.escapes {
		d.escapes = cur.EscapeCount
		if cur.Answered == nil && !d.answered {
			out = append(out, Event{Kind: EscapeProgress, Count: cur.EscapeCount, At: cur.LastUpdated})
		}
	}
	if cur.Answered != nil && !d.answered {
		d.answered = true
		out = append(out, Event{Kind: Answered, Count: cur.EscapeCount, At: *cur.Answered})
	}
	return out
}

func (d *Differ) absorb(cur *tracking.Record) {
	if cur == nil {
		return
	}
	d.opened = d.opened || cur.Opened != nil
	d.answered = d.answered || cur.Answered != nil
	if cur.EscapeCount > d.escapes {
		d.escapes = cur.EscapeCount
	}
}

// Local records a crossing this session made itself, so its echo from the
// store is not announced again.
func (d *Differ) Local(kind Kind, count int) {
	switch kind {
	case LinkOpened:
		d.opened = true
	case Answered:
		d.answered = true
	}
	if count > d.escapes {
		d.escapes = count
	}
}

// Reset forgets the baseline and every latch.
func (d *Differ) Reset() {
	*d = Differ{}
}
