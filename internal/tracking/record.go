// Package tracking keeps the remote record of one shared prank link in sync.
package tracking

import (
	"time"

	"github.com/pkg/errors"
)

// Record is the remote audit trail of one shared link. Opened and Answered are
// write-once; EscapeCount is last-write-wins.
type Record struct {
	ID          string     `json:"id" msgpack:"id" dynamodbav:"id"`
	Created     time.Time  `json:"created" msgpack:"created" dynamodbav:"created"`
	Opened      *time.Time `json:"opened" msgpack:"opened" dynamodbav:"opened,omitempty"`
	Answered    *time.Time `json:"answered" msgpack:"answered" dynamodbav:"answered,omitempty"`
	EscapeCount int        `json:"escapeCount" msgpack:"escapeCount" dynamodbav:"escapeCount"`
	LastUpdated time.Time  `json:"lastUpdated" msgpack:"lastUpdated" dynamodbav:"lastUpdated"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Opened != nil {
		t := *r.Opened
		c.Opened = &t
	}
	if r.Answered != nil {
		t := *r.Answered
		c.Answered = &t
	}
	return &c
}

// Equal compares two snapshots field by field; nil equals nil.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == nil && o == nil
	}
	return r.ID == o.ID &&
		r.Created.Equal(o.Created) &&
		timeEqual(r.Opened, o.Opened) &&
		timeEqual(r.Answered, o.Answered) &&
		r.EscapeCount == o.EscapeCount &&
		r.LastUpdated.Equal(o.LastUpdated)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

type Op uint8

const (
	OpCreate Op = iota + 1
	OpOpen
	OpEscape
	OpAnswer
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpOpen:
		return "open"
	case OpEscape:
		return "escape"
	case OpAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Mutation is one write against a record.
type Mutation struct {
	Op          Op        `msgpack:"op"`
	At          time.Time `msgpack:"at"`
	EscapeCount int       `msgpack:"escapeCount"`
}

var (
	ErrNotFound  = errors.New("tracking: record not found")
	ErrInvalidOp = errors.New("tracking: invalid mutation")
	ErrEmptyID   = errors.New("tracking: empty record id")
	ErrNegativeN = errors.New("tracking: negative escape count")
	ErrClosed    = errors.New("tracking: store closed")
)

// Apply computes the record that results from m. cur is nil when the record
// does not exist. The returned bool reports whether anything changed; an
// unchanged result means nothing needs to be written or broadcast.
func Apply(cur *Record, id string, m Mutation) (Record, bool, error) {
	if id == "" {
		return Record{}, false, ErrEmptyID
	}
	if m.EscapeCount < 0 {
		return Record{}, false, ErrNegativeN
	}
	at := m.At.UTC().Truncate(time.Millisecond)

	switch m.Op {
	case OpCreate:
		if cur != nil {
			return *cur.Clone(), false, nil
		}
		return Record{ID: id, Created: at, LastUpdated: at}, true, nil

	case OpOpen:
		if cur == nil {
			return Record{ID: id, Created: at, Opened: &at, LastUpdated: at}, true, nil
		}
		next := *cur.Clone()
		if next.Opened != nil {
			return next, false, nil
		}
		next.Opened = &at
		return next, true, nil

	case OpEscape, OpAnswer:
		if cur == nil {
			return Record{}, false, ErrNotFound
		}
		next := *cur.Clone()
		if m.Op == OpAnswer && next.Answered == nil {
			next.Answered = &at
		}
		next.EscapeCount = m.EscapeCount
		next.LastUpdated = at
		return next, !next.Equal(cur), nil
	}
	return Record{}, false, errors.Wrapf(ErrInvalidOp, "op %d", m.Op)
}
