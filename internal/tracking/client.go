package tracking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	writeQueueSize = 128
	mailboxSize    = 8

	defaultWriteTimeout = 5 * time.Second
	defaultCloseGrace   = 2 * time.Second
)

// Client is the per-session view of one record. Writes are queued and applied
// in order on a background goroutine so callers on the frame loop never block
// on the network; failures are logged and dropped. A Client built without a
// store or id is a valid no-op.
type Client struct {
	store Store
	id    string
	log   *slog.Logger
	now   func() time.Time

	writeTimeout time.Duration
	closeGrace   time.Duration

	opened bool

	ctx    context.Context
	stop   context.CancelFunc
	wake   chan struct{}
	worker sync.WaitGroup

	mu      sync.Mutex
	pending []job
	closed  atomic.Bool
	unwatch func()
	mailbox chan *Record
}

type job struct {
	m     Mutation
	flush chan struct{}
}

type ClientOption func(*Client)

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithClock replaces time.Now for mutation timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(store Store, id string, opts ...ClientOption) *Client {
	c := &Client{
		store: store,
		id:    id,
		log:   slog.Default(),
		now:   time.Now,

		writeTimeout: defaultWriteTimeout,
		closeGrace:   defaultCloseGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("sid", id)
	if !c.Enabled() {
		return c
	}
	c.ctx, c.stop = context.WithCancel(context.Background())
	c.wake = make(chan struct{}, 1)
	c.worker.Add(1)
	go c.run()
	return c
}

// Enabled reports whether the client talks to a store.
func (c *Client) Enabled() bool {
	return c != nil && c.store != nil && c.id != ""
}

func (c *Client) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Create writes the initial record if it does not exist yet.
func (c *Client) Create() {
	c.enqueue(Mutation{Op: OpCreate})
}

// MarkOpened records that the link was opened. Only the first call per Client
// is sent.
func (c *Client) MarkOpened() {
	if !c.Enabled() || c.opened {
		return
	}
	c.opened = true
	c.enqueue(Mutation{Op: OpOpen})
}

func (c *Client) RecordEscape(count int) {
	c.enqueue(Mutation{Op: OpEscape, EscapeCount: count})
}

func (c *Client) RecordAnswer(count int) {
	c.enqueue(Mutation{Op: OpAnswer, EscapeCount: count})
}

// enqueue never blocks. When the queue is full, escape writes are coalesced:
// the count is last-write-wins, so only the newest one matters.
func (c *Client) enqueue(m Mutation) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	m.At = c.now()
	c.pushLocked(job{m: m})
}

func (c *Client) pushLocked(j job) {
	if j.flush == nil && len(c.pending) >= writeQueueSize {
		last := c.lastEscapeLocked()
		switch {
		case j.m.Op == OpEscape && last >= 0:
			c.pending[last] = j
			c.log.Debug("tracking queue full, coalesced escape", "count", j.m.EscapeCount)
			c.signal()
			return
		case last >= 0:
			first := c.firstEscapeLocked()
			c.pending = append(c.pending[:first], c.pending[first+1:]...)
			c.log.Warn("tracking queue full, dropped the oldest escape write")
		default:
			c.log.Warn("tracking queue full", "op", j.m.Op)
		}
	}
	c.pending = append(c.pending, j)
	c.signal()
}

func (c *Client) lastEscapeLocked() int {
	for i := len(c.pending) - 1; i >= 0; i-- {
		if c.pending[i].flush == nil && c.pending[i].m.Op == OpEscape {
			return i
		}
	}
	return -1
}

func (c *Client) firstEscapeLocked() int {
	for i, j := range c.pending {
		if j.flush == nil && j.m.Op == OpEscape {
			return i
		}
	}
	return -1
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest job, waiting for one. It reports false once the
// client is closed and the queue is empty.
func (c *Client) next() (job, bool) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			j := c.pending[0]
			c.pending[0] = job{}
			c.pending = c.pending[1:]
			c.mu.Unlock()
			return j, true
		}
		closed := c.closed.Load()
		c.mu.Unlock()
		if closed {
			return job{}, false
		}
		<-c.wake
	}
}

func (c *Client) run() {
	defer c.worker.Done()
	for {
		j, ok := c.next()
		if !ok {
			return
		}
		if j.flush != nil {
			close(j.flush)
			continue
		}
		if c.ctx.Err() != nil {
			// Stopped: drain what is left without sending it.
			continue
		}
		c.apply(j.m)
	}
}

func (c *Client) apply(m Mutation) {
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	rec, err := c.store.Apply(ctx, c.id, m)
	if err != nil {
		c.log.Warn("tracking write failed", "op", m.Op, "err", err)
		return
	}
	c.log.Debug("tracking write", "op", m.Op, "escapes", rec.EscapeCount)
}

// Flush waits until every write queued so far has been attempted.
func (c *Client) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	done := make(chan struct{})
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil
	}
	c.pushLocked(job{flush: done})
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch subscribes to the record and returns a mailbox of snapshots. The
// mailbox keeps the newest snapshots when the reader falls behind. When the
// subscription cannot be established the mailbox simply stays empty.
func (c *Client) Watch() <-chan *Record {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	if c.mailbox != nil || c.closed.Load() {
		mb := c.mailbox
		c.mu.Unlock()
		return mb
	}
	c.mailbox = make(chan *Record, mailboxSize)
	mb := c.mailbox
	c.mu.Unlock()

	go func() {
		cancel, err := c.store.Subscribe(c.ctx, c.id, c.deliver)
		if err != nil {
			c.log.Warn("tracking subscribe failed", "err", err)
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed.Load() {
			cancel()
			return
		}
		c.unwatch = cancel
	}()
	return mb
}

func (c *Client) deliver(r *Record) {
	mb := c.mailbox
	if mb == nil || c.closed.Load() {
		return
	}
	for {
		select {
		case mb <- r:
			return
		default:
		}
		// Full: drop the oldest snapshot, every snapshot is a full record.
		select {
		case <-mb:
		default:
		}
	}
}

// Close drops the subscription and gives queued writes a short grace period
// to go out; whatever is still pending after that is abandoned.
func (c *Client) Close() {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.closed.Store(true)
	unwatch := c.unwatch
	c.unwatch = nil
	c.signal()
	c.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}

	done := make(chan struct{})
	go func() {
		c.worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.closeGrace):
		c.log.Warn("tracking store not answering, abandoning queued writes")
		c.stop()
		<-done
	}
	c.stop()
}
