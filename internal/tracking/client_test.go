package tracking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func flush(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestMemoryStoreSubscribeDeliversCurrentThenChanges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var got []*Record
	cancel, err := s.Subscribe(ctx, "abc", func(r *Record) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(ctx, "abc", Mutation{Op: OpCreate, At: t0}); err != nil {
		t.Fatal(err)
	}
	// No change, no delivery.
	if _, err := s.Apply(ctx, "abc", Mutation{Op: OpCreate, At: t0}); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := s.Apply(ctx, "abc", Mutation{Op: OpOpen, At: t0}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != nil || got[1] == nil || got[1].ID != "abc" {
		t.Fatalf("unexpected deliveries %+v", got)
	}
	if s.Subscribers("abc") != 0 {
		t.Fatal("cancel did not remove the subscription")
	}
}

func TestMemoryStoreSubscribeEndsWithContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := s.Subscribe(ctx, "abc", func(*Record) {}); err != nil {
		t.Fatal(err)
	}
	cancel()
	deadline := time.Now().Add(time.Second)
	for s.Subscribers("abc") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription outlived its context")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientVerbsFollowRecordRules(t *testing.T) {
	s := NewMemoryStore()
	clock := t0
	c := NewClient(s, "abc", WithLogger(quietLogger()), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	defer c.Close()

	c.Create()
	c.MarkOpened()
	c.MarkOpened()
	c.RecordEscape(3)
	c.RecordAnswer(5)
	c.RecordAnswer(6)
	flush(t, c)

	rec, _ := s.Get(context.Background(), "abc")
	if rec == nil || rec.Opened == nil || rec.Answered == nil {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Opened.Equal(t0.Add(2 * time.Second)) {
		t.Fatalf("opened = %v, the second MarkOpened must not be sent", rec.Opened)
	}
	if !rec.Answered.Equal(t0.Add(4 * time.Second)) {
		t.Fatalf("answered moved to %v", rec.Answered)
	}
	if rec.EscapeCount != 6 || !rec.LastUpdated.Equal(t0.Add(5*time.Second)) {
		t.Fatalf("count/lastUpdated = %d/%v", rec.EscapeCount, rec.LastUpdated)
	}
}

func TestClientMarkOpenedRacingCreate(t *testing.T) {
	s := NewMemoryStore()
	viewer := NewClient(s, "abc", WithLogger(quietLogger()))
	owner := NewClient(s, "abc", WithLogger(quietLogger()))
	defer viewer.Close()
	defer owner.Close()

	viewer.MarkOpened()
	flush(t, viewer)
	owner.Create()
	flush(t, owner)

	rec, _ := s.Get(context.Background(), "abc")
	if rec == nil || rec.Opened == nil {
		t.Fatalf("opened lost to a late create: %+v", rec)
	}
}

type failingStore struct{}

func (failingStore) Apply(context.Context, string, Mutation) (*Record, error) {
	return nil, errors.New("offline")
}

func (failingStore) Get(context.Context, string) (*Record, error) {
	return nil, errors.New("offline")
}

func (failingStore) Subscribe(context.Context, string, func(*Record)) (func(), error) {
	return nil, errors.New("offline")
}

func TestClientSwallowsStoreFailures(t *testing.T) {
	c := NewClient(failingStore{}, "abc", WithLogger(quietLogger()))
	c.Create()
	c.MarkOpened()
	c.RecordEscape(1)
	c.RecordAnswer(1)
	mb := c.Watch()
	flush(t, c)
	c.Close()

	select {
	case r := <-mb:
		t.Fatalf("failed subscription delivered %+v", r)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDisabledClientIsNoOp(t *testing.T) {
	for _, c := range []*Client{nil, NewClient(nil, "abc"), NewClient(NewMemoryStore(), "")} {
		c.Create()
		c.MarkOpened()
		c.RecordEscape(1)
		c.RecordAnswer(1)
		if c.Watch() != nil {
			t.Fatal("disabled client returned a mailbox")
		}
		if err := c.Flush(context.Background()); err != nil {
			t.Fatal(err)
		}
		c.Close()
	}
}

func TestClientWatchReceivesSnapshots(t *testing.T) {
	s := NewMemoryStore()
	c := NewClient(s, "abc", WithLogger(quietLogger()))
	defer c.Close()

	mb := c.Watch()
	first := receive(t, mb)
	if first != nil {
		t.Fatalf("absent record should arrive as nil, got %+v", first)
	}

	if _, err := s.Apply(context.Background(), "abc", Mutation{Op: OpCreate, At: t0}); err != nil {
		t.Fatal(err)
	}
	if r := receive(t, mb); r == nil || r.ID != "abc" {
		t.Fatalf("expected created record, got %+v", r)
	}
}

func TestClientMailboxKeepsNewest(t *testing.T) {
	c := &Client{store: NewMemoryStore(), id: "abc", mailbox: make(chan *Record, 2)}
	for i := 1; i <= 5; i++ {
		c.deliver(&Record{ID: "abc", EscapeCount: i})
	}
	a, b := <-c.mailbox, <-c.mailbox
	if a.EscapeCount != 4 || b.EscapeCount != 5 {
		t.Fatalf("mailbox kept %d and %d", a.EscapeCount, b.EscapeCount)
	}
}

func receive(t *testing.T, mb <-chan *Record) *Record {
	t.Helper()
	select {
	case r := <-mb:
		return r
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

// stalledStore accepts connections but never answers a write.
type stalledStore struct {
	calls chan Mutation
}

func (s *stalledStore) Apply(ctx context.Context, _ string, m Mutation) (*Record, error) {
	select {
	case s.calls <- m:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledStore) Get(ctx context.Context, _ string) (*Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledStore) Subscribe(context.Context, string, func(*Record)) (func(), error) {
	return func() {}, nil
}

func newStalledClient() (*Client, *stalledStore) {
	s := &stalledStore{calls: make(chan Mutation, 1)}
	c := NewClient(s, "abc", WithLogger(quietLogger()), WithWriteTimeout(time.Minute))
	c.closeGrace = 50 * time.Millisecond
	return c, s
}

func TestClientCloseDoesNotHangOnStalledStore(t *testing.T) {
	c, s := newStalledClient()
	c.RecordEscape(1)
	select {
	case <-s.calls:
	case <-time.After(time.Second):
		t.Fatal("write never reached the store")
	}

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind a stalled write")
	}
}

func TestClientWriteTimeoutUnblocksWorker(t *testing.T) {
	s := &stalledStore{calls: make(chan Mutation, 4)}
	c := NewClient(s, "abc", WithLogger(quietLogger()), WithWriteTimeout(20*time.Millisecond))
	defer c.Close()

	c.RecordEscape(1)
	c.RecordEscape(2)
	for want := 1; want <= 2; want++ {
		select {
		case m := <-s.calls:
			if m.EscapeCount != want {
				t.Fatalf("write %d carried count %d", want, m.EscapeCount)
			}
		case <-time.After(time.Second):
			t.Fatalf("write %d never attempted", want)
		}
	}
}

func TestClientEnqueueNeverBlocks(t *testing.T) {
	c, _ := newStalledClient()
	defer c.Close()

	c.RecordAnswer(0)
	done := make(chan struct{})
	go func() {
		for i := 1; i <= 2*writeQueueSize; i++ {
			c.RecordEscape(i)
		}
		c.RecordAnswer(2 * writeQueueSize)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recording escapes blocked once the queue filled")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > writeQueueSize {
		t.Fatalf("queue grew to %d", len(c.pending))
	}
	last := c.pending[c.lastEscapeLocked()]
	if last.m.EscapeCount != 2*writeQueueSize {
		t.Fatalf("newest escape count lost, kept %d", last.m.EscapeCount)
	}
	tail := c.pending[len(c.pending)-1]
	if tail.m.Op != OpAnswer || tail.m.EscapeCount != 2*writeQueueSize {
		t.Fatalf("answer write dropped, tail is %+v", tail.m)
	}
}
