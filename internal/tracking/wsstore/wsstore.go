// Package wsstore implements tracking.Store against a trackd server over a
// single websocket connection.
package wsstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/protocol"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 64
)

type result struct {
	env protocol.Envelope
}

type subscription struct {
	fns  map[int]func(*tracking.Record)
	last *tracking.Record
	have bool
	// ready closes on the first snapshot or when the server refuses the sub.
	ready chan struct{}
	err   error
}

// Store multiplexes every request and subscription over one connection. A
// dropped connection is not re-dialled: later calls fail with
// tracking.ErrClosed and subscriptions go quiet.
type Store struct {
	conn *websocket.Conn
	log  *slog.Logger

	seq  atomic.Uint64
	send chan []byte
	done chan struct{}
	once sync.Once
	err  error
	wg   sync.WaitGroup

	mu      sync.Mutex
	pending map[uint64]chan result
	subs    map[string]*subscription
	nextSub int
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Dial connects to url (ws:// or wss://, ending in /ws).
func Dial(ctx context.Context, url string, opts ...Option) (*Store, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}

	s := &Store{
		conn:    conn,
		log:     slog.Default(),
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan result),
		subs:    make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	return s, nil
}

// Err returns why the connection ended, or nil while it is live.
func (s *Store) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Store) Apply(ctx context.Context, id string, m tracking.Mutation) (*tracking.Record, error) {
	if id == "" {
		return nil, tracking.ErrEmptyID
	}
	env, err := s.call(ctx, protocol.TypeApply, protocol.Apply{ID: id, M: m})
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", m.Op, id)
	}
	ack, err := protocol.DecodePayload[protocol.Ack](env)
	if err != nil {
		return nil, err
	}
	return ack.Record, nil
}

// Get subscribes briefly and returns the first snapshot unless one is already
// cached by a live subscription.
func (s *Store) Get(ctx context.Context, id string) (*tracking.Record, error) {
	got := make(chan *tracking.Record, 1)
	cancel, err := s.Subscribe(ctx, id, func(r *tracking.Record) {
		select {
		case got <- r:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer cancel()

	select {
	case r := <-got:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, tracking.ErrClosed
	}
}

func (s *Store) Subscribe(ctx context.Context, id string, fn func(*tracking.Record)) (func(), error) {
	if id == "" {
		return nil, tracking.ErrEmptyID
	}

	s.mu.Lock()
	s.nextSub++
	key := s.nextSub
	sub := s.subs[id]
	first := sub == nil
	if first {
		sub = &subscription{fns: make(map[int]func(*tracking.Record)), ready: make(chan struct{})}
		s.subs[id] = sub
	}
	sub.fns[key] = fn
	last, have := sub.last, sub.have
	s.mu.Unlock()

	switch {
	case first:
		if _, err := s.call(ctx, protocol.TypeSub, protocol.Sub{ID: id}); err != nil {
			s.refuse(id, sub, err)
			return nil, errors.Wrapf(err, "subscribe %s", id)
		}
	case have:
		fn(last.Clone())
	default:
		// The first snapshot is still in flight; dispatch hands it to fn too.
		select {
		case <-sub.ready:
		case <-ctx.Done():
			s.drop(id, key)
			return nil, ctx.Err()
		case <-s.done:
			s.drop(id, key)
			return nil, tracking.ErrClosed
		}
		if sub.err != nil {
			s.drop(id, key)
			return nil, errors.Wrapf(sub.err, "subscribe %s", id)
		}
	}

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			if s.drop(id, key) {
				ctx, cancel := context.WithTimeout(context.Background(), writeWait)
				defer cancel()
				s.call(ctx, protocol.TypeUnsub, protocol.Sub{ID: id})
			}
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-stop:
			}
		}()
	}
	return cancel, nil
}

// refuse forgets a subscription the server did not accept and fails every
// subscriber still waiting on its first snapshot.
func (s *Store) refuse(id string, sub *subscription, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[id] == sub {
		delete(s.subs, id)
	}
	if !sub.have {
		sub.err = err
		close(sub.ready)
	}
}

// drop removes one local subscriber and reports whether it was the last for id.
func (s *Store) drop(id string, key int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[id]
	if sub == nil {
		return false
	}
	delete(sub.fns, key)
	if len(sub.fns) > 0 {
		return false
	}
	delete(s.subs, id)
	return true
}

func (s *Store) call(ctx context.Context, t protocol.Type, payload any) (protocol.Envelope, error) {
	seq := s.seq.Add(1)
	data, err := protocol.Encode(t, seq, payload)
	if err != nil {
		return protocol.Envelope{}, err
	}

	ch := make(chan result, 1)
	s.mu.Lock()
	s.pending[seq] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, seq)
		s.mu.Unlock()
	}()

	select {
	case s.send <- data:
	case <-s.done:
		return protocol.Envelope{}, tracking.ErrClosed
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}

	select {
	case res := <-ch:
		if res.env.T == protocol.TypeErr {
			e, err := protocol.DecodePayload[protocol.Err](res.env)
			if err != nil {
				return protocol.Envelope{}, err
			}
			return protocol.Envelope{}, e.AsError()
		}
		return res.env, nil
	case <-s.done:
		return protocol.Envelope{}, tracking.ErrClosed
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (s *Store) readLoop() {
	defer s.wg.Done()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(errors.Wrap(err, "read"))
			return
		}
		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			s.log.Debug("discarding malformed message", "err", err)
			continue
		}

		switch env.T {
		case protocol.TypeAck, protocol.TypeErr:
			s.mu.Lock()
			ch := s.pending[env.Seq]
			s.mu.Unlock()
			if ch != nil {
				ch <- result{env: env}
			}
		case protocol.TypeSnap:
			snap, err := protocol.DecodePayload[protocol.Snap](env)
			if err != nil {
				s.log.Debug("discarding malformed snapshot", "err", err)
				continue
			}
			s.dispatch(snap)
		}
	}
}

func (s *Store) dispatch(snap protocol.Snap) {
	s.mu.Lock()
	sub := s.subs[snap.ID]
	if sub == nil {
		s.mu.Unlock()
		return
	}
	if !sub.have {
		close(sub.ready)
	}
	sub.last, sub.have = snap.Record.Clone(), true
	fns := make([]func(*tracking.Record), 0, len(sub.fns))
	for _, fn := range sub.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap.Record.Clone())
	}
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.fail(errors.Wrap(err, "write"))
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Store) fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		s.conn.Close()
		if !errors.Is(err, tracking.ErrClosed) {
			s.log.Warn("tracking connection lost", "err", err)
		}
	})
}

// Close sends a close frame and releases the connection.
func (s *Store) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.fail(tracking.ErrClosed)
	s.wg.Wait()
	return nil
}
