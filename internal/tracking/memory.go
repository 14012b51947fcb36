package tracking

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process. The hub serves it over websockets and
// tests use it directly.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	subs    map[string]map[int]func(*Record)
	nextSub int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		subs:    make(map[string]map[int]func(*Record)),
	}
}

func (s *MemoryStore) Apply(ctx context.Context, id string, m Mutation) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	next, changed, err := Apply(s.records[id], id, m)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !changed {
		s.mu.Unlock()
		return &next, nil
	}
	s.records[id] = next.Clone()
	fns := s.subscribersLocked(id)
	s.mu.Unlock()

	// Deliver outside the lock so callbacks may call back into the store.
	for _, fn := range fns {
		fn(next.Clone())
	}
	return &next, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Clone(), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, id string, fn func(*Record)) (func(), error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.nextSub++
	key := s.nextSub
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]func(*Record))
	}
	s.subs[id][key] = fn
	cur := s.records[id].Clone()
	s.mu.Unlock()

	fn(cur)

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			s.mu.Lock()
			delete(s.subs[id], key)
			if len(s.subs[id]) == 0 {
				delete(s.subs, id)
			}
			s.mu.Unlock()
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

// Subscribers returns how many live subscriptions watch id.
func (s *MemoryStore) Subscribers(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[id])
}

func (s *MemoryStore) subscribersLocked(id string) []func(*Record) {
	fns := make([]func(*Record), 0, len(s.subs[id]))
	for _, fn := range s.subs[id] {
		fns = append(fns, fn)
	}
	return fns
}
