package confetti

// Handle identifies a pending step request. The zero Handle is never issued.
type Handle uint64

// Scheduler hands out one-shot step callbacks, one per display refresh.
type Scheduler interface {
	RequestStep(fn func()) Handle
	Cancel(h Handle)
}

// FrameScheduler runs requested callbacks on the next Tick. The game calls
// Tick once per ebiten Update; tests call it directly to step frame by frame.
type FrameScheduler struct {
	next    Handle
	pending []request
}

type request struct {
	h  Handle
	fn func()
}

func NewFrameScheduler() *FrameScheduler {
	return &FrameScheduler{}
}

func (s *FrameScheduler) RequestStep(fn func()) Handle {
	s.next++
	s.pending = append(s.pending, request{h: s.next, fn: fn})
	return s.next
}

func (s *FrameScheduler) Cancel(h Handle) {
	for i, r := range s.pending {
		if r.h == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Tick runs the callbacks that were pending when it was called. Callbacks
// requested during the tick wait for the next one.
func (s *FrameScheduler) Tick() int {
	if len(s.pending) == 0 {
		return 0
	}
	batch := s.pending
	s.pending = nil
	for _, r := range batch {
		r.fn()
	}
	return len(batch)
}

// Pending reports how many callbacks wait for the next Tick.
func (s *FrameScheduler) Pending() int {
	return len(s.pending)
}
