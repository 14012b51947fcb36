package prank

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/dodge"
	"github.com/iburimskiy/sayyes/internal/notify"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

type fakeEngine struct {
	bursts   int
	disposed bool
}

func (e *fakeEngine) Burst()   { e.bursts++ }
func (e *fakeEngine) Dispose() { e.disposed = true }

type fakeSounds struct{ chirps, thuds int }

func (s *fakeSounds) Chirp() { s.chirps++ }
func (s *fakeSounds) Thud()  { s.thuds++ }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type session struct {
	c      *Controller
	engine *fakeEngine
	sounds *fakeSounds
	events []notify.Event
}

func newSession(t *testing.T, params Params, seed int64, opts ...Option) *session {
	t.Helper()
	s := &session{engine: &fakeEngine{}, sounds: &fakeSounds{}}
	solver := dodge.NewSolver(dodge.Size{W: config.DeclineWidth, H: config.DeclineHeight}, rand.New(rand.NewSource(seed)))
	in := NewInteraction(solver, dodge.DefaultEscalation)
	in.Resize(arena)
	opts = append([]Option{
		WithSounds(s.sounds),
		WithLogger(quiet()),
		WithNotify(func(ev notify.Event) { s.events = append(s.events, ev) }),
	}, opts...)
	s.c = NewController(s.engine, in, params, opts...)
	t.Cleanup(s.c.Dispose)
	return s
}

func (s *session) count(kind notify.Kind) int {
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func flush(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestInitialStage(t *testing.T) {
	if s := newSession(t, Params{}, 1); s.c.Stage() != StageInput || !s.c.Owner() {
		t.Fatalf("plain start: %s owner=%v", s.c.Stage(), s.c.Owner())
	}
	if s := newSession(t, Params{Recipient: "Sam"}, 1); s.c.Stage() != StagePrank || s.c.Owner() {
		t.Fatalf("shared link start: %s owner=%v", s.c.Stage(), s.c.Owner())
	}
}

func TestGenerateNeedsRecipient(t *testing.T) {
	s := newSession(t, Params{}, 1)
	s.c.SetRecipient("   ")
	if s.c.Generate() || s.c.Stage() != StageInput {
		t.Fatal("blank recipient must not generate")
	}
	s.c.SetRecipient(" Sam ")
	if !s.c.Generate() || s.c.Stage() != StagePrank {
		t.Fatal("generate failed")
	}
	if s.c.Params().Recipient != "Sam" || s.c.Params().SessionID == "" || s.c.Link() == "" {
		t.Fatalf("generated %+v link=%q", s.c.Params(), s.c.Link())
	}
	if s.c.SetRecipient("Alex") {
		t.Fatal("editing outside input must be refused")
	}
}

func TestActionsOutsideTheirStageAreNoOps(t *testing.T) {
	s := newSession(t, Params{}, 1)
	p := s.c.Interaction().Decline().Center()
	if s.c.Accept() || s.c.Reset() || s.c.Click(p) || s.c.PointerMoved(p) || s.c.TouchStarted(p) {
		t.Fatal("input stage accepted a prank action")
	}
	if s.engine.bursts != 0 || s.c.Escapes() != 0 {
		t.Fatal("no-op action had side effects")
	}

	s.c.SetRecipient("Sam")
	s.c.Generate()
	if s.c.Generate() || s.c.Reset() {
		t.Fatal("prank stage accepted generate/reset")
	}
	s.c.Accept()
	if s.c.Accept() || s.c.Click(p) {
		t.Fatal("celebration accepted prank actions")
	}
	if s.engine.bursts != 1 || s.sounds.chirps != 1 {
		t.Fatalf("bursts=%d chirps=%d", s.engine.bursts, s.sounds.chirps)
	}
}

func TestViewerCannotReset(t *testing.T) {
	s := newSession(t, Params{Recipient: "Sam"}, 1)
	s.c.Accept()
	if s.c.Reset() || s.c.Stage() != StageCelebration {
		t.Fatal("a shared-link session reset the prank")
	}
}

func TestOwnerResetClearsSession(t *testing.T) {
	s := newSession(t, Params{}, 1, WithStore(tracking.NewMemoryStore()))
	s.c.SetRecipient("Sam")
	s.c.Generate()
	for i := 0; i < 3; i++ {
		s.c.Click(s.c.Interaction().Decline().Center())
	}
	s.c.Accept()
	if !s.c.Reset() {
		t.Fatal("owner reset refused")
	}
	if s.c.Stage() != StageInput || s.c.Escapes() != 0 || s.c.Link() != "" || s.c.Params().SessionID != "" || s.c.Tracking() != nil {
		t.Fatalf("reset left state behind: %+v", s.c.Params())
	}
	if s.c.Params().Recipient != "Sam" {
		t.Fatal("reset should keep the typed name")
	}
}

func TestClickRoutesToDeclineThenAccept(t *testing.T) {
	s := newSession(t, Params{Recipient: "Sam"}, 7)
	for i := 0; i < 5; i++ {
		if !s.c.Click(s.c.Interaction().Decline().Center()) {
			t.Fatalf("click %d missed the decline button", i)
		}
	}
	if s.sounds.thuds != 5 || s.c.Escapes() != 5 {
		t.Fatalf("thuds=%d escapes=%d", s.sounds.thuds, s.c.Escapes())
	}

	// Aim at the part of the accept button farthest from the decline button.
	acc := s.c.Interaction().Accept()
	p := dodge.Point{X: acc.X + 2, Y: acc.Y + 2}
	if s.c.Interaction().Decline().Distance(p) <= config.ProximityRadius {
		p = dodge.Point{X: acc.X + acc.W - 2, Y: acc.Y + acc.H - 2}
	}
	if !s.c.Click(p) || s.c.Stage() != StageCelebration {
		t.Fatal("click on accept did not celebrate")
	}
}

func TestOwnerPreviewDoesNotWriteRecord(t *testing.T) {
	store := tracking.NewMemoryStore()
	s := newSession(t, Params{}, 3, WithStore(store), WithIDGenerator(func() string { return "preview" }))
	s.c.SetRecipient("Sam")
	s.c.Generate()
	for i := 0; i < 3; i++ {
		s.c.Click(s.c.Interaction().Decline().Center())
	}
	if !s.c.Accept() {
		t.Fatal("owner could not accept in the preview")
	}
	flush(t, s.c)

	rec, err := store.Get(context.Background(), "preview")
	if err != nil || rec == nil {
		t.Fatalf("record missing: %+v %v", rec, err)
	}
	if rec.Answered != nil || rec.Opened != nil || rec.EscapeCount != 0 {
		t.Fatalf("preview wrote to the record: %+v", rec)
	}
}

func TestEndToEnd(t *testing.T) {
	store := tracking.NewMemoryStore()

	a := newSession(t, Params{}, 1, WithStore(store), WithBaseURL("https://sayyes.example/"))
	a.c.SetRecipient("Sam")
	if !a.c.Generate() {
		t.Fatal("generate")
	}
	flush(t, a.c)

	params, err := ParseLink(a.c.Link())
	if err != nil {
		t.Fatal(err)
	}
	waitSubscribed(t, store, params.SessionID)
	b := newSession(t, params, 2, WithStore(store))
	if b.c.Stage() != StagePrank {
		t.Fatalf("shared link opened in %s", b.c.Stage())
	}
	flush(t, b.c)

	deadline := time.Now().Add(2 * time.Second)
	for a.count(notify.LinkOpened) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("owner never saw the link opened; events %+v", a.events)
		}
		a.c.Update()
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 5; i++ {
		b.c.Click(b.c.Interaction().Decline().Center())
	}
	if b.c.Escapes() != 5 {
		t.Fatalf("escapes = %d", b.c.Escapes())
	}
	if got, want := b.c.Scale(), dodge.Scale(5); got != want || got > 2.5 {
		t.Fatalf("scale = %f want %f", got, want)
	}
	if !b.c.Accept() || b.engine.bursts != 1 {
		t.Fatal("accept on the viewer side")
	}
	flush(t, b.c)

	rec, _ := store.Get(context.Background(), params.SessionID)
	if rec == nil || rec.Opened == nil || rec.Answered == nil || rec.EscapeCount != 5 {
		t.Fatalf("record after accept: %+v", rec)
	}

	deadline = time.Now().Add(2 * time.Second)
	for a.count(notify.Answered) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("owner never saw the answer; events %+v", a.events)
		}
		a.c.Update()
		time.Sleep(5 * time.Millisecond)
	}
	// Let any straggling snapshots through.
	for i := 0; i < 10; i++ {
		a.c.Update()
		time.Sleep(2 * time.Millisecond)
	}

	if a.count(notify.Answered) != 1 {
		t.Fatalf("answered fired %d times", a.count(notify.Answered))
	}
	if a.engine.bursts != 1 || a.c.Stage() != StagePrank {
		t.Fatalf("owner bursts=%d stage=%s", a.engine.bursts, a.c.Stage())
	}
	if n := a.count(notify.LinkOpened); n != 1 {
		t.Fatalf("link opened announced %d times", n)
	}
	if len(b.events) != 0 {
		t.Fatalf("viewer received notifications %+v", b.events)
	}
}

func TestDisposeReleasesEngineAndSubscription(t *testing.T) {
	store := tracking.NewMemoryStore()
	s := newSession(t, Params{}, 1, WithStore(store), WithIDGenerator(func() string { return "fixed" }))
	s.c.SetRecipient("Sam")
	s.c.Generate()
	flush(t, s.c)
	waitSubscribed(t, store, "fixed")

	s.c.Dispose()
	if !s.engine.disposed {
		t.Fatal("dispose left the engine alive")
	}
	deadline := time.Now().Add(time.Second)
	for store.Subscribers("fixed") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dispose left the subscription alive")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitSubscribed(t *testing.T, store *tracking.MemoryStore, id string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for store.Subscribers(id) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("nobody subscribed to %s", id)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
