// Package prank drives one accept/decline session: the stage machine, the
// arena interaction and the link that ties two sessions to one record.
package prank

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iburimskiy/sayyes/internal/dodge"
	"github.com/iburimskiy/sayyes/internal/notify"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

type Stage uint8

const (
	StageInput Stage = iota
	StagePrank
	StageCelebration
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StagePrank:
		return "prank"
	case StageCelebration:
		return "celebration"
	default:
		return "unknown"
	}
}

// Engine is the particle engine as the controller sees it.
type Engine interface {
	Burst()
	Dispose()
}

// Sounds plays the feedback tones. Either may be a no-op.
type Sounds interface {
	Chirp()
	Thud()
}

type silent struct{}

func (silent) Chirp() {}
func (silent) Thud()  {}

// Controller is the single owner of a session's state. All methods must be
// called from the frame loop.
type Controller struct {
	stage  Stage
	params Params
	owner  bool
	link   string

	inter  *Interaction
	engine Engine
	sounds Sounds

	store  tracking.Store
	client *tracking.Client
	watch  <-chan *tracking.Record
	differ *notify.Differ

	base     string
	newID    func() string
	onNotify func(notify.Event)
	log      *slog.Logger
}

type Option func(*Controller)

// WithStore enables remote tracking; without it the session works offline.
func WithStore(s tracking.Store) Option {
	return func(c *Controller) { c.store = s }
}

func WithSounds(s Sounds) Option {
	return func(c *Controller) {
		if s != nil {
			c.sounds = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithBaseURL sets the address generated links point at.
func WithBaseURL(base string) Option {
	return func(c *Controller) { c.base = base }
}

// WithNotify receives every notification the owner's session derives from
// the remote record.
func WithNotify(fn func(notify.Event)) Option {
	return func(c *Controller) { c.onNotify = fn }
}

// WithIDGenerator replaces uuid session ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewController starts in the prank stage when params name a recipient (a
// session opened from a shared link) and in the input stage otherwise.
func NewController(engine Engine, inter *Interaction, params Params, opts ...Option) *Controller {
	if inter == nil {
		inter = NewInteraction(nil, dodge.DefaultEscalation)
	}
	c := &Controller{
		params: params.withDefaults(),
		inter:  inter,
		engine: engine,
		sounds: silent{},
		differ: notify.NewDiffer(),
		newID:  uuid.NewString,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.params.Recipient == "" {
		c.stage = StageInput
		c.owner = true
		c.params.SessionID = ""
		return c
	}

	c.stage = StagePrank
	if c.params.SessionID != "" && c.store != nil {
		c.client = tracking.NewClient(c.store, c.params.SessionID, tracking.WithLogger(c.log))
		c.client.MarkOpened()
	}
	c.log.Info("opened shared link", "sid", c.params.SessionID, "tracking", c.client.Enabled())
	return c
}

func (c *Controller) Stage() Stage               { return c.stage }
func (c *Controller) Params() Params             { return c.params }
func (c *Controller) Owner() bool                { return c.owner }
func (c *Controller) Link() string               { return c.link }
func (c *Controller) Interaction() *Interaction  { return c.inter }
func (c *Controller) Escapes() int               { return c.inter.Escapes() }
func (c *Controller) Scale() float64             { return c.inter.Scale() }
func (c *Controller) Tracking() *tracking.Client { return c.client }

// SetRecipient edits the name field; input stage only.
func (c *Controller) SetRecipient(name string) bool {
	if c.stage != StageInput {
		return false
	}
	c.params.Recipient = name
	return true
}

// SetMessage edits the celebration message; input stage only.
func (c *Controller) SetMessage(msg string) bool {
	if c.stage != StageInput {
		return false
	}
	c.params.Message = msg
	return true
}

// CanGenerate reports whether Generate would succeed.
func (c *Controller) CanGenerate() bool {
	return c.stage == StageInput && strings.TrimSpace(c.params.Recipient) != ""
}

// Generate allocates a session id, builds the shareable link and switches to
// the prank stage as a preview of what the recipient will see.
func (c *Controller) Generate() bool {
	if !c.CanGenerate() {
		return false
	}
	c.params.Recipient = strings.TrimSpace(c.params.Recipient)
	c.params.Message = strings.TrimSpace(c.params.Message)
	c.params = c.params.withDefaults()
	c.params.SessionID = c.newID()
	c.link = c.params.Link(c.base)
	c.owner = true

	c.differ.Reset()
	if c.store != nil {
		c.client = tracking.NewClient(c.store, c.params.SessionID, tracking.WithLogger(c.log))
		c.client.Create()
		c.watch = c.client.Watch()
	}
	c.inter.Reset()
	c.stage = StagePrank
	c.log.Info("generated link", "sid", c.params.SessionID, "link", c.link)
	return true
}

// PointerMoved routes pointer motion in the prank stage.
func (c *Controller) PointerMoved(p dodge.Point) bool {
	if c.stage != StagePrank {
		return false
	}
	if c.inter.PointerMoved(p) {
		c.escaped()
		return true
	}
	return false
}

func (c *Controller) TouchStarted(p dodge.Point) bool {
	if c.stage != StagePrank {
		return false
	}
	if c.inter.TouchStarted(p) {
		c.escaped()
		return true
	}
	if c.inter.AcceptHit(p) {
		return c.Accept()
	}
	return false
}

// Click dodges when aimed at the decline button and accepts when it lands
// on the accept button.
func (c *Controller) Click(p dodge.Point) bool {
	if c.stage != StagePrank {
		return false
	}
	if c.inter.Click(p) {
		c.escaped()
		return true
	}
	if c.inter.AcceptHit(p) {
		return c.Accept()
	}
	return false
}

func (c *Controller) escaped() {
	c.sounds.Thud()
	// The owner's preview never touches the shared record.
	if !c.owner {
		c.client.RecordEscape(c.inter.Escapes())
	}
}

// Accept moves prank to celebration. Only a session opened from a shared
// link records the answer; the owner's preview has a session id too but
// never writes to the record it is watching.
func (c *Controller) Accept() bool {
	if c.stage != StagePrank {
		return false
	}
	c.stage = StageCelebration
	if c.engine != nil {
		c.engine.Burst()
	}
	c.sounds.Chirp()
	if !c.owner && c.client.Enabled() {
		n := c.inter.Escapes()
		c.client.RecordAnswer(n)
		c.differ.Local(notify.Answered, n)
	}
	c.log.Info("accepted", "sid", c.params.SessionID, "escapes", c.inter.Escapes())
	return true
}

// Reset returns the owner to the input stage. Sessions opened from a shared
// link cannot reset.
func (c *Controller) Reset() bool {
	if c.stage != StageCelebration || !c.owner {
		return false
	}
	c.inter.Reset()
	c.link = ""
	c.params.SessionID = ""
	c.differ.Reset()
	c.watch = nil
	if old := c.client; old != nil {
		c.client = nil
		go old.Close()
	}
	c.stage = StageInput
	return true
}

// Poll drains pending snapshots from the tracking subscription.
func (c *Controller) Poll() {
	for c.watch != nil {
		select {
		case rec := <-c.watch:
			c.Observe(rec)
		default:
			return
		}
	}
}

// Observe feeds one snapshot through the diff engine. An answer observed from
// the other side celebrates locally too.
func (c *Controller) Observe(rec *tracking.Record) {
	for _, ev := range c.differ.Observe(rec) {
		c.log.Info("notification", "kind", ev.Kind, "count", ev.Count)
		if ev.Kind == notify.Answered {
			if c.engine != nil {
				c.engine.Burst()
			}
			c.sounds.Chirp()
		}
		if c.onNotify != nil {
			c.onNotify(ev)
		}
	}
}

// Flush waits for queued tracking writes.
func (c *Controller) Flush(ctx context.Context) error {
	return c.client.Flush(ctx)
}

// Update advances per-frame animation.
func (c *Controller) Update() {
	c.inter.Tick()
	c.Poll()
}

// Dispose drops the subscription and tears the engine down.
func (c *Controller) Dispose() {
	c.watch = nil
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	if c.engine != nil {
		c.engine.Dispose()
	}
}
