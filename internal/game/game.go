// Package game is the ebiten front end: it turns input into controller calls
// and draws the three stages.
package game

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/iburimskiy/sayyes/internal/confetti"
	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/dodge"
	"github.com/iburimskiy/sayyes/internal/notify"
	"github.com/iburimskiy/sayyes/internal/prank"
	"github.com/iburimskiy/sayyes/internal/sound"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

const (
	fieldWidth  = 420
	fieldHeight = 40
	nameMax     = 40
	messageMax  = 120
	repeatDelay = 30
	repeatEvery = 3
)

type action uint8

const (
	actionNone action = iota
	actionGenerate
	actionCopy
	actionAnother
)

type button struct {
	label  string
	rect   box
	action action
}

// heart is one of the background decorations drifting upwards.
type heart struct {
	x, y  float64
	size  float64
	speed float64
	sway  float64
	hue   float64
}

type Options struct {
	Params  prank.Params
	Store   tracking.Store
	BaseURL string
	Logger  *slog.Logger
}

type Game struct {
	log *slog.Logger

	ctrl     *prank.Controller
	sched    *confetti.FrameScheduler
	confetti *confetti.Engine
	layer    *layerSurface
	sound    *sound.Player
	share    *sharer

	fields  []*textField
	focus   int
	runes   []rune
	hovered action
	pressed action

	lastCursor [2]int
	armed      bool

	toast     string
	toastLeft int

	frame  int
	phase  float64
	glow   float64
	hearts []heart
}

func New(opts Options) *Game {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Game{
		log:        logger,
		sched:      confetti.NewFrameScheduler(),
		layer:      newLayerSurface(config.WindowWidth, config.WindowHeight),
		sound:      sound.New(logger),
		share:      newSharer(logger),
		lastCursor: [2]int{-1, -1},
	}
	g.confetti = confetti.New(g.sched, g.layer, confetti.WithBounds(config.WindowWidth, config.WindowHeight))

	fx := (config.WindowWidth - fieldWidth) / 2
	g.fields = []*textField{
		{label: "Their name", placeholder: "who are you asking?", max: nameMax,
			rect: box{fx, 250, fieldWidth, fieldHeight}},
		{label: "Message when they say yes", placeholder: prank.DefaultMessage, max: messageMax,
			rect: box{fx, 330, fieldWidth, fieldHeight}},
	}

	ctrlOpts := []prank.Option{
		prank.WithSounds(g.sound),
		prank.WithLogger(logger),
		prank.WithBaseURL(opts.BaseURL),
		prank.WithNotify(g.notified),
	}
	if opts.Store != nil {
		ctrlOpts = append(ctrlOpts, prank.WithStore(opts.Store))
	}
	g.ctrl = prank.NewController(g.confetti, nil, opts.Params, ctrlOpts...)
	g.ctrl.Interaction().Resize(arenaSize())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	g.hearts = make([]heart, config.FloatingHearts)
	for i := range g.hearts {
		g.hearts[i] = newHeart(rng, rng.Float64()*config.WindowHeight)
	}
	return g
}

func newHeart(rng *rand.Rand, y float64) heart {
	return heart{
		x:     rng.Float64() * config.WindowWidth,
		y:     y,
		size:  8 + rng.Float64()*14,
		speed: 0.3 + rng.Float64()*0.7,
		sway:  rng.Float64() * 6,
		hue:   330 + rng.Float64()*40,
	}
}

func arenaSize() dodge.Size {
	return dodge.Size{W: config.WindowWidth - 2*config.ArenaMargin, H: config.ArenaHeight}
}

// toArena converts screen pixels to arena coordinates.
func toArena(x, y int) dodge.Point {
	return dodge.Point{X: float64(x - config.ArenaMargin), Y: float64(y - config.ArenaTop)}
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	g.ctrl.Interaction().Resize(arenaSize())

	mx, my := ebiten.CursorPosition()
	g.hovered = actionNone
	for _, b := range g.buttons() {
		if b.rect.contains(mx, my) {
			g.hovered = b.action
		}
	}

	switch g.ctrl.Stage() {
	case prank.StageInput:
		g.updateInput(mx, my)
	case prank.StagePrank:
		g.updatePrank(mx, my)
	case prank.StageCelebration:
		g.updateCelebration()
	}
	g.updateButtons()

	if g.ctrl.Stage() != prank.StageInput && inpututil.IsKeyJustPressed(ebiten.KeyM) {
		g.sound.ToggleMute()
		if g.sound.Muted() {
			g.showToast("Sound off")
		} else {
			g.showToast("Sound on")
		}
	}

	g.sched.Tick()
	g.ctrl.Update()

drain:
	for {
		select {
		case msg := <-g.share.results:
			g.showToast(msg)
		default:
			break drain
		}
	}
	if g.toastLeft > 0 {
		g.toastLeft--
	}

	level := g.sound.Level()
	g.glow = g.glow*config.SmoothingFactor + level*(1-config.SmoothingFactor)

	g.frame++
	g.phase += config.ColorShiftSpeed
	for i := range g.hearts {
		h := &g.hearts[i]
		h.y -= h.speed
		if h.y < -h.size {
			h.y = config.WindowHeight + h.size
		}
	}
	return nil
}

func (g *Game) updateInput(mx, my int) {
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		for i, f := range g.fields {
			if f.rect.contains(mx, my) {
				g.focus = i
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.focus = (g.focus + 1) % len(g.fields)
	}

	f := g.fields[g.focus]
	g.runes = ebiten.AppendInputChars(g.runes[:0])
	edited := f.Insert(g.runes)
	if repeating(ebiten.KeyBackspace) {
		edited = f.Backspace() || edited
	}
	if edited {
		g.ctrl.SetRecipient(g.fields[0].String())
		g.ctrl.SetMessage(g.fields[1].String())
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		g.generate()
	}
}

// repeating reports a key press on the first frame and then at the key
// repeat rate while it is held.
func repeating(k ebiten.Key) bool {
	d := inpututil.KeyPressDuration(k)
	return d == 1 || (d >= repeatDelay && (d-repeatDelay)%repeatEvery == 0)
}

func (g *Game) updatePrank(mx, my int) {
	if mx != g.lastCursor[0] || my != g.lastCursor[1] {
		g.lastCursor = [2]int{mx, my}
		g.ctrl.PointerMoved(toArena(mx, my))
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.arm()
		g.ctrl.Click(toArena(mx, my))
	}
	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		g.arm()
		tx, ty := ebiten.TouchPosition(id)
		g.ctrl.TouchStarted(toArena(tx, ty))
	}
	if g.ctrl.Owner() && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.share.CopyLink(g.ctrl.Link())
	}
}

func (g *Game) updateCelebration() {
	if g.ctrl.Owner() && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.share.CopyLink(g.ctrl.Link())
	}
}

// updateButtons fires a button when a press and release both land on it.
func (g *Game) updateButtons() {
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.pressed = g.hovered
	}
	if !inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		return
	}
	a := actionNone
	if g.pressed == g.hovered {
		a = g.pressed
	}
	g.pressed = actionNone

	switch a {
	case actionGenerate:
		g.generate()
	case actionCopy:
		g.share.CopyLink(g.ctrl.Link())
	case actionAnother:
		if g.ctrl.Reset() {
			g.focus = 0
			g.lastCursor = [2]int{-1, -1}
		}
	}
}

func (g *Game) generate() {
	g.arm()
	if !g.ctrl.Generate() {
		g.showToast("Type their name first")
		return
	}
	g.lastCursor = [2]int{-1, -1}
	g.share.CopyLink(g.ctrl.Link())
}

// arm opens the audio device on the first user gesture.
func (g *Game) arm() {
	if g.armed {
		return
	}
	g.armed = true
	if err := g.sound.Arm(); err != nil {
		g.showToast("No sound device")
	}
}

// buttons lists the clickable actions of the current stage.
func (g *Game) buttons() []button {
	cx := config.WindowWidth / 2
	switch g.ctrl.Stage() {
	case prank.StageInput:
		return []button{{
			label:  "Generate link",
			rect:   box{cx - config.ActionWidth/2, 410, config.ActionWidth, config.ActionHeight},
			action: actionGenerate,
		}}
	case prank.StagePrank:
		if !g.ctrl.Owner() || g.ctrl.Link() == "" {
			return nil
		}
		return []button{{
			label:  "Copy link",
			rect:   box{cx - config.ActionWidth/2, config.ArenaTop + config.ArenaHeight + 40, config.ActionWidth, config.ActionHeight},
			action: actionCopy,
		}}
	case prank.StageCelebration:
		if !g.ctrl.Owner() {
			return nil
		}
		y := config.WindowHeight - 140
		return []button{
			{label: "Make another", rect: box{cx - config.ActionWidth - 10, y, config.ActionWidth, config.ActionHeight}, action: actionAnother},
			{label: "Copy link", rect: box{cx + 10, y, config.ActionWidth, config.ActionHeight}, action: actionCopy},
		}
	}
	return nil
}

// notified is called by the controller on the frame loop.
func (g *Game) notified(ev notify.Event) {
	msg := ev.String()
	g.showToast(msg)
	g.share.Notify(msg)
}

func (g *Game) showToast(msg string) {
	g.toast = msg
	g.toastLeft = config.ToastFrames
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return config.WindowWidth, config.WindowHeight
}

// Close waits briefly for queued tracking writes and releases the session.
func (g *Game) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.ctrl.Flush(ctx); err != nil {
		g.log.Warn("tracking writes not flushed", "err", err)
	}
	g.ctrl.Dispose()
}
