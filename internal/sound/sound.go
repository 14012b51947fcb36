// Package sound synthesizes the feedback tones and plays them through the
// speaker.
package sound

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/config"
)

const sampleRate = beep.SampleRate(44100)

// tone is a synthesized sine sweep from f0 to f1 with an attack/decay
// envelope.
type tone struct {
	sr      beep.SampleRate
	n, pos  int
	f0, f1  float64
	gain    float64
	attack  int
	falloff float64
	phase   float64
}

func newTone(sr beep.SampleRate, d time.Duration, f0, f1, gain, falloff float64) *tone {
	n := sr.N(d)
	return &tone{
		sr:      sr,
		n:       n,
		f0:      f0,
		f1:      f1,
		gain:    gain,
		attack:  sr.N(5 * time.Millisecond),
		falloff: falloff,
	}
}

// chirp is the rising success sound.
func chirp(sr beep.SampleRate) *tone {
	return newTone(sr, 350*time.Millisecond, 520, 1040, 0.35, 3)
}

// thud is the short low knock played on every dodge.
func thud(sr beep.SampleRate) *tone {
	return newTone(sr, 120*time.Millisecond, 140, 60, 0.5, 6)
}

func (t *tone) Stream(samples [][2]float64) (int, bool) {
	if t.pos >= t.n {
		return 0, false
	}
	i := 0
	for ; i < len(samples) && t.pos < t.n; i++ {
		p := float64(t.pos) / float64(t.n)
		freq := t.f0 + (t.f1-t.f0)*p
		t.phase += 2 * math.Pi * freq / float64(t.sr)

		env := math.Exp(-t.falloff * p)
		if t.pos < t.attack {
			env *= float64(t.pos) / float64(t.attack)
		}
		v := math.Sin(t.phase) * t.gain * env
		samples[i] = [2]float64{v, v}
		t.pos++
	}
	return i, true
}

func (t *tone) Err() error { return nil }

// Player plays the feedback tones. The speaker is only opened on the first
// user gesture; until then, and after a failed open, tones are dropped.
type Player struct {
	log *slog.Logger

	once   sync.Once
	ready  atomic.Bool
	mixer  *beep.Mixer
	ctrl   *beep.Ctrl
	tap    *levelTap
	active atomic.Int32
	muted  bool
}

func New(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	mixer := &beep.Mixer{}
	ctrl := &beep.Ctrl{Streamer: mixer}
	return &Player{
		log:   logger,
		mixer: mixer,
		ctrl:  ctrl,
		tap:   newLevelTap(ctrl, config.LevelWindow),
	}
}

// Arm opens the speaker. Call it from an input handler.
func (p *Player) Arm() error {
	var err error
	p.once.Do(func() {
		if err = speaker.Init(sampleRate, sampleRate.N(time.Second/20)); err != nil {
			err = errors.Wrap(err, "open speaker")
			p.log.Warn("audio disabled", "err", err)
			return
		}
		speaker.Play(p.tap)
		p.ready.Store(true)
	})
	return err
}

func (p *Player) Chirp() { p.play(chirp(sampleRate)) }
func (p *Player) Thud()  { p.play(thud(sampleRate)) }

func (p *Player) play(s beep.Streamer) {
	if !p.ready.Load() {
		return
	}
	p.active.Add(1)
	speaker.Lock()
	p.mixer.Add(beep.Seq(s, beep.Callback(func() {
		p.active.Add(-1)
	})))
	speaker.Unlock()
}

// ToggleMute pauses the mixer without dropping queued tones.
func (p *Player) ToggleMute() {
	if !p.ready.Load() {
		return
	}
	speaker.Lock()
	p.muted = !p.muted
	p.ctrl.Paused = p.muted
	speaker.Unlock()
}

func (p *Player) Muted() bool { return p.muted }

// Level is the loudness of the last few milliseconds of output.
func (p *Player) Level() float64 {
	if p.active.Load() == 0 {
		return 0
	}
	return p.tap.level()
}
