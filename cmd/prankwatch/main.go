// Command prankwatch follows a shared link's record in the terminal and
// prints the notifications its owner would get.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/backend"
	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/logging"
	"github.com/iburimskiy/sayyes/internal/prank"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

const logFileName = "prankwatch.log"

var (
	styleTitle = tcell.StyleDefault.Foreground(tcell.ColorHotPink).Bold(true)
	styleLabel = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleEvent = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleHint  = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

func main() {
	cfg := config.Load()
	if cfg.Store == config.StoreNone {
		cfg.Store = config.StoreWS
	}
	flag.StringVar(&cfg.Store, "store", cfg.Store, "tracking store: ws, dynamo, postgres")
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "trackd websocket URL for -store=ws")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "write debug logs to logs/"+logFileName)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: prankwatch [flags] <session id | link>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	sid, err := sessionID(flag.Arg(0))
	if err != nil {
		flag.Usage()
		fmt.Fprintf(os.Stderr, "\nprankwatch: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, sid); err != nil {
		fmt.Fprintf(os.Stderr, "prankwatch: %v\n", err)
		os.Exit(1)
	}
}

// sessionID accepts a bare id or a link carrying one.
func sessionID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("missing session id")
	}
	if !strings.ContainsAny(arg, "?=") {
		return arg, nil
	}
	p, err := prank.ParseLink(arg)
	if err != nil {
		return "", err
	}
	if p.SessionID == "" {
		return "", errors.New("link has no session id")
	}
	return p.SessionID, nil
}

func run(cfg config.Config, sid string) error {
	// The terminal belongs to the screen, so logs go to a file or nowhere.
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Discard = true
	if cfg.Debug {
		lc.File = logFileName
	}
	logger, closer, err := logging.Setup(lc)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	octx, ocancel := context.WithTimeout(ctx, 10*time.Second)
	store, release, err := backend.Open(octx, cfg, logger)
	ocancel()
	if err != nil {
		return err
	}
	defer release()
	if store == nil {
		return errors.New("no tracking store configured")
	}

	client := tracking.NewClient(store, sid, tracking.WithLogger(logger))
	defer client.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return errors.Wrap(err, "open terminal")
	}
	if err := screen.Init(); err != nil {
		return errors.Wrap(err, "init terminal")
	}
	defer screen.Fini()

	watch := client.Watch()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-watch:
				if err := screen.PostEvent(tcell.NewEventInterrupt(rec)); err != nil {
					logger.Debug("dropped snapshot", "err", err)
				}
			}
		}
	}()

	v := newView(sid)
	draw(screen, v)
	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				return nil
			}
		case *tcell.EventInterrupt:
			if rec, ok := ev.Data().(*tracking.Record); ok {
				if events := v.Observe(rec); len(events) > 0 {
					screen.Beep()
				}
			}
		}
		draw(screen, v)
	}
}

func draw(s tcell.Screen, v *view) {
	s.Clear()
	w, h := s.Size()

	puts(s, 1, 0, w, styleTitle, "prankwatch  "+v.sid)
	y := 2
	for _, line := range v.status() {
		puts(s, 2, y, w, styleLabel, line)
		y++
	}
	y++
	puts(s, 1, y, w, styleTitle, "notifications")
	y++
	for _, line := range v.tail(h - y - 2) {
		puts(s, 2, y, w, styleEvent, line)
		y++
	}
	puts(s, 1, h-1, w, styleHint, "q / Esc: quit")
	s.Show()
}

func puts(s tcell.Screen, x, y, w int, style tcell.Style, str string) {
	for _, r := range str {
		if x >= w {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
