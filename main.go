package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/backend"
	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/game"
	"github.com/iburimskiy/sayyes/internal/logging"
	"github.com/iburimskiy/sayyes/internal/prank"
)

const logFileName = "prank.log"

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.Link, "link", cfg.Link, "open a shared link (URL or query string) instead of the setup screen")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "tracking store: none, memory, ws, dynamo, postgres")
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "trackd websocket URL for -store=ws")
	flag.StringVar(&cfg.BaseURL, "base", cfg.BaseURL, "address generated links point at")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "write debug logs to logs/"+logFileName)
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "sayyes: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	if cfg.Debug {
		lc.File = logFileName
		lc.Level = slog.LevelDebug
	}
	logger, closer, err := logging.Setup(lc)
	if err != nil {
		return err
	}
	defer closer.Close()

	params, err := prank.ParseLink(cfg.Link)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, release, err := backend.Open(ctx, cfg, logger)
	cancel()
	if err != nil {
		// Tracking is optional; the prank still works offline.
		logger.Warn("tracking disabled", "err", err)
		store, release = nil, func() {}
	}
	defer release()

	g := game.New(game.Options{
		Params:  params,
		Store:   store,
		BaseURL: cfg.BaseURL,
		Logger:  logger,
	})
	defer g.Close()

	ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
	ebiten.SetWindowTitle(title(params))
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return errors.Wrap(err, "run game")
	}
	return nil
}

func title(p prank.Params) string {
	if p.Recipient == "" {
		return "Say Yes - Esc: quit"
	}
	return "A question for " + p.Name()
}
