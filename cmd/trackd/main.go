// Command trackd serves prank records to the app's ws store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/iburimskiy/sayyes/internal/backend"
	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/hub"
	"github.com/iburimskiy/sayyes/internal/logging"
)

const shutdownGrace = 5 * time.Second

func main() {
	cfg := config.Load()
	if cfg.Store == config.StoreNone {
		cfg.Store = config.StoreMemory
	}

	var schemaOut string
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "backing store: memory, dynamo, postgres")
	flag.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "postgres connection URL for -store=postgres")
	flag.StringVar(&cfg.DynamoTable, "table", cfg.DynamoTable, "DynamoDB table for -store=dynamo")
	flag.StringVar(&schemaOut, "schema", "", "write the record JSON schema to this path (- for stdout) and exit")
	flag.Parse()

	if schemaOut != "" {
		if err := writeSchema(schemaOut); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "trackd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	if cfg.Debug {
		lc.Level = slog.LevelDebug
	}
	logger, closer, err := logging.Setup(lc)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Store == config.StoreWS || cfg.Store == config.StoreNone {
		return errors.Errorf("store %q cannot back the server", cfg.Store)
	}
	store, release, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           hub.NewHandler(store, hub.Config{Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func writeSchema(path string) error {
	data, err := json.MarshalIndent(hub.Schema(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal schema")
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write schema")
}
