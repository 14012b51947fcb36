// Package backend opens the tracking.Store selected by configuration.
package backend

import (
	"context"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/config"
	"github.com/iburimskiy/sayyes/internal/tracking"
	"github.com/iburimskiy/sayyes/internal/tracking/dynamostore"
	"github.com/iburimskiy/sayyes/internal/tracking/pgstore"
	"github.com/iburimskiy/sayyes/internal/tracking/wsstore"
)

var ErrUnknownStore = errors.New("backend: unknown store")

// Open returns the configured store and a function releasing it. The "none"
// store is a nil Store: clients built on it do nothing.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (tracking.Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("store", cfg.Store)
	noop := func() {}

	switch cfg.Store {
	case config.StoreNone, "":
		return nil, noop, nil

	case config.StoreMemory:
		return tracking.NewMemoryStore(), noop, nil

	case config.StoreWS:
		s, err := wsstore.Dial(ctx, cfg.ServerURL, wsstore.WithLogger(logger))
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil

	case config.StoreDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, noop, errors.Wrap(err, "load aws config")
		}
		s := dynamostore.New(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable,
			dynamostore.WithLogger(logger),
			dynamostore.WithPollInterval(cfg.PollEvery))
		if err := s.Check(ctx); err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, noop, errors.New("backend: PRANK_DATABASE_URL is required for the postgres store")
		}
		s, err := pgstore.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, errors.Wrap(ErrUnknownStore, cfg.Store)
}
