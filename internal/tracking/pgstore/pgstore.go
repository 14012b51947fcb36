// Package pgstore implements tracking.Store on PostgreSQL. Every write is
// followed by a pg_notify on the records channel; subscriptions LISTEN on a
// dedicated pooled connection and re-read the row when their id is named.
package pgstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/tracking"
)

const channel = "prank_records"

const schema = `
CREATE TABLE IF NOT EXISTS prank_records (
	id           TEXT PRIMARY KEY,
	created      TIMESTAMPTZ NOT NULL,
	opened       TIMESTAMPTZ,
	answered     TIMESTAMPTZ,
	escape_count INTEGER NOT NULL DEFAULT 0 CHECK (escape_count >= 0),
	last_updated TIMESTAMPTZ NOT NULL
)`

const columns = `id, created, opened, answered, escape_count, last_updated`

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

// Connect opens a pool for url and makes sure the table exists.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "open pool")
	}
	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return errors.Wrap(err, "migrate prank_records")
}

func (s *Store) Close() {
	s.db.Close()
}

func scanRecord(row pgx.Row) (*tracking.Record, error) {
	var rec tracking.Record
	err := row.Scan(&rec.ID, &rec.Created, &rec.Opened, &rec.Answered, &rec.EscapeCount, &rec.LastUpdated)
	if err != nil {
		return nil, err
	}
	rec.Created = rec.Created.UTC()
	rec.LastUpdated = rec.LastUpdated.UTC()
	if rec.Opened != nil {
		t := rec.Opened.UTC()
		rec.Opened = &t
	}
	if rec.Answered != nil {
		t := rec.Answered.UTC()
		rec.Answered = &t
	}
	return &rec, nil
}

func (s *Store) Apply(ctx context.Context, id string, m tracking.Mutation) (*tracking.Record, error) {
	if id == "" {
		return nil, tracking.ErrEmptyID
	}
	if m.EscapeCount < 0 {
		return nil, tracking.ErrNegativeN
	}
	at := m.At.UTC().Truncate(time.Millisecond)

	var (
		rec *tracking.Record
		err error
	)
	switch m.Op {
	case tracking.OpCreate:
		rec, err = scanRecord(s.db.QueryRow(ctx, `
			INSERT INTO prank_records (id, created, escape_count, last_updated)
			VALUES ($1, $2, 0, $2)
			ON CONFLICT (id) DO NOTHING
			RETURNING `+columns, id, at))
		if err == pgx.ErrNoRows {
			return s.Get(ctx, id)
		}

	case tracking.OpOpen:
		rec, err = scanRecord(s.db.QueryRow(ctx, `
			INSERT INTO prank_records (id, created, opened, escape_count, last_updated)
			VALUES ($1, $2, $2, 0, $2)
			ON CONFLICT (id) DO UPDATE SET opened = COALESCE(prank_records.opened, EXCLUDED.opened)
			RETURNING `+columns, id, at))

	case tracking.OpEscape, tracking.OpAnswer:
		rec, err = scanRecord(s.db.QueryRow(ctx, `
			UPDATE prank_records
			SET escape_count = $2,
				last_updated = $3,
				answered = CASE WHEN $4 THEN COALESCE(answered, $3) ELSE answered END
			WHERE id = $1
			RETURNING `+columns, id, m.EscapeCount, at, m.Op == tracking.OpAnswer))
		if err == pgx.ErrNoRows {
			return nil, errors.Wrapf(tracking.ErrNotFound, "%s %s", m.Op, id)
		}

	default:
		return nil, errors.Wrapf(tracking.ErrInvalidOp, "op %d", m.Op)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", m.Op, id)
	}

	if _, err := s.db.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, id); err != nil {
		s.log.Warn("notify failed", "sid", id, "err", err)
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, id string) (*tracking.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+columns+` FROM prank_records WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", id)
	}
	return rec, nil
}

// Subscribe holds one pooled connection for as long as the subscription lives.
func (s *Store) Subscribe(ctx context.Context, id string, fn func(*tracking.Record)) (func(), error) {
	if id == "" {
		return nil, tracking.ErrEmptyID
	}
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire listener")
	}
	if _, err := conn.Exec(ctx, `LISTEN `+channel); err != nil {
		conn.Release()
		return nil, errors.Wrap(err, "listen")
	}

	last, err := s.Get(ctx, id)
	if err != nil {
		conn.Exec(context.Background(), `UNLISTEN *`)
		conn.Release()
		return nil, err
	}
	fn(last.Clone())

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer func() {
			conn.Exec(context.Background(), `UNLISTEN *`)
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("listener stopped", "sid", id, "err", err)
				}
				return
			}
			if n.Payload != id {
				continue
			}
			cur, err := s.Get(ctx, id)
			if err != nil {
				s.log.Debug("reload failed", "sid", id, "err", err)
				continue
			}
			if cur.Equal(last) {
				continue
			}
			last = cur
			fn(cur.Clone())
		}
	}()
	return cancel, nil
}
