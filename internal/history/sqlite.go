//go:build sqlite
// +build sqlite

package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"metronome/pkg/logx"
	"metronome/timer"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	st := &sqliteStore{db: db, log: log, keep: keep, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history migrate: %w", err)
	}
	log.Debug("history sqlite opened", logx.String("path", cfg.Path), logx.Int("keep", keep))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// RecordFire is called from the scheduler goroutine; failures are logged, not
// surfaced, so a broken disk cannot affect notification delivery.
func (s *sqliteStore) RecordFire(r timer.FireRecord) {
	once := 0
	if r.Once {
		once = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO fire_history (subscriber, at_unix_ms, took_ms, once, error) VALUES (?, ?, ?, ?, ?)`,
		r.Subscriber, r.At.UnixMilli(), r.Took.Milliseconds(), once, r.Error,
	)
	if err != nil {
		s.log.Warn("history insert failed", logx.Err(err))
		return
	}
	if s.opCount.Add(1)%s.pruneEvery == 0 {
		s.prune()
	}
}

func (s *sqliteStore) prune() {
	_, err := s.db.Exec(
		`DELETE FROM fire_history WHERE id NOT IN (SELECT id FROM fire_history ORDER BY id DESC LIMIT ?)`,
		s.keep,
	)
	if err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
	}
}

func (s *sqliteStore) Close() error { return s.db.Close() }
