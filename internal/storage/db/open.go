// Package db contains the sqlite queries, models and connection utilities used
// by the storage package.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"modernc.org/sqlite" // sqlite sql.DB driver initialization

	"github.com/stolasapp/folio/internal/storage/db/migrations"
)

// registerHook guards the process-wide driver connection hook.
var registerHook sync.Once

// Open initializes a SQLite DB connection to the specified dbPath. If the
// database file does not exist, it attempts to create it, and then migrates the
// database to match the current state expected of the system. Migration is
// idempotent and also upgrades databases created before the credential
// columns existed.
func Open(ctx context.Context, logger *slog.Logger, dbPath string) (*sql.DB, error) {
	if dbPath == ":memory:" { //nolint:revive // for documentation
		// noop
	} else if _, err := os.Stat(dbPath); err != nil {
		const userOnlyDirPerms = 0o700
		if err = os.MkdirAll(filepath.Dir(dbPath), userOnlyDirPerms); err != nil {
			return nil, fmt.Errorf("failed to create db parent directory: %w", err)
		}
	}

	if strings.ContainsRune(dbPath, '?') {
		dbPath += "&"
	} else {
		dbPath += "?"
	}
	dbPath += "_time_format=sqlite"

	registerHook.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			const initSQL = `
			pragma journal_mode = WAL; -- allow concurrent writes
			pragma synchronous = normal; -- don't wait for fsync except on checkpointing
			pragma temp_store = memory; -- temporary indices
			pragma busy_timeout = 5000; -- wait on writers instead of failing fast
			`
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})

	handle, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB handler: %w", err)
	} else if err = handle.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	handle.SetMaxOpenConns(1)

	if err = Migrate(ctx, logger.With(slog.String("db", dbPath)), handle); err != nil {
		return nil, errors.Join(err, handle.Close())
	}
	return handle, nil
}

// Migrate applies every pending migration to handle.
func Migrate(ctx context.Context, logger *slog.Logger, handle *sql.DB) error {
	provider, err := goose.NewProvider(
		database.DialectSQLite3,
		handle,
		migrations.FS,
		goose.WithGoMigrations(migrations.Go()...),
		goose.WithLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)),
		goose.WithVerbose(true),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}
	for _, res := range results {
		logger.InfoContext(ctx, "applied migration",
			slog.Int64("version", res.Source.Version),
			slog.Duration("duration", res.Duration),
		)
	}
	return nil
}
