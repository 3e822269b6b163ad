package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/influxdata/influxdb/pkg/snowflake"

	"github.com/stolasapp/folio/internal/storage/db"
)

// Username validation constraints.
const (
	minUsernameLen = 3
	maxUsernameLen = 64
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidUsername reports whether a username meets the requirements:
// 3-64 characters, alphanumeric and underscores only.
func ValidUsername(name string) bool {
	return len(name) >= minUsernameLen &&
		len(name) <= maxUsernameLen &&
		usernameRegex.MatchString(name)
}

// DB is a [Store] backed by a SQLite database.
type DB struct {
	ids     *snowflake.Generator
	db      *sql.DB
	queries *db.Queries
}

// NewDB opens (creating and migrating as needed) the SQLite database at
// dbPath.
func NewDB(ctx context.Context, dbPath string, logger *slog.Logger) (*DB, error) {
	handle, err := db.Open(ctx, logger, dbPath)
	if err != nil {
		return nil, err
	}
	return &DB{
		ids:     snowflake.New(rand.IntN(1023)), //nolint:gosec,mnd // this isn't for crypto
		db:      handle,
		queries: db.New(handle),
	}, nil
}

// Close satisfies the [Store] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// ListAccounts satisfies the [Accounts] interface.
func (d *DB) ListAccounts(ctx context.Context, after AccountCursor, limit int32) ([]db.Account, error) {
	return d.queries.ListAccounts(ctx, db.ListAccountsParams{
		AfterName: after.Name,
		AfterID:   after.ID,
		Limit:     int64(limit),
	})
}

// GetAccountByName satisfies the [Accounts] interface.
func (d *DB) GetAccountByName(ctx context.Context, name string) (db.Account, error) {
	account, err := d.queries.GetAccountByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return account, ErrNotFound
	}
	return account, err
}

// CreateAccount satisfies the [Accounts] interface.
func (d *DB) CreateAccount(ctx context.Context, account db.Account) (db.Account, error) {
	if !ValidUsername(account.Name) {
		return account, ErrInvalidUsername
	}
	if account.ID == 0 {
		account.ID = d.ids.Next()
	}
	id, err := d.queries.CreateAccount(ctx, db.CreateAccountParams{
		ID:         account.ID,
		Name:       account.Name,
		Password:   account.Password,
		TotpSecret: account.TotpSecret,
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return account, ErrAlreadyExists
	case err != nil:
		return account, err
	}
	account.ID = id
	return account, nil
}

// SetTOTPSecret satisfies the [Accounts] interface.
func (d *DB) SetTOTPSecret(ctx context.Context, accountID uint64, secret string) error {
	n, err := d.queries.SetAccountTotpSecret(ctx, db.SetAccountTotpSecretParams{
		ID:         accountID,
		TotpSecret: secret,
	})
	switch {
	case err != nil:
		return err
	case n > 0:
		return nil
	}
	// distinguish a missing account from one that is already enrolled
	if _, err = d.queries.GetAccount(ctx, accountID); errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return ErrAlreadyExists
}

// SetPassword satisfies the [Accounts] interface.
func (d *DB) SetPassword(ctx context.Context, accountID uint64, hash string) error {
	return d.queries.SetAccountPassword(ctx, accountID, hash)
}

// RecordLogin satisfies the [Accounts] interface.
func (d *DB) RecordLogin(ctx context.Context, accountID uint64, at time.Time) error {
	return d.queries.SetAccountLastLogin(ctx, accountID, at.UTC())
}

// ListItems satisfies the [Items] interface.
func (d *DB) ListItems(ctx context.Context, afterID uint64, limit int32) ([]db.Item, error) {
	return d.queries.ListItems(ctx, db.ListItemsParams{
		AfterID: afterID,
		Limit:   int64(limit),
	})
}

// CountItems satisfies the [Items] interface.
func (d *DB) CountItems(ctx context.Context) (int64, error) {
	return d.queries.CountItems(ctx)
}

// CreateItem satisfies the [Items] interface.
func (d *DB) CreateItem(ctx context.Context, item db.Item) (db.Item, error) {
	if item.ID == 0 {
		item.ID = d.ids.Next()
	}
	return item, d.queries.CreateItem(ctx, item)
}

// GetSession satisfies the [Sessions] interface.
func (d *DB) GetSession(ctx context.Context, id string) (db.Session, error) {
	session, err := d.queries.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return session, ErrNotFound
	}
	return session, err
}

// UpsertSession satisfies the [Sessions] interface.
func (d *DB) UpsertSession(ctx context.Context, session db.Session) error {
	return d.queries.UpsertSession(ctx, session)
}

// DeleteSession satisfies the [Sessions] interface.
func (d *DB) DeleteSession(ctx context.Context, id string) error {
	return d.queries.DeleteSession(ctx, id)
}

// DeleteExpiredSessions satisfies the [Sessions] interface.
func (d *DB) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	return d.queries.DeleteExpiredSessions(ctx, before)
}

var _ Store = (*DB)(nil)
