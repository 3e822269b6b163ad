// Package storage provides the state management for accounts, the catalog and
// sessions.
package storage

import (
	"context"
	"time"

	"github.com/stolasapp/folio/internal/storage/db"
)

const (
	// ErrNotFound is returned when an account, item or session cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if a unique account or value already exists.
	ErrAlreadyExists Error = "already exists"
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername Error = "username must be 3-64 characters, alphanumeric and underscores only"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// AccountCursor is a position in the (name, id) ordering of accounts.
type AccountCursor struct {
	Name string
	ID   uint64
}

// CursorAfter returns the cursor positioned at account.
func CursorAfter(account db.Account) AccountCursor {
	return AccountCursor{Name: account.Name, ID: account.ID}
}

// Accounts are the methods on a storage implementation that are responsible
// for accessing and modifying accounts.
type Accounts interface {
	// ListAccounts returns the accounts ordered by name then ID, strictly
	// after the given cursor, up to the given limit of records. The zero
	// cursor starts from the beginning. Names are not unique in databases
	// created by earlier releases, so the cursor carries the ID too.
	ListAccounts(ctx context.Context, after AccountCursor, limit int32) ([]db.Account, error)
	// GetAccountByName returns a single account with the specified name. An
	// [ErrNotFound] is returned if the name does not exist.
	GetAccountByName(ctx context.Context, name string) (db.Account, error)
	// CreateAccount persists a new account and returns it with its assigned
	// ID. An [ErrAlreadyExists] error is returned if the name is in use, and
	// [ErrInvalidUsername] if the name is malformed.
	CreateAccount(ctx context.Context, account db.Account) (db.Account, error)
	// SetTOTPSecret enrolls an account that has no TOTP secret yet. Secrets
	// are never rotated: [ErrAlreadyExists] is returned if one is already set.
	SetTOTPSecret(ctx context.Context, accountID uint64, secret string) error
	// SetPassword replaces the stored password hash.
	SetPassword(ctx context.Context, accountID uint64, hash string) error
	// RecordLogin stores the time of a successful login.
	RecordLogin(ctx context.Context, accountID uint64, at time.Time) error
}

// Items are the methods on a storage implementation that are responsible for
// reading the catalog.
type Items interface {
	// ListItems returns catalog items ordered by ID, strictly after afterID, up
	// to limit records.
	ListItems(ctx context.Context, afterID uint64, limit int32) ([]db.Item, error)
	// CountItems returns the number of catalog items.
	CountItems(ctx context.Context) (int64, error)
	// CreateItem adds an item to the catalog, assigning its ID.
	CreateItem(ctx context.Context, item db.Item) (db.Item, error)
}

// Sessions are the methods on a storage implementation that persist
// server-side sessions.
type Sessions interface {
	// GetSession returns the session with the given ID. An [ErrNotFound] is
	// returned if it does not exist; expiry is not checked.
	GetSession(ctx context.Context, id string) (db.Session, error)
	// UpsertSession creates or replaces the session.
	UpsertSession(ctx context.Context, session db.Session) error
	// DeleteSession removes the session, if present.
	DeleteSession(ctx context.Context, id string) error
	// DeleteExpiredSessions removes sessions expiring at or before the given
	// time, returning the number removed.
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// Store is the combination interface for [Accounts], [Items] and [Sessions].
type Store interface {
	Accounts
	Items
	Sessions
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close() error
}
