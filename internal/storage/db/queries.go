package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both [sql.DB] and [sql.Tx].
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the statements run against the folio schema.
type Queries struct {
	db DBTX
}

// New returns a Queries executing against db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const accountColumns = `id, name, coalesce(password, ''), totp_secret, last_login`

func scanAccount(row interface{ Scan(dest ...any) error }) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Password, &a.TotpSecret, &a.LastLogin)
	return a, err
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

// GetAccount returns the account with the given ID.
func (q *Queries) GetAccount(ctx context.Context, id uint64) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const getAccountByName = `SELECT ` + accountColumns + ` FROM accounts WHERE name = ? ORDER BY id LIMIT 1`

// GetAccountByName returns the oldest account with the given name.
func (q *Queries) GetAccountByName(ctx context.Context, name string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByName, name))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts WHERE (name, id) > (?, ?) ORDER BY name, id LIMIT ?`

// ListAccountsParams pages accounts by (name, id).
type ListAccountsParams struct {
	AfterName string
	AfterID   uint64
	Limit     int64
}

// ListAccounts returns up to Limit accounts ordered by name then ID, strictly
// after the (AfterName, AfterID) cursor.
func (q *Queries) ListAccounts(ctx context.Context, arg ListAccountsParams) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, arg.AfterName, arg.AfterID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const createAccount = `
INSERT INTO accounts (id, name, password, totp_secret)
SELECT ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM accounts WHERE name = ?)
RETURNING id`

// CreateAccountParams are the columns set on account creation.
type CreateAccountParams struct {
	ID         uint64
	Name       string
	Password   string
	TotpSecret sql.NullString
}

// CreateAccount inserts the account unless one with the same name exists, in
// which case [sql.ErrNoRows] is returned.
func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (uint64, error) {
	var id uint64
	err := q.db.QueryRowContext(ctx, createAccount,
		arg.ID, arg.Name, arg.Password, arg.TotpSecret, arg.Name,
	).Scan(&id)
	return id, err
}

const setAccountTotpSecret = `
UPDATE accounts SET totp_secret = ?
WHERE id = ? AND (totp_secret IS NULL OR totp_secret = '')`

// SetAccountTotpSecretParams identify the account to enroll.
type SetAccountTotpSecretParams struct {
	ID         uint64
	TotpSecret string
}

// SetAccountTotpSecret stores the secret only if the account has none, and
// returns the number of rows changed.
func (q *Queries) SetAccountTotpSecret(ctx context.Context, arg SetAccountTotpSecretParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, setAccountTotpSecret, arg.TotpSecret, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setAccountPassword = `UPDATE accounts SET password = ? WHERE id = ?`

// SetAccountPassword replaces the stored password.
func (q *Queries) SetAccountPassword(ctx context.Context, id uint64, password string) error {
	_, err := q.db.ExecContext(ctx, setAccountPassword, password, id)
	return err
}

const setAccountLastLogin = `UPDATE accounts SET last_login = ? WHERE id = ?`

// SetAccountLastLogin records the time of a successful login.
func (q *Queries) SetAccountLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, setAccountLastLogin, at, id)
	return err
}

const listItems = `SELECT id, title, author FROM items WHERE id > ? ORDER BY id LIMIT ?`

// ListItemsParams pages items by ID.
type ListItemsParams struct {
	AfterID uint64
	Limit   int64
}

// ListItems returns up to Limit items ordered by ID, strictly after AfterID.
func (q *Queries) ListItems(ctx context.Context, arg ListItemsParams) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, listItems, arg.AfterID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []Item
	for rows.Next() {
		var i Item
		if err := rows.Scan(&i.ID, &i.Title, &i.Author); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countItems = `SELECT count(*) FROM items`

// CountItems returns the size of the catalog.
func (q *Queries) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countItems).Scan(&count)
	return count, err
}

const createItem = `INSERT INTO items (id, title, author) VALUES (?, ?, ?)`

// CreateItem inserts a catalog item.
func (q *Queries) CreateItem(ctx context.Context, arg Item) error {
	_, err := q.db.ExecContext(ctx, createItem, arg.ID, arg.Title, arg.Author)
	return err
}

const getSession = `SELECT id, data, expires_at FROM sessions WHERE id = ?`

// GetSession returns the session with the given ID, expired or not.
func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	var (
		s       Session
		expires int64
	)
	err := q.db.QueryRowContext(ctx, getSession, id).Scan(&s.ID, &s.Data, &expires)
	s.ExpiresAt = time.Unix(expires, 0)
	return s, err
}

const upsertSession = `
INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`

// UpsertSession creates or replaces a session.
func (q *Queries) UpsertSession(ctx context.Context, arg Session) error {
	_, err := q.db.ExecContext(ctx, upsertSession, arg.ID, arg.Data, arg.ExpiresAt.Unix())
	return err
}

const deleteSession = `DELETE FROM sessions WHERE id = ?`

// DeleteSession removes a session. Deleting a missing session is not an error.
func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

// DeleteExpiredSessions removes every session expiring at or before the given
// time and returns how many were removed.
func (q *Queries) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
