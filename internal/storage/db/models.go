package db

import (
	"database/sql"
	"time"
)

// Account is a row of the accounts table. Password holds a bcrypt hash, or the
// plaintext of an account created before hashing was introduced.
type Account struct {
	ID         uint64
	Name       string
	Password   string
	TotpSecret sql.NullString
	LastLogin  sql.NullTime
}

// Enrolled reports whether the account has a TOTP secret.
func (a Account) Enrolled() bool {
	return a.TotpSecret.Valid && a.TotpSecret.String != ""
}

// Item is a row of the read-only catalog.
type Item struct {
	ID     uint64
	Title  string
	Author string
}

// Session is a persisted server-side session. Data is the encoded session
// values; ExpiresAt has second precision.
type Session struct {
	ID        string
	Data      []byte
	ExpiresAt time.Time
}
