// Package migrations holds the schema history of the folio database. SQL
// migrations are embedded from this directory; migrations that need to
// inspect the live schema are written in Go.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contains the SQL migrations.
//
//go:embed *.sql
var FS embed.FS

// accountColumnsVersion adds the credential columns to accounts tables that
// predate them. It sits between the SQL migrations 00001 and 00003.
const accountColumnsVersion = 2

// accountColumns are the credential columns every accounts table must carry.
var accountColumns = []struct {
	name string
	decl string
}{
	{name: "password", decl: "TEXT NOT NULL DEFAULT ''"},
	{name: "totp_secret", decl: "TEXT"},
	{name: "last_login", decl: "TIMESTAMP"},
}

// Go returns the Go migrations to register alongside [FS].
func Go() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(
			accountColumnsVersion,
			&goose.GoFunc{RunTx: addAccountColumns},
			&goose.GoFunc{RunTx: dropAccountColumns},
		),
	}
}

// addAccountColumns adds each missing credential column. Columns that are
// already present are left untouched, so it is safe against databases that
// were partially upgraded by hand.
func addAccountColumns(ctx context.Context, tx *sql.Tx) error {
	for _, col := range accountColumns {
		present, err := hasColumn(ctx, tx, "accounts", col.name)
		if err != nil {
			return err
		}
		if present {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE accounts ADD COLUMN %s %s", col.name, col.decl)
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add accounts.%s: %w", col.name, err)
		}
	}
	return nil
}

func dropAccountColumns(ctx context.Context, tx *sql.Tx) error {
	for i := len(accountColumns) - 1; i >= 0; i-- {
		name := accountColumns[i].name
		present, err := hasColumn(ctx, tx, "accounts", name)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		if _, err = tx.ExecContext(ctx, "ALTER TABLE accounts DROP COLUMN "+name); err != nil {
			return fmt.Errorf("failed to drop accounts.%s: %w", name, err)
		}
	}
	return nil
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}
