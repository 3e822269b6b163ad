package sec

import (
	"context"

	"connectrpc.com/authn"

	"github.com/stolasapp/folio/internal/storage/db"
)

// GetAuthenticatedAccount returns the account attached to ctx by the session
// gate. Returns a zero-value Account if the context has no authenticated
// account.
func GetAuthenticatedAccount(ctx context.Context) db.Account {
	if account, ok := authn.GetInfo(ctx).(db.Account); ok {
		return account
	}
	return db.Account{}
}

// SetAuthenticatedAccount attaches the authenticated account to ctx.
func SetAuthenticatedAccount(ctx context.Context, account db.Account) context.Context {
	return authn.SetInfo(ctx, account)
}
