package session

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/folio/internal/config"
	"github.com/stolasapp/folio/internal/storage"
)

var testKey = strings.Repeat("k", 32)

func newTestStore(t *testing.T) (*Store, *storage.DB) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	backend, err := storage.NewDB(t.Context(), filepath.Join(t.TempDir(), "db.sqlite"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store, err := NewStore(backend, config.Session{TTL: time.Hour, HashKey: testKey}, logger)
	require.NoError(t, err)
	return store, backend
}

// roundTrip saves session and returns a request carrying the resulting
// cookie.
func roundTrip(t *testing.T, store *Store, req *http.Request, session *sessions.Session) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, session))
	next := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		next.AddCookie(cookie)
	}
	return next
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store, backend := newTestStore(t)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	session, err := store.Get(req, CookieName)
	require.NoError(t, err)
	assert.True(t, session.IsNew)
	assert.Empty(t, Identity(session))
	_, ok := Captcha(session)
	assert.False(t, ok)

	SetIdentity(session, "alice")
	SetCaptcha(session, 11)
	next := roundTrip(t, store, req, session)
	require.NotEmpty(t, session.ID)

	row, err := backend.GetSession(t.Context(), session.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), row.ExpiresAt, time.Minute)

	loaded, err := store.Get(next, CookieName)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, "alice", Identity(loaded))
	answer, ok := Captcha(loaded)
	assert.True(t, ok)
	assert.Equal(t, 11, answer)

	ClearIdentity(loaded)
	next = roundTrip(t, store, next, loaded)
	loaded, err = store.Get(next, CookieName)
	require.NoError(t, err)
	assert.Empty(t, Identity(loaded))
	_, ok = Captcha(loaded)
	assert.True(t, ok, "logout keeps the captcha")
}

func TestStore_Rotate(t *testing.T) {
	t.Parallel()

	store, backend := newTestStore(t)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	session, err := store.New(req, CookieName)
	require.NoError(t, err)
	SetCaptcha(session, 3)
	stale := roundTrip(t, store, req, session)
	oldID := session.ID

	require.NoError(t, store.Rotate(t.Context(), session))
	assert.Empty(t, session.ID)
	SetIdentity(session, "bob")
	fresh := roundTrip(t, store, req, session)
	assert.NotEqual(t, oldID, session.ID)

	_, err = backend.GetSession(t.Context(), oldID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	loaded, err := store.New(stale, CookieName)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew)
	assert.Empty(t, Identity(loaded))

	loaded, err = store.New(fresh, CookieName)
	require.NoError(t, err)
	assert.Equal(t, "bob", Identity(loaded))
}

func TestStore_Expired(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	session, err := store.New(req, CookieName)
	require.NoError(t, err)
	SetIdentity(session, "carol")
	next := roundTrip(t, store, req, session)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	loaded, err := store.New(next, CookieName)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew)
	assert.Empty(t, Identity(loaded))

	require.NoError(t, store.Purge(t.Context()))
	store.now = time.Now
	loaded, err = store.New(next, CookieName)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew, "purged session is gone")
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store, backend := newTestStore(t)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	session, err := store.New(req, CookieName)
	require.NoError(t, err)
	roundTrip(t, store, req, session)

	session.Options.MaxAge = -1
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, session))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)

	_, err = backend.GetSession(t.Context(), session.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_RejectsTamperedCookie(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	session, err := store.New(req, CookieName)
	require.NoError(t, err)
	assert.True(t, session.IsNew)

	other, err := NewStore(nil, config.Session{TTL: time.Hour, HashKey: strings.Repeat("x", 32)}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	signed := roundTrip(t, store, req, session)
	loaded, err := other.New(signed, CookieName)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew, "cookie signed with another key is ignored")
}

func TestNewStore_HashKey(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	_, err := NewStore(nil, config.Session{TTL: time.Hour, HashKey: "short"}, logger)
	require.Error(t, err)

	store, err := NewStore(nil, config.Session{TTL: time.Hour}, logger)
	require.NoError(t, err)
	assert.Len(t, store.codecs, 1)
	assert.Equal(t, 3600, store.options.MaxAge)
	assert.True(t, store.options.HttpOnly)
}
