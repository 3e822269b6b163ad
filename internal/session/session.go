// Package session implements server-side sessions as a [sessions.Store].
//
// The cookie carries only a signed random session ID. Session values are
// signed, serialized and persisted through [storage.Sessions] with an expiry
// that slides forward on every save.
package session

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/stolasapp/folio/internal/config"
	"github.com/stolasapp/folio/internal/storage"
	"github.com/stolasapp/folio/internal/storage/db"
)

// CookieName is the name of the session cookie.
const CookieName = "folio_session"

const (
	keyIdentity = "account"
	keyCaptcha  = "captcha"

	idBytes     = 32
	hashKeySize = 64
	minKeySize  = 32
)

// Store persists sessions in the database.
type Store struct {
	backend storage.Sessions
	codecs  []securecookie.Codec
	options sessions.Options
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore returns a Store configured from cfg. An empty cfg.HashKey produces
// a random signing key, which invalidates existing cookies on restart.
func NewStore(backend storage.Sessions, cfg config.Session, logger *slog.Logger) (*Store, error) {
	hashKey := []byte(cfg.HashKey)
	switch {
	case len(hashKey) == 0:
		hashKey = securecookie.GenerateRandomKey(hashKeySize)
		if hashKey == nil {
			return nil, errors.New("failed to generate session hash key")
		}
		logger.Warn("no session hash key configured, generated an ephemeral one")
	case len(hashKey) < minKeySize:
		return nil, fmt.Errorf("session hash key must be at least %d bytes", minKeySize)
	}

	maxAge := int(cfg.TTL / time.Second)
	codecs := securecookie.CodecsFromPairs(hashKey)
	for _, codec := range codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(maxAge)
		}
	}

	return &Store{
		backend: backend,
		codecs:  codecs,
		options: sessions.Options{
			Path:     "/",
			MaxAge:   maxAge,
			Secure:   cfg.SecureCookies,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		ttl:    cfg.TTL,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Get returns the named session for r, cached for the lifetime of the
// request.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the named session referenced by r's cookie. A missing, invalid or
// expired session yields a new empty one.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := s.options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err = securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return session, nil
	}

	row, err := s.backend.GetSession(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return session, nil
	case err != nil:
		return session, fmt.Errorf("failed to load session: %w", err)
	case !row.ExpiresAt.After(s.now()):
		return session, nil
	}
	if err = securecookie.DecodeMulti(name, string(row.Data), &session.Values, s.codecs...); err != nil {
		return session, nil
	}
	session.ID = id
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A negative MaxAge deletes
// the session and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.backend.DeleteSession(r.Context(), session.ID); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	data, err := securecookie.EncodeMulti(session.Name(), session.Values, s.codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ttl := s.ttl
	if session.Options.MaxAge > 0 {
		ttl = time.Duration(session.Options.MaxAge) * time.Second
	}
	if err = s.backend.UpsertSession(r.Context(), db.Session{
		ID:        session.ID,
		Data:      []byte(data),
		ExpiresAt: s.now().Add(ttl),
	}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	session.IsNew = false
	return nil
}

// Rotate discards the persisted session so the next save issues a new ID.
// Values are kept.
func (s *Store) Rotate(ctx context.Context, session *sessions.Session) error {
	if session.ID == "" {
		return nil
	}
	if err := s.backend.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	session.ID = ""
	return nil
}

// Purge removes expired sessions.
func (s *Store) Purge(ctx context.Context) error {
	n, err := s.backend.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "purged expired sessions", slog.Int64("count", n))
	}
	return nil
}

func newID() (string, error) {
	key := securecookie.GenerateRandomKey(idBytes)
	if key == nil {
		return "", errors.New("failed to generate session ID")
	}
	return strings.TrimRight(base32.StdEncoding.EncodeToString(key), "="), nil
}

// Identity returns the authenticated account name, or the empty string.
func Identity(session *sessions.Session) string {
	name, _ := session.Values[keyIdentity].(string)
	return name
}

// SetIdentity marks the session as authenticated as the named account.
func SetIdentity(session *sessions.Session, name string) {
	session.Values[keyIdentity] = name
}

// ClearIdentity logs the session out. Other values are kept.
func ClearIdentity(session *sessions.Session) {
	delete(session.Values, keyIdentity)
}

// Captcha returns the expected captcha answer, if one was issued.
func Captcha(session *sessions.Session) (int, bool) {
	answer, ok := session.Values[keyCaptcha].(int)
	return answer, ok
}

// SetCaptcha stores the expected answer to the challenge just shown.
func SetCaptcha(session *sessions.Session, answer int) {
	session.Values[keyCaptcha] = answer
}

var _ sessions.Store = (*Store)(nil)
