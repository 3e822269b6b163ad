// Package auth implements registration, two-factor login and the obsolete
// account report on top of the account store.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stolasapp/folio/internal/captcha"
	"github.com/stolasapp/folio/internal/sec"
	"github.com/stolasapp/folio/internal/storage"
	"github.com/stolasapp/folio/internal/storage/db"
)

const (
	// ErrDuplicateAccount is returned when registering a name that is taken.
	ErrDuplicateAccount Error = "account already exists"
	// ErrInvalidUsername is returned when registering a malformed name.
	ErrInvalidUsername Error = "username must be 3-64 characters, alphanumeric and underscores only"
	// ErrInvalidPassword is returned when registering an empty or overlong
	// password.
	ErrInvalidPassword Error = "password must be between 1 and 72 bytes"
	// ErrUnknownAccount is returned when logging in as a name that does not
	// exist.
	ErrUnknownAccount Error = "unknown user"
	// ErrIncorrectPassword is returned when the password does not match.
	ErrIncorrectPassword Error = "incorrect password"
	// ErrIncorrectCaptcha is returned when the captcha answer does not match.
	ErrIncorrectCaptcha Error = "incorrect captcha"
	// ErrInvalidCode is returned when the TOTP code does not validate.
	ErrInvalidCode Error = "invalid code"
)

// ObsoleteAfter is how long an account may go without logging in before it
// is reported as obsolete.
const ObsoleteAfter = 180 * 24 * time.Hour

const (
	maxPasswordLen = 72
	reportPageSize = 100
)

// Error is a user-facing validation error.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// EnrollmentError is returned by [Service.Login] when the account had no TOTP
// secret. A secret has been issued and persisted; the login did not proceed.
type EnrollmentError struct {
	Enrollment sec.Enrollment
}

// Error satisfies [error]. The message carries the issued secret.
func (e *EnrollmentError) Error() string {
	return "two-factor authentication was not set up; add this secret to your authenticator app and log in again: " +
		e.Enrollment.Secret
}

// Registration is the result of a successful [Service.Register].
type Registration struct {
	Account    db.Account
	Enrollment sec.Enrollment
}

// Credentials are the fields submitted on the login form along with the
// captcha answer held by the session.
type Credentials struct {
	Name     string
	Password string
	Code     string
	Captcha  string

	// ExpectedCaptcha is the sum stored in the session. HasCaptcha is false
	// when the session holds no challenge.
	ExpectedCaptcha int
	HasCaptcha      bool
}

// Service implements the authentication flows.
type Service struct {
	store  storage.Accounts
	issuer string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a [Service].
type Option func(*Service)

// WithClock overrides the time source, which defaults to [time.Now].
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService returns a Service issuing TOTP secrets under issuer.
func NewService(store storage.Accounts, issuer string, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates an account with a freshly issued TOTP secret.
func (s *Service) Register(ctx context.Context, name, password string) (reg Registration, err error) {
	if !storage.ValidUsername(name) {
		return reg, ErrInvalidUsername
	}
	if _, err = s.store.GetAccountByName(ctx, name); err == nil {
		return reg, ErrDuplicateAccount
	} else if !errors.Is(err, storage.ErrNotFound) {
		return reg, fmt.Errorf("failed to look up account: %w", err)
	}
	if password == "" || len(password) > maxPasswordLen {
		return reg, ErrInvalidPassword
	}
	hash, err := sec.HashPassword(password)
	if err != nil {
		return reg, fmt.Errorf("failed to hash password: %w", err)
	}
	if reg.Enrollment, err = sec.IssueTOTP(s.issuer, name); err != nil {
		return reg, err
	}

	reg.Account, err = s.store.CreateAccount(ctx, db.Account{
		Name:       name,
		Password:   string(hash),
		TotpSecret: sql.NullString{String: reg.Enrollment.Secret, Valid: true},
	})
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return Registration{}, ErrDuplicateAccount
	case errors.Is(err, storage.ErrInvalidUsername):
		return Registration{}, ErrInvalidUsername
	case err != nil:
		return Registration{}, fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.InfoContext(ctx, "registered account", slog.String("account", name))
	return reg, nil
}

// Login verifies creds and records the login. Checks run in a fixed order
// and the first failure is returned. An account without a TOTP secret is
// enrolled and rejected with an [*EnrollmentError].
func (s *Service) Login(ctx context.Context, creds Credentials) (db.Account, error) {
	now := s.now()

	account, err := s.store.GetAccountByName(ctx, creds.Name)
	if errors.Is(err, storage.ErrNotFound) {
		return db.Account{}, ErrUnknownAccount
	} else if err != nil {
		return db.Account{}, fmt.Errorf("failed to look up account: %w", err)
	}

	if !account.Enrolled() {
		if account, err = s.enroll(ctx, account); err != nil {
			return db.Account{}, err
		}
	}

	needsRehash, err := sec.VerifyStoredPassword(creds.Password, account.Password)
	if err != nil {
		return db.Account{}, ErrIncorrectPassword
	}

	if !captcha.Check(creds.ExpectedCaptcha, creds.HasCaptcha, creds.Captcha) {
		return db.Account{}, ErrIncorrectCaptcha
	}

	if !sec.ValidateTOTP(creds.Code, account.TotpSecret.String, now) {
		return db.Account{}, ErrInvalidCode
	}

	// a rejected attempt leaves the stored password untouched
	if needsRehash {
		if err = s.rehash(ctx, account, creds.Password); err != nil {
			return db.Account{}, err
		}
	}
	if err = s.store.RecordLogin(ctx, account.ID, now); err != nil {
		return db.Account{}, fmt.Errorf("failed to record login: %w", err)
	}
	account.LastLogin = sql.NullTime{Time: now.UTC(), Valid: true}
	s.logger.InfoContext(ctx, "account logged in", slog.String("account", account.Name))
	return account, nil
}

// enroll issues and persists a TOTP secret. If another request enrolled the
// account first, the stored account is returned and the login continues.
func (s *Service) enroll(ctx context.Context, account db.Account) (db.Account, error) {
	enrollment, err := sec.IssueTOTP(s.issuer, account.Name)
	if err != nil {
		return account, err
	}
	err = s.store.SetTOTPSecret(ctx, account.ID, enrollment.Secret)
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		stored, getErr := s.store.GetAccountByName(ctx, account.Name)
		if getErr != nil {
			return account, fmt.Errorf("failed to reload account: %w", getErr)
		}
		return stored, nil
	case err != nil:
		return account, fmt.Errorf("failed to store TOTP secret: %w", err)
	}
	s.logger.InfoContext(ctx, "issued TOTP secret on login", slog.String("account", account.Name))
	return account, &EnrollmentError{Enrollment: enrollment}
}

func (s *Service) rehash(ctx context.Context, account db.Account, password string) error {
	hash, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err = s.store.SetPassword(ctx, account.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	s.logger.InfoContext(ctx, "upgraded plaintext password", slog.String("account", account.Name))
	return nil
}

// Obsolete reports whether an account that last logged in at lastLogin is
// obsolete at now: it never logged in, or did so strictly more than
// [ObsoleteAfter] ago.
func Obsolete(lastLogin sql.NullTime, now time.Time) bool {
	return !lastLogin.Valid || lastLogin.Time.Before(now.Add(-ObsoleteAfter))
}

// ObsoleteAccounts returns every obsolete account, ordered by name.
func (s *Service) ObsoleteAccounts(ctx context.Context) ([]db.Account, error) {
	now := s.now()
	var (
		obsolete []db.Account
		after    storage.AccountCursor
	)
	for {
		page, err := s.store.ListAccounts(ctx, after, reportPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, account := range page {
			if Obsolete(account.LastLogin, now) {
				obsolete = append(obsolete, account)
			}
		}
		if len(page) < reportPageSize {
			return obsolete, nil
		}
		after = storage.CursorAfter(page[len(page)-1])
	}
}
