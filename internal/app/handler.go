package app

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/stolasapp/folio/internal/auth"
	"github.com/stolasapp/folio/internal/captcha"
	"github.com/stolasapp/folio/internal/pagination"
	"github.com/stolasapp/folio/internal/sec"
	"github.com/stolasapp/folio/internal/session"
	"github.com/stolasapp/folio/internal/storage"
	"github.com/stolasapp/folio/internal/storage/db"
)

const (
	sessionContextKey = "folio.session"
	itemsPageSize     = 50
	accountsPageSize  = 100
)

type handler struct {
	logger   *slog.Logger
	store    storage.Store
	auth     *auth.Service
	sessions *session.Store
}

func (h handler) register(e *echo.Echo, throttle echo.MiddlewareFunc) {
	e.Use(h.loadSession)

	e.GET("/login", h.loginForm)
	e.POST("/login", h.login, throttle)
	e.GET("/register", h.registerForm)
	e.POST("/register", h.registerAccount, throttle)
	e.GET("/logout", h.logout)

	e.GET("/", h.catalog, h.requireAccount)
	e.GET("/obsolete", h.obsolete, h.requireAccount)
}

// itemsPageToken is the opaque ?page= token for the catalog listing.
type itemsPageToken struct {
	AfterID uint64 `json:"after_id"`
}

// Validate satisfies [pagination.Validator].
func (t *itemsPageToken) Validate() error {
	if t.AfterID == 0 {
		return errors.New("after_id is required")
	}
	return nil
}

func (h handler) loadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := h.sessions.Get(c.Request(), session.CookieName)
		if err != nil {
			return err
		}
		c.Set(sessionContextKey, sess)
		return next(c)
	}
}

func currentSession(c echo.Context) *sessions.Session {
	sess, _ := c.Get(sessionContextKey).(*sessions.Session)
	return sess
}

// requireAccount redirects to the login page unless the session names an
// existing account, which is attached to the request context.
func (h handler) requireAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := currentSession(c)
		name := session.Identity(sess)
		if name == "" {
			return c.Redirect(http.StatusSeeOther, "/login")
		}

		ctx := c.Request().Context()
		account, err := h.store.GetAccountByName(ctx, name)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			session.ClearIdentity(sess)
			if err = sess.Save(c.Request(), c.Response()); err != nil {
				return err
			}
			return c.Redirect(http.StatusSeeOther, "/login")
		case err != nil:
			return err
		}

		c.SetRequest(c.Request().WithContext(sec.SetAuthenticatedAccount(ctx, account)))
		return next(c)
	}
}

func (h handler) loginForm(c echo.Context) error {
	return h.renderLogin(c, "", "")
}

// renderLogin shows the login form with a fresh captcha challenge.
func (h handler) renderLogin(c echo.Context, name, message string) error {
	sess := currentSession(c)
	challenge := captcha.New()
	session.SetCaptcha(sess, challenge.Answer())
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}

	data := newPageData(c, "Log in")
	data.Name = name
	data.Error = message
	data.Question = challenge.Question()
	return c.Render(http.StatusOK, pageLogin, data)
}

func (h handler) login(c echo.Context) error {
	sess := currentSession(c)
	expected, ok := session.Captcha(sess)
	creds := auth.Credentials{
		Name:            c.FormValue("name"),
		Password:        c.FormValue("password"),
		Code:            c.FormValue("code"),
		Captcha:         c.FormValue("captcha"),
		ExpectedCaptcha: expected,
		HasCaptcha:      ok,
	}

	account, err := h.auth.Login(c.Request().Context(), creds)
	if err != nil {
		var authErr auth.Error
		var enrollErr *auth.EnrollmentError
		if errors.As(err, &authErr) || errors.As(err, &enrollErr) {
			h.logger.InfoContext(c.Request().Context(), "login rejected",
				slog.String("account", creds.Name),
				slog.String("reason", rejectionReason(err)),
			)
			return h.renderLogin(c, creds.Name, err.Error())
		}
		return err
	}

	if err = h.sessions.Rotate(c.Request().Context(), sess); err != nil {
		return err
	}
	session.SetIdentity(sess, account.Name)
	if err = sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// rejectionReason is the loggable form of a login rejection; enrollment
// errors carry a secret and are never logged verbatim.
func rejectionReason(err error) string {
	var enrollErr *auth.EnrollmentError
	if errors.As(err, &enrollErr) {
		return "enrollment required"
	}
	return err.Error()
}

func (h handler) registerForm(c echo.Context) error {
	return c.Render(http.StatusOK, pageRegister, newPageData(c, "Register"))
}

func (h handler) registerAccount(c echo.Context) error {
	name := c.FormValue("name")
	reg, err := h.auth.Register(c.Request().Context(), name, c.FormValue("password"))
	if err != nil {
		var authErr auth.Error
		if !errors.As(err, &authErr) {
			return err
		}
		data := newPageData(c, "Register")
		data.Name = name
		data.Error = authErr.Error()
		return c.Render(http.StatusOK, pageRegister, data)
	}

	data := newPageData(c, "Account created")
	data.Name = reg.Account.Name
	data.Secret = reg.Enrollment.Secret
	data.QRCode = template.URL(reg.Enrollment.QRCode)
	return c.Render(http.StatusOK, pageEnrolled, data)
}

func (h handler) logout(c echo.Context) error {
	sess := currentSession(c)
	session.ClearIdentity(sess)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h handler) catalog(c echo.Context) error {
	ctx := c.Request().Context()

	var afterID uint64
	if tkn := c.QueryParam("page"); tkn != "" {
		var page itemsPageToken
		if err := pagination.FromToken(tkn, &page); err != nil {
			return err
		}
		afterID = page.AfterID
	}

	accounts, err := h.allAccounts(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListItems(ctx, afterID, itemsPageSize)
	if err != nil {
		return err
	}

	data := newPageData(c, "Catalog")
	data.Accounts = accounts
	data.Items = items
	if len(items) == itemsPageSize {
		if data.NextPage, err = pagination.ToToken(&itemsPageToken{AfterID: items[len(items)-1].ID}); err != nil {
			return err
		}
	}
	return c.Render(http.StatusOK, pageCatalog, data)
}

func (h handler) allAccounts(c echo.Context) ([]db.Account, error) {
	var (
		accounts []db.Account
		after    storage.AccountCursor
	)
	for {
		page, err := h.store.ListAccounts(c.Request().Context(), after, accountsPageSize)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, page...)
		if len(page) < accountsPageSize {
			return accounts, nil
		}
		after = storage.CursorAfter(page[len(page)-1])
	}
}

func (h handler) obsolete(c echo.Context) error {
	accounts, err := h.auth.ObsoleteAccounts(c.Request().Context())
	if err != nil {
		return err
	}
	data := newPageData(c, "Obsolete accounts")
	data.Accounts = accounts
	data.ObsoleteDays = int(auth.ObsoleteAfter.Hours() / 24) //nolint:mnd // hours per day
	return c.Render(http.StatusOK, pageObsolete, data)
}
