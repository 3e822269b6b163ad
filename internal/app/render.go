package app

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stolasapp/folio/internal/pagination"
	"github.com/stolasapp/folio/internal/sec"
	"github.com/stolasapp/folio/internal/storage/db"
)

//go:embed templates
var templateFiles embed.FS

// Page template names.
const (
	pageLogin    = "login.html"
	pageRegister = "register.html"
	pageEnrolled = "enrolled.html"
	pageCatalog  = "catalog.html"
	pageObsolete = "obsolete.html"
	pageError    = "error.html"
)

const lastLoginLayout = "2006-01-02 15:04 MST"

// pageData is the view model shared by every page template.
type pageData struct {
	Title   string
	CSRF    string
	Account string
	Error   string

	Name     string
	Question string

	Secret string
	QRCode template.URL

	Accounts     []db.Account
	Items        []db.Item
	NextPage     string
	ObsoleteDays int

	Status int
}

// newPageData fills in the fields every page needs from the request.
func newPageData(c echo.Context, title string) pageData {
	csrf, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return pageData{
		Title:   title,
		CSRF:    csrf,
		Account: sec.GetAuthenticatedAccount(c.Request().Context()).Name,
	}
}

// renderer renders the embedded page templates, each within the shared
// layout.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"lastLogin": formatLastLogin,
	}
	r := &renderer{pages: map[string]*template.Template{}}
	for _, page := range []string{pageLogin, pageRegister, pageEnrolled, pageCatalog, pageObsolete, pageError} {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render satisfies [echo.Renderer].
func (r *renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func formatLastLogin(lastLogin sql.NullTime) string {
	if !lastLogin.Valid {
		return "never"
	}
	return lastLogin.Time.In(time.UTC).Format(lastLoginLayout)
}

// errorHandler renders failures as a generic error page. Server errors are
// logged with the request ID and their details are never shown.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var httpErr *echo.HTTPError
		var tokenErr pagination.TokenError
		switch {
		case errors.As(err, &httpErr):
			status = httpErr.Code
			message = http.StatusText(status)
			if msg, ok := httpErr.Message.(string); ok && status < http.StatusInternalServerError {
				message = msg
			}
		case errors.As(err, &tokenErr):
			status = http.StatusBadRequest
			message = tokenErr.Error()
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				slog.String("route", c.Path()),
				slog.Any("error", err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			data := newPageData(c, http.StatusText(status))
			data.Error = message
			data.Status = status
			err = c.Render(status, pageError, data)
		}
		if err != nil {
			logger.ErrorContext(c.Request().Context(), "failed to render error page", slog.Any("error", err))
		}
	}
}
