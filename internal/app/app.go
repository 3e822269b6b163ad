// Package app contains the web front-end.
package app

import (
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/stolasapp/folio/internal/auth"
	"github.com/stolasapp/folio/internal/config"
	"github.com/stolasapp/folio/internal/session"
	"github.com/stolasapp/folio/internal/storage"
)

//go:embed static
var staticFiles embed.FS

// rateLimitExpiry is how long an idle client's limiter is retained.
const rateLimitExpiry = 3 * time.Minute

// New creates a web front-end server.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	store storage.Store,
	authn *auth.Service,
	sessions *session.Store,
) (*echo.Echo, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}

	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.Renderer = views
	srv.HTTPErrorHandler = errorHandler(logger)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	} else {
		srv.Use(middleware.Recover())
	}

	srv.Use(
		middleware.Decompress(),
		middleware.Gzip(),
		middleware.Secure(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: uuid.NewString,
		}),
		middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:_csrf",
			CookiePath:     "/",
			CookieSecure:   cfg.Session.SecureCookies,
			CookieHTTPOnly: true,
			CookieSameSite: http.SameSiteLaxMode,
		}),
	)

	handler{
		logger:   logger,
		store:    store,
		auth:     authn,
		sessions: sessions,
	}.register(srv, throttle(cfg.Login))

	staticFS := echo.MustSubFS(staticFiles, "static")
	srv.StaticFS("/static/", staticFS)
	srv.FileFS("/robots.txt", "robots.txt", staticFS)
	return srv, nil
}

// throttle limits credential submissions per client IP. It is a no-op when
// the configured rate is not positive.
func throttle(cfg config.Login) echo.MiddlewareFunc {
	if cfg.RatePerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RatePerSecond),
			Burst:     max(cfg.Burst, 1),
			ExpiresIn: rateLimitExpiry,
		}),
		DenyHandler: func(_ echo.Context, identifier string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests,
				fmt.Sprintf("too many attempts from %s, try again later", identifier))
		},
	})
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
