// Package uitest provides UI testing utilities using Rod.
package uitest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/folio/internal/app"
	"github.com/stolasapp/folio/internal/app/devseed"
	"github.com/stolasapp/folio/internal/auth"
	"github.com/stolasapp/folio/internal/config"
	"github.com/stolasapp/folio/internal/server"
	"github.com/stolasapp/folio/internal/session"
	"github.com/stolasapp/folio/internal/storage"
)

// TestSeed is the fixed seed used for reproducible test data.
const TestSeed uint64 = 12345

// Server is a test server that runs the app in dev mode over a seeded
// catalog.
type Server struct {
	baseURL string
	cancel  context.CancelFunc
	grp     *errgroup.Group
	store   *storage.DB
}

// newTestServer creates and starts a new test server, shut down when the test
// completes.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	grp, ctx := errgroup.WithContext(ctx)
	logger := slog.New(slog.DiscardHandler)
	cfg := testConfig(t)

	store, err := storage.NewDB(ctx, cfg.DbFilepath, logger)
	if err != nil {
		cancel()
		require.NoError(t, err, "failed to create storage")
	}
	srv := &Server{cancel: cancel, grp: grp, store: store}
	t.Cleanup(srv.Close)

	_, err = devseed.Populate(ctx, logger, store, TestSeed)
	require.NoError(t, err, "failed to seed catalog")

	sessions, err := session.NewStore(store, cfg.Session, logger)
	require.NoError(t, err)
	appServer, err := app.New(cfg, logger, store, auth.NewService(store, cfg.TOTPIssuer, logger), sessions)
	require.NoError(t, err)

	addr, err := startAppServer(ctx, grp, appServer)
	require.NoError(t, err, "failed to start app server")
	srv.baseURL = "http://" + addr
	return srv
}

// Close shuts down the test server.
// Errors are ignored since this runs during test cleanup where failures
// are typically unrecoverable and already logged by the errgroup.
func (s *Server) Close() {
	s.cancel()
	_ = s.grp.Wait()
	_ = s.store.Close()
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.LogLevel = config.LogDebug
	cfg.DbFilepath = filepath.Join(t.TempDir(), "db.sqlite")
	cfg.DevMode = true
	cfg.Session.SecureCookies = false
	cfg.Session.HashKey = strings.Repeat("u", 32)
	cfg.Login.RatePerSecond = 0
	return cfg
}

func startAppServer(ctx context.Context, grp *errgroup.Group, srv *echo.Echo) (string, error) {
	listener, err := server.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := listener.Addr().String()

	server.Serve(ctx, grp, srv.Server, listener, server.ShutdownTimeout)

	return addr, nil
}

// URL constructs a full URL from the server base URL and a path.
func (s *Server) URL(path string) string {
	return fmt.Sprintf("%s%s", s.baseURL, path)
}
