package command

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/folio/internal/app"
	"github.com/stolasapp/folio/internal/app/devseed"
	"github.com/stolasapp/folio/internal/auth"
	"github.com/stolasapp/folio/internal/config"
	"github.com/stolasapp/folio/internal/server"
	"github.com/stolasapp/folio/internal/session"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the catalog Web App",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, &runErr)

			// In dev mode, fill an empty catalog with fake books
			if cfg.DevMode {
				if _, err = devseed.Populate(cmd.Context(), logger, store, devseed.Seed()); err != nil {
					return err
				}
			}

			sessions, err := session.NewStore(store, cfg.Session, logger)
			if err != nil {
				return err
			}
			appServer, err := app.New(
				cfg,
				logger,
				store,
				auth.NewService(store, cfg.TOTPIssuer, logger),
				sessions,
			)
			if err != nil {
				return err
			}

			grp, ctx := errgroup.WithContext(cmd.Context())
			server.Periodic(ctx, grp, logger, "session purge", cfg.Session.PurgeInterval, sessions.Purge)
			serveApp(ctx, grp, cfg, logger, appServer)
			return grp.Wait()
		},
	}
}

func serveApp(
	ctx context.Context,
	grp *errgroup.Group,
	cfg *config.Config,
	logger *slog.Logger,
	srv *echo.Echo,
) {
	listener, err := server.Listen(ctx, cfg.WebAddress)
	if err != nil {
		grp.Go(func() error { return err })
		return
	}

	logger.InfoContext(ctx,
		"starting app server...",
		slog.String("address", listener.Addr().String()),
	)
	server.Serve(ctx, grp, srv.Server, listener, server.ShutdownTimeout)
}
