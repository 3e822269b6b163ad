package command

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/folio/internal/secrets"
)

func secretsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Secret provider commands",
	}
	cmd.AddCommand(secretsSeedCommand())
	return cmd
}

func secretsSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [DB_PATH]",
		Short: "Store the database location in the secret provider",
		Long: "Writes the database location to the configured Vault secret so that\n" +
			"serving reads it at startup. DB_PATH defaults to the configured db_filepath.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.DevMode {
				logger.WarnContext(cmd.Context(), "dev mode uses an in-memory secret provider, nothing is persisted")
			}
			provider, err := secrets.FromConfig(cfg)
			if err != nil {
				return err
			}

			dbPath := cfg.DbFilepath
			if len(args) > 0 {
				dbPath = args[0]
			}
			if err = provider.Write(cmd.Context(), cfg.Vault.Path, map[string]string{
				cfg.Vault.Key: dbPath,
			}); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "stored database secret",
				slog.String("path", cfg.Vault.Path),
				slog.String("key", cfg.Vault.Key),
			)
			return nil
		},
	}
}
