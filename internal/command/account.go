package command

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stolasapp/folio/internal/auth"
)

func accountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account commands",
	}
	cmd.AddCommand(
		accountCreateCommand(),
		accountObsoleteCommand(),
	)
	return cmd
}

func accountCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create account",
		Long: "Creates an account for the provided username and password, and prints the\n" +
			"TOTP secret and provisioning URI for the account's authenticator app.\n" +
			"Passwords may be provided via stdin or through the interactive prompt.",

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, &runErr)

			name := args[0]
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}
			reg, err := auth.NewService(store, cfg.TOTPIssuer, logger).
				Register(cmd.Context(), name, string(passwd))
			if err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created account", slog.String("name", name))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "secret: %s\nuri:    %s\n",
				reg.Enrollment.Secret, reg.Enrollment.URI)
			return err
		},
	}
}

func accountObsoleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "obsolete",
		Short: "List obsolete accounts",
		Long:  "Lists accounts that never logged in or have not logged in for 180 days.",
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

			accounts, err := auth.NewService(store, cfg.TOTPIssuer, logger).ObsoleteAccounts(cmd.Context())
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
			_, _ = fmt.Fprintln(out, "NAME\tLAST LOGIN")
			for _, account := range accounts {
				lastLogin := "never"
				if account.LastLogin.Valid {
					lastLogin = account.LastLogin.Time.UTC().Format("2006-01-02 15:04:05Z")
				}
				_, _ = fmt.Fprintf(out, "%s\t%s\n", account.Name, lastLogin)
			}
			return out.Flush()
		},
	}
}
