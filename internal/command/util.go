package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"golang.org/x/term"

	"github.com/stolasapp/folio/internal/config"
	"github.com/stolasapp/folio/internal/secrets"
	"github.com/stolasapp/folio/internal/storage"
)

type configKey struct{}

func prompt(prompt string, mask bool) ([]byte, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if _, err := os.Stderr.WriteString(prompt); err != nil {
			return nil, err
		}
	}
	return readLine(os.Stdin, mask)
}

// cloned from term.readPasswordLine.
func readLine(stdin *os.File, mask bool) ([]byte, error) {
	if mask && term.IsTerminal(int(stdin.Fd())) {
		line, err := term.ReadPassword(int(stdin.Fd()))
		_, _ = os.Stderr.WriteString("\n")
		return line, err
	}
	var buf [1]byte
	var ret []byte

	for {
		n, err := stdin.Read(buf[:])
		if n > 0 {
			switch buf[0] {
			case '\b':
				if len(ret) > 0 {
					ret = ret[:len(ret)-1]
				}
			case '\n':
				if runtime.GOOS != "windows" {
					return ret, nil
				}
				// otherwise ignore \n
			case '\r':
				if runtime.GOOS == "windows" {
					return ret, nil
				}
				// otherwise ignore \r
			default:
				ret = append(ret, buf[0]) //nolint:gosec // erroneous error
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(ret) > 0 {
				return ret, nil
			}
			return ret, err
		}
	}
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	ver := "unknown"
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			ver = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		ver += "-dev"
	}
	return ver
}

func loadConfig(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, nil, errors.New("config file resolution failed")
	}
	return cfg, slog.Default(), nil
}

// openStore resolves the database location through the secret provider, then
// opens and migrates the database.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.DB, error) {
	provider, err := secrets.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	dbPath, err := secrets.DatabasePath(ctx, provider, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "opening database", slog.String("path", dbPath))
	return storage.NewDB(ctx, dbPath, logger)
}

// closeStore joins any close error into runErr.
func closeStore(store io.Closer, runErr *error) {
	if err := store.Close(); err != nil {
		*runErr = errors.Join(*runErr, err)
	}
}
