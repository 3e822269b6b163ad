// Package secrets reads runtime secrets, such as the database location, from
// a secret provider.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	vault "github.com/hashicorp/vault/api"

	"github.com/stolasapp/folio/internal/config"
)

const (
	// ErrNotFound is returned when no secret exists at a path.
	ErrNotFound Error = "secret not found"
	// ErrMissingToken is returned when the Vault token is not configured.
	ErrMissingToken Error = "vault token is not set (VAULT_TOKEN)"
)

// Error is an error type returned by secret providers.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Provider reads secrets.
type Provider interface {
	// Read returns the key/value pairs stored at path. [ErrNotFound] is
	// returned if nothing is stored there.
	Read(ctx context.Context, path string) (map[string]string, error)
}

// Writer is a [Provider] that can also store secrets.
type Writer interface {
	Provider
	// Write replaces the key/value pairs stored at path.
	Write(ctx context.Context, path string, data map[string]string) error
}

// FromConfig returns the provider for cfg: an in-memory provider holding the
// configured database path in dev mode, and Vault otherwise.
func FromConfig(cfg *config.Config) (Writer, error) {
	if cfg.DevMode {
		return NewStatic(map[string]map[string]string{
			cfg.Vault.Path: {cfg.Vault.Key: cfg.DbFilepath},
		}), nil
	}
	return NewVault(cfg.Vault)
}

// DatabasePath resolves the database location from p. When the secret exists
// but lacks the key, the configured db_filepath is used. A missing secret is
// only tolerated in dev mode; any other provider failure is returned.
func DatabasePath(ctx context.Context, p Provider, cfg *config.Config, logger *slog.Logger) (string, error) {
	data, err := p.Read(ctx, cfg.Vault.Path)
	switch {
	case errors.Is(err, ErrNotFound) && !cfg.DevMode:
		return "", fmt.Errorf("database secret %q is missing, seed it with `folio secrets seed`: %w",
			cfg.Vault.Path, err)
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("failed to read database secret: %w", err)
	default:
		if dbPath := data[cfg.Vault.Key]; dbPath != "" {
			return dbPath, nil
		}
	}
	logger.WarnContext(ctx, "database key not found, using db_filepath",
		slog.String("path", cfg.Vault.Path),
		slog.String("key", cfg.Vault.Key),
	)
	return cfg.DbFilepath, nil
}

// Vault is a [Writer] backed by a Vault KV v2 secrets engine.
type Vault struct {
	kv *vault.KVv2
}

// NewVault returns a client for the KV v2 engine mounted at cfg.Mount.
func NewVault(cfg config.Vault) (*Vault, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	vcfg := vault.DefaultConfig()
	if vcfg.Error != nil {
		return nil, fmt.Errorf("failed to configure vault client: %w", vcfg.Error)
	}
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	return &Vault{kv: client.KVv2(cfg.Mount)}, nil
}

// Read satisfies the [Provider] interface.
func (v *Vault) Read(ctx context.Context, path string) (map[string]string, error) {
	secret, err := v.kv.Get(ctx, path)
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to read secret %q: %w", path, err)
	}
	data := make(map[string]string, len(secret.Data))
	for key, value := range secret.Data {
		if str, ok := value.(string); ok {
			data[key] = str
		} else {
			data[key] = fmt.Sprint(value)
		}
	}
	return data, nil
}

// Write satisfies the [Writer] interface.
func (v *Vault) Write(ctx context.Context, path string, data map[string]string) error {
	payload := make(map[string]any, len(data))
	for key, value := range data {
		payload[key] = value
	}
	if _, err := v.kv.Put(ctx, path, payload); err != nil {
		return fmt.Errorf("failed to write secret %q: %w", path, err)
	}
	return nil
}

// Static is an in-memory [Writer].
type Static struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
}

// NewStatic returns a Static provider seeded with secrets.
func NewStatic(secrets map[string]map[string]string) *Static {
	s := &Static{secrets: make(map[string]map[string]string, len(secrets))}
	for path, data := range secrets {
		s.secrets[path] = maps.Clone(data)
	}
	return s
}

// Read satisfies the [Provider] interface.
func (s *Static) Read(_ context.Context, path string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.secrets[path]
	if !ok {
		return nil, ErrNotFound
	}
	return maps.Clone(data), nil
}

// Write satisfies the [Writer] interface.
func (s *Static) Write(_ context.Context, path string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[path] = maps.Clone(data)
	return nil
}

var (
	_ Writer = (*Vault)(nil)
	_ Writer = (*Static)(nil)
)
