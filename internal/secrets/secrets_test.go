package secrets

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/folio/internal/config"
)

const testToken = "test-token"

// fakeVault serves the subset of the KV v2 HTTP API used by [Vault].
type fakeVault struct {
	mu      sync.Mutex
	secrets map[string]map[string]any
}

func newFakeVault(t *testing.T) (*fakeVault, *httptest.Server) {
	t.Helper()
	fake := &fakeVault{secrets: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv
}

func (f *fakeVault) get(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secrets[path]
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("X-Vault-Token") != testToken {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
		return
	}
	path, ok := strings.CutPrefix(r.URL.Path, "/v1/secret/data/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[]}`))
		return
	}

	metadata := map[string]any{
		"created_time":    "2026-10-17T00:00:00Z",
		"custom_metadata": nil,
		"deletion_time":   "",
		"destroyed":       false,
		"version":         1,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		data, found := f.secrets[path]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"data": data, "metadata": metadata},
		})
	case http.MethodPut, http.MethodPost:
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.secrets[path] = body.Data
		_ = json.NewEncoder(w).Encode(map[string]any{"data": metadata})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testConfig(addr string) *config.Config {
	cfg := config.Default()
	cfg.DbFilepath = "/fallback/db.sqlite"
	cfg.Vault.Address = addr
	cfg.Vault.Token = testToken
	return cfg
}

func TestVault(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeVault(t)
	cfg := testConfig(srv.URL)

	provider, err := NewVault(cfg.Vault)
	require.NoError(t, err)

	_, err = provider.Read(t.Context(), "db")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, provider.Write(t.Context(), "db", map[string]string{"db_path": "/data/folio.sqlite"}))
	assert.Equal(t, map[string]any{"db_path": "/data/folio.sqlite"}, fake.get("db"))

	data, err := provider.Read(t.Context(), "db")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"db_path": "/data/folio.sqlite"}, data)

	dbPath, err := DatabasePath(t.Context(), provider, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, "/data/folio.sqlite", dbPath)
}

func TestVault_PermissionDenied(t *testing.T) {
	t.Parallel()

	_, srv := newFakeVault(t)
	cfg := testConfig(srv.URL)
	cfg.Vault.Token = "wrong"

	provider, err := NewVault(cfg.Vault)
	require.NoError(t, err)

	_, err = DatabasePath(t.Context(), provider, cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestNewVault_MissingToken(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:8200")
	cfg.Vault.Token = ""
	_, err := NewVault(cfg.Vault)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = FromConfig(cfg)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestDatabasePath_Fallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig("")
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name    string
		secrets map[string]map[string]string
		want    string
		wantErr error
	}{
		{name: "missing secret", secrets: nil, wantErr: ErrNotFound},
		{name: "missing key", secrets: map[string]map[string]string{"db": {"other": "x"}}, want: cfg.DbFilepath},
		{name: "present", secrets: map[string]map[string]string{"db": {"db_path": "/srv/db.sqlite"}}, want: "/srv/db.sqlite"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			dbPath, err := DatabasePath(t.Context(), NewStatic(test.secrets), cfg, logger)
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
				assert.Empty(t, dbPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, dbPath)
		})
	}
}

func TestDatabasePath_MissingVaultSecret(t *testing.T) {
	t.Parallel()

	_, srv := newFakeVault(t)
	cfg := testConfig(srv.URL)

	provider, err := NewVault(cfg.Vault)
	require.NoError(t, err)

	dbPath, err := DatabasePath(t.Context(), provider, cfg, slog.New(slog.DiscardHandler))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"db"`)
	assert.Empty(t, dbPath)
}

func TestDatabasePath_DevModeMissingSecret(t *testing.T) {
	t.Parallel()

	cfg := testConfig("")
	cfg.DevMode = true

	dbPath, err := DatabasePath(t.Context(), NewStatic(nil), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, cfg.DbFilepath, dbPath)
}

func TestFromConfig_DevMode(t *testing.T) {
	t.Parallel()

	cfg := testConfig("")
	cfg.DevMode = true
	cfg.Vault.Token = ""

	provider, err := FromConfig(cfg)
	require.NoError(t, err)
	require.IsType(t, &Static{}, provider)

	dbPath, err := DatabasePath(t.Context(), provider, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, cfg.DbFilepath, dbPath)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	seed := map[string]string{"k": "v"}
	provider := NewStatic(map[string]map[string]string{"p": seed})
	seed["k"] = "mutated"

	data, err := provider.Read(t.Context(), "p")
	require.NoError(t, err)
	assert.Equal(t, "v", data["k"])

	require.NoError(t, provider.Write(t.Context(), "q", map[string]string{"a": "b"}))
	data, err = provider.Read(t.Context(), "q")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "b"}, data)

	_, err = provider.Read(t.Context(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
