package devseed

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/folio/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	store, err := storage.NewDB(t.Context(), filepath.Join(t.TempDir(), "db.sqlite"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPopulate(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	store := newTestDB(t)

	added, err := Populate(t.Context(), logger, store, 42)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, added, minItems)
	assert.Less(t, added, minItems+maxExtraItems)

	count, err := store.CountItems(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(added), count)

	items, err := store.ListItems(t.Context(), 0, 5)
	require.NoError(t, err)
	for _, item := range items {
		assert.NotEmpty(t, item.Title)
		assert.NotEmpty(t, item.Author)
	}

	again, err := Populate(t.Context(), logger, store, 42)
	require.NoError(t, err)
	assert.Zero(t, again, "a populated catalog is left alone")
}

func TestPopulate_Deterministic(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	first, second := newTestDB(t), newTestDB(t)

	_, err := Populate(t.Context(), logger, first, 7)
	require.NoError(t, err)
	_, err = Populate(t.Context(), logger, second, 7)
	require.NoError(t, err)

	a, err := first.ListItems(t.Context(), 0, 10)
	require.NoError(t, err)
	b, err := second.ListItems(t.Context(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSeed(t *testing.T) {
	t.Setenv("FOLIO_DEV_SEED", "1234")
	assert.Equal(t, uint64(1234), Seed())
}
