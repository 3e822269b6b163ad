// Package devseed fills an empty catalog with generated books for development.
package devseed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/stolasapp/folio/internal/storage"
	"github.com/stolasapp/folio/internal/storage/db"
)

// Catalog generation constants.
const (
	minItems      = 120
	maxExtraItems = 40 // 120-160 items total (ensures several catalog pages)
	bookTitleRate = 0.5
)

// Seed returns the generator seed from the FOLIO_DEV_SEED environment
// variable, or a random value if not set.
func Seed() uint64 {
	if env := os.Getenv("FOLIO_DEV_SEED"); env != "" {
		if seed, err := strconv.ParseUint(env, 10, 64); err == nil {
			return seed
		}
	}
	return rand.Uint64() //nolint:gosec // intentionally weak random for test data
}

// Populate adds generated items to the catalog if it is empty, returning the
// number added. The same seed always generates the same catalog.
func Populate(ctx context.Context, logger *slog.Logger, items storage.Items, seed uint64) (int, error) {
	count, err := items.CountItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog items: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	faker := gofakeit.New(seed)
	total := minItems + faker.IntN(maxExtraItems)
	for i := range total {
		if _, err = items.CreateItem(ctx, db.Item{
			ID:     uint64(i + 1), //nolint:gosec // bounded by total
			Title:  generateTitle(faker),
			Author: faker.BookAuthor(),
		}); err != nil {
			return i, fmt.Errorf("failed to create catalog item: %w", err)
		}
	}
	logger.InfoContext(ctx, "seeded dev catalog",
		slog.Int("items", total),
		slog.Uint64("seed", seed),
	)
	return total, nil
}

func generateTitle(faker *gofakeit.Faker) string {
	if faker.Float64() < bookTitleRate {
		return faker.BookTitle()
	}
	patterns := []func(*gofakeit.Faker) string{
		func(f *gofakeit.Faker) string { return fmt.Sprintf("The %s %s", f.Adjective(), f.Noun()) },
		func(f *gofakeit.Faker) string { return fmt.Sprintf("A %s of %s", f.Noun(), f.Noun()) },
		func(f *gofakeit.Faker) string { return fmt.Sprintf("The %s's %s", f.Noun(), f.Noun()) },
	}
	return patterns[faker.IntN(len(patterns))](faker)
}
