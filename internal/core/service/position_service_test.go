package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gt06gateway/internal/core/repository"
)

func TestLastPositionLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit", func(t *testing.T) {
		cache := newFakeCache()
		cached := newGPS(1, 2)
		cache.positions[testIMEI] = cached
		store := repository.NewInMemoryPositionRepository()

		got, err := NewLastPositionLookup(cache, store).GetLastPosition(ctx, testIMEI)
		if err != nil || got != cached {
			t.Fatalf("GetLastPosition() = %v, %v", got, err)
		}
	})

	t.Run("store fallback warms cache", func(t *testing.T) {
		cache := newFakeCache()
		store := repository.NewInMemoryPositionRepository()
		older := newGPS(1, 2)
		older.Timestamp = time.Now().Add(-time.Hour)
		newer := newGPS(3, 4)
		_ = store.Append(ctx, older)
		_ = store.Append(ctx, newer)

		got, err := NewLastPositionLookup(cache, store).GetLastPosition(ctx, testIMEI)
		if err != nil || got == nil || got.Latitude != 3 {
			t.Fatalf("GetLastPosition() = %+v, %v", got, err)
		}
		if cache.positions[testIMEI] == nil {
			t.Error("cache not warmed")
		}
	})

	t.Run("cache error falls back", func(t *testing.T) {
		cache := newFakeCache()
		cache.err = errors.New("redis down")
		store := repository.NewInMemoryPositionRepository()
		_ = store.Append(ctx, newGPS(5, 6))

		got, err := NewLastPositionLookup(cache, store).GetLastPosition(ctx, testIMEI)
		if err != nil || got == nil || got.Latitude != 5 {
			t.Fatalf("GetLastPosition() = %+v, %v", got, err)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		got, err := NewLastPositionLookup(newFakeCache(), repository.NewInMemoryPositionRepository()).
			GetLastPosition(ctx, "000000000000000")
		if err != nil || got != nil {
			t.Fatalf("GetLastPosition() = %v, %v", got, err)
		}
	})

	t.Run("no store", func(t *testing.T) {
		got, err := NewLastPositionLookup(newFakeCache(), nil).GetLastPosition(ctx, testIMEI)
		if err != nil || got != nil {
			t.Fatalf("GetLastPosition() = %v, %v", got, err)
		}
	})
}
