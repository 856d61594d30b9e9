package service

import (
	"context"

	"gt06gateway/internal/core/model"
	"gt06gateway/internal/core/repository"
)

// PositionCache is the cache side of the last known position
type PositionCache interface {
	GetLastPosition(ctx context.Context, deviceID string) (*model.Position, error)
	SetLastPosition(ctx context.Context, pos *model.Position) error
}

// LastPositionLookup resolves the last known position of a device, cache first
// and the location store second. A position found only in the store is written
// back to the cache.
type LastPositionLookup struct {
	cache     PositionCache
	positions repository.PositionRepository
}

func NewLastPositionLookup(cache PositionCache, positions repository.PositionRepository) *LastPositionLookup {
	return &LastPositionLookup{cache: cache, positions: positions}
}

func (l *LastPositionLookup) GetLastPosition(ctx context.Context, deviceID string) (*model.Position, error) {
	var cacheErr error
	if l.cache != nil {
		pos, err := l.cache.GetLastPosition(ctx, deviceID)
		if err == nil && pos != nil {
			return pos, nil
		}
		cacheErr = err
	}

	if l.positions == nil {
		return nil, cacheErr
	}
	pos, err := l.positions.FindLatestByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if pos != nil && l.cache != nil {
		_ = l.cache.SetLastPosition(ctx, pos)
	}
	return pos, nil
}
