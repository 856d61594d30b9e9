package repository

import (
	"context"
	"sync"

	"gt06gateway/internal/core/model"
)

type InMemoryPositionRepository struct {
	positions []*model.Position
	mutex     sync.RWMutex
}

func NewInMemoryPositionRepository() *InMemoryPositionRepository {
	return &InMemoryPositionRepository{}
}

func (r *InMemoryPositionRepository) Append(ctx context.Context, position *model.Position) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.positions = append(r.positions, position)
	return nil
}

func (r *InMemoryPositionRepository) FindByDeviceID(deviceID string) []*model.Position {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Position
	for _, position := range r.positions {
		if position.DeviceID == deviceID {
			result = append(result, position)
		}
	}
	return result
}

func (r *InMemoryPositionRepository) FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Position, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *model.Position
	for _, position := range r.positions {
		if position.DeviceID != deviceID {
			continue
		}
		if latest == nil || position.Timestamp.After(latest.Timestamp) {
			latest = position
		}
	}
	return latest, nil
}
