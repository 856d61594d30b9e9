package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gt06gateway/internal/core/model"
)

type InMemoryDeviceRepository struct {
	devices map[string]*model.Device
	mutex   sync.RWMutex
}

func NewInMemoryDeviceRepository() *InMemoryDeviceRepository {
	return &InMemoryDeviceRepository{
		devices: make(map[string]*model.Device),
	}
}

func (r *InMemoryDeviceRepository) Create(device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.devices[device.ID]; exists {
		return fmt.Errorf("device with ID %s already exists", device.ID)
	}

	r.devices[device.ID] = device
	return nil
}

func (r *InMemoryDeviceRepository) FindByID(id string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if device, exists := r.devices[id]; exists {
		copied := *device
		return &copied, nil
	}
	return nil, nil
}

func (r *InMemoryDeviceRepository) FindByIMEI(ctx context.Context, imei string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, device := range r.devices {
		if device.UniqueID == imei {
			copied := *device
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *InMemoryDeviceRepository) UpdateLiveStatus(ctx context.Context, deviceID string, fields map[string]interface{}) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return fmt.Errorf("device with ID %s not found", deviceID)
	}

	device.Live.Apply(fields)
	device.LastUpdate = time.Now().UTC()
	return nil
}
