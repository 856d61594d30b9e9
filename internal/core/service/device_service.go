package service

import (
	"context"
	"sync"

	"gt06gateway/internal/core/model"
	"gt06gateway/internal/core/repository"
)

// deviceRegistry remembers the registry record of every logged in device so
// that per-position work does not go back to the document store.
type deviceRegistry struct {
	repo    repository.DeviceRepository
	mutex   sync.RWMutex
	devices map[string]*model.Device
}

func newDeviceRegistry(repo repository.DeviceRepository) *deviceRegistry {
	return &deviceRegistry{
		repo:    repo,
		devices: make(map[string]*model.Device),
	}
}

// resolve looks the device up by IMEI and remembers the result. A nil device
// means the IMEI is not registered.
func (r *deviceRegistry) resolve(ctx context.Context, imei string) (*model.Device, error) {
	device, err := r.repo.FindByIMEI(ctx, imei)
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if device == nil {
		delete(r.devices, imei)
		return nil, nil
	}
	r.devices[imei] = device
	return device, nil
}

func (r *deviceRegistry) get(imei string) *model.Device {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.devices[imei]
}

func (r *deviceRegistry) forget(imei string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.devices, imei)
}
