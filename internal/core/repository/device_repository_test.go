package repository

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"gt06gateway/internal/core/model"
)

func TestLiveStatusUpdate(t *testing.T) {
	update := liveStatusUpdate(map[string]interface{}{
		model.LiveOnline:   true,
		model.LiveLatitude: 24.9,
	})

	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("update = %v, want a $set document", update)
	}
	if set["live.online"] != true || set["live.latitude"] != 24.9 {
		t.Errorf("$set = %v", set)
	}
	if _, ok := set["lastupdate"].(time.Time); !ok {
		t.Errorf("$set lacks lastupdate: %v", set)
	}
	if len(set) != 3 {
		t.Errorf("$set touches %d fields, want 3", len(set))
	}
}

func TestInMemoryDeviceRepository(t *testing.T) {
	repo := NewInMemoryDeviceRepository()
	ctx := context.Background()

	device := model.NewDevice("Truck 7", "123456789012345")
	if err := repo.Create(device); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(device); err == nil {
		t.Error("duplicate Create() should fail")
	}

	found, err := repo.FindByIMEI(ctx, "123456789012345")
	if err != nil || found == nil || found.ID != device.ID {
		t.Fatalf("FindByIMEI() = %v, %v", found, err)
	}
	if missing, _ := repo.FindByIMEI(ctx, "000000000000000"); missing != nil {
		t.Errorf("FindByIMEI() of unknown imei = %v", missing)
	}

	seen := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)
	err = repo.UpdateLiveStatus(ctx, device.ID, map[string]interface{}{
		model.LiveOnline:     true,
		model.LiveLastSeen:   seen,
		model.LiveIgnition:   true,
		model.LiveSatellites: 9,
	})
	if err != nil {
		t.Fatalf("UpdateLiveStatus() error = %v", err)
	}

	updated, _ := repo.FindByID(device.ID)
	if !updated.Live.Online || !updated.Live.Ignition || updated.Live.Satellites != 9 || !updated.Live.LastSeen.Equal(seen) {
		t.Errorf("Live = %+v", updated.Live)
	}
	if err := repo.UpdateLiveStatus(ctx, "missing", map[string]interface{}{model.LiveOnline: true}); err == nil {
		t.Error("UpdateLiveStatus() of unknown device should fail")
	}
}
