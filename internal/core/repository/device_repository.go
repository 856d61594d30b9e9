package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"gt06gateway/internal/core/model"
)

// DeviceRepository is the device registry consulted at login and refreshed on every position
type DeviceRepository interface {
	// FindByIMEI returns nil when no device is registered under imei
	FindByIMEI(ctx context.Context, imei string) (*model.Device, error)
	UpdateLiveStatus(ctx context.Context, deviceID string, fields map[string]interface{}) error
}

type MongoDeviceRepository struct {
	collection *mongo.Collection
}

func NewMongoDeviceRepository(db *mongo.Database) *MongoDeviceRepository {
	return &MongoDeviceRepository{
		collection: db.Collection("devices"),
	}
}

func (r *MongoDeviceRepository) FindByIMEI(ctx context.Context, imei string) (*model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var device model.Device
	err := r.collection.FindOne(ctx, bson.M{"uniqueid": imei}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *MongoDeviceRepository) UpdateLiveStatus(ctx context.Context, deviceID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"id": deviceID}, liveStatusUpdate(fields))
	return err
}

// liveStatusUpdate builds a $set touching only the given live fields and the record's update time
func liveStatusUpdate(fields map[string]interface{}) bson.M {
	set := bson.M{"lastupdate": time.Now().UTC()}
	for k, v := range fields {
		set["live."+k] = v
	}
	return bson.M{"$set": set}
}
