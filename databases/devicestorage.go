package databases

// go generate: mockery --name DeviceStorageDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lcm-policing/models"
)

const deviceStorageName = "deviceStorage"

// DeviceStorageDatabase is a durable string key/value store partitioned by device. It
// backs the per-device decision lists; SetItem returns only once the value is stored.
type DeviceStorageDatabase interface {
	GetItem(ctx context.Context, deviceID, key string) (string, bool, error)
	SetItem(ctx context.Context, deviceID, key, value string) error
}

type deviceStorageDatabase struct {
	db DatabaseHelper
}

// NewDeviceStorageDatabase initializes a new instance of device storage backed by the
// provided mongo connection
func NewDeviceStorageDatabase(db DatabaseHelper) DeviceStorageDatabase {
	return &deviceStorageDatabase{
		db: db,
	}
}

func (d *deviceStorageDatabase) GetItem(ctx context.Context, deviceID, key string) (string, bool, error) {
	item := &models.DeviceItem{}
	err := d.db.Collection(deviceStorageName).FindOne(ctx, bson.M{"deviceId": deviceID, "key": key}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item.Value, true, nil
}

func (d *deviceStorageDatabase) SetItem(ctx context.Context, deviceID, key, value string) error {
	filter := bson.M{"deviceId": deviceID, "key": key}
	update := bson.M{"$set": bson.M{"value": value, "updatedAt": time.Now().UTC()}}
	return d.db.Collection(deviceStorageName).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
}
