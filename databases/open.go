package databases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/config"
)

// CloseFunc releases a storage backend
type CloseFunc func(context.Context) error

// OpenDeviceStorage connects the device storage backend the config names.
func OpenDeviceStorage(ctx context.Context, conf *config.Config) (DeviceStorageDatabase, CloseFunc, error) {
	switch conf.StorageDriver {
	case config.StorageSQLite, "":
		db, err := OpenSQLite(conf.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLiteDeviceStorage(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		zap.S().Infow("device storage ready", "driver", config.StorageSQLite, "path", conf.SQLitePath)
		return store, func(context.Context) error { return db.Close() }, nil

	case config.StorageMongo:
		client, err := NewClient(conf)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mongo client: %w", err)
		}
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		zap.S().Infow("device storage ready", "driver", config.StorageMongo, "database", conf.DatabaseName)
		return NewDeviceStorageDatabase(NewDatabase(conf, client)), client.Disconnect, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", conf.StorageDriver)
}
