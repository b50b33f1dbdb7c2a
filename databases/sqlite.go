package databases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// registers the pure-Go "sqlite" driver
	_ "modernc.org/sqlite"
)

const deviceStorageSchema = `
CREATE TABLE IF NOT EXISTS device_storage (
    device_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (device_id, key)
);
`

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers anyway; one connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

type sqliteDeviceStorage struct {
	db *sql.DB
}

// NewSQLiteDeviceStorage creates the schema if needed and returns device storage
// backed by db.
func NewSQLiteDeviceStorage(db *sql.DB) (DeviceStorageDatabase, error) {
	if _, err := db.Exec(deviceStorageSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &sqliteDeviceStorage{db: db}, nil
}

func (s *sqliteDeviceStorage) GetItem(ctx context.Context, deviceID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM device_storage WHERE device_id = $1 AND key = $2
	`, deviceID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *sqliteDeviceStorage) SetItem(ctx context.Context, deviceID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_storage (device_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, deviceID, key, value, time.Now().UTC())
	return err
}
