package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record keys
const (
	RecordSettings = "windows-settings"
	RecordWindows  = "windows-data"
)

// Storage drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

var (
	ErrInvalidKey    = errors.New("invalid record key")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// RecordStore is a durable key/value record store
type RecordStore interface {
	// Get returns the record value. found is false for an absent record.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open creates the record store for driver. path is a directory for the
// file driver and a database file for sqlite.
func Open(driver, path string) (RecordStore, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
