package kv

import (
	"context"
	"fmt"
	"strings"
)

// Supported values for StoreConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// StoreConfig selects and configures the backing store.
type StoreConfig struct {
	// Driver is one of "memory", "file", "sqlite", "postgres" or "mongo"
	Driver string `env:"DRIVER" default:"file"`

	File     FileSystemStoreConfig `envPrefix:"FILE_"`
	SQLite   SQLiteStoreConfig     `envPrefix:"SQLITE_"`
	Postgres PostgresStoreConfig   `envPrefix:"POSTGRES_"`
	Mongo    MongoStoreConfig      `envPrefix:"MONGO_"`
}

// Factory returns the StoreFactory for the configured driver.
func (cfg StoreConfig) Factory() (StoreFactory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverMemory:
		return MemoryStoreFactory(), nil
	case DriverFile, "":
		return FileSystemStoreFactory(cfg.File), nil
	case DriverSQLite:
		return SQLiteStoreFactory(cfg.SQLite), nil
	case DriverPostgres:
		return PostgresStoreFactory(cfg.Postgres), nil
	case DriverMongo:
		return MongoStoreFactory(cfg.Mongo), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NewStore opens the store selected by cfg.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	factory, err := cfg.Factory()
	if err != nil {
		return nil, err
	}

	store, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	return store, nil
}
