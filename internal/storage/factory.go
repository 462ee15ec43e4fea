package storage

import (
	"fmt"

	"github.com/OCAP2/kartreplay/internal/config"
	gormstorage "github.com/OCAP2/kartreplay/internal/storage/gorm"
	"github.com/OCAP2/kartreplay/internal/storage/memory"
	"github.com/OCAP2/kartreplay/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/kartreplay/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Dependencies are the settings shared by the backends beyond their own section.
type Dependencies struct {
	DB     config.DBConfig
	Logger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(deps.DB, deps.Logger), nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return b, nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

var (
	_ Backend  = (*memory.Backend)(nil)
	_ Exporter = (*memory.Backend)(nil)
	_ Backend  = (*gormstorage.Backend)(nil)
	_ Backend  = (*sqlitestorage.Backend)(nil)
)
