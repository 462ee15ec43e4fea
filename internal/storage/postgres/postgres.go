// Package postgres implements the storage.Backend interface on a PostgreSQL server
// through the shared GORM backend.
package postgres

import (
	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/database"
	gormstorage "github.com/OCAP2/kartreplay/internal/storage/gorm"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// New creates a GORM backend that connects to Postgres on Init.
func New(cfg config.DBConfig, log zerolog.Logger) *gormstorage.Backend {
	return gormstorage.New(gormstorage.Dependencies{
		Connect: func() (*gorm.DB, error) {
			return database.GetPostgresDB(cfg, log)
		},
		Logger: log,
	})
}
