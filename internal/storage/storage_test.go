package storage_test

import (
	"testing"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/storage"
	gormstorage "github.com/OCAP2/kartreplay/internal/storage/gorm"
	"github.com/OCAP2/kartreplay/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/kartreplay/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	deps := storage.Dependencies{Logger: zerolog.Nop()}

	tests := []struct {
		name  string
		cfg   config.StorageConfig
		check func(t *testing.T, b storage.Backend)
	}{
		{"memory", config.StorageConfig{Type: "memory"}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"default", config.StorageConfig{}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"sqlite", config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{DumpInterval: time.Minute}}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &sqlitestorage.Backend{}, b)
		}},
		{"postgres", config.StorageConfig{Type: "postgres"}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &gormstorage.Backend{}, b)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(tt.cfg, deps)
			require.NoError(t, err)
			tt.check(t, b)
		})
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "websocket"}, storage.Dependencies{})
	assert.EqualError(t, err, "unknown storage type: websocket")
}
