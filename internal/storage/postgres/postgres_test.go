package postgres

import (
	"testing"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_UnreachableServer(t *testing.T) {
	b := New(config.DBConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "kartreplay",
	}, zerolog.Nop())
	require.NotNil(t, b)

	err := b.Init()
	assert.ErrorContains(t, err, "failed to connect")
	assert.Nil(t, b.DB())
}
