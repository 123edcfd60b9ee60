package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, "classic75", cfg.Game.Variant)
	assert.Equal(t, 2, cfg.Game.MaxPlayers)
	assert.Equal(t, 1500*time.Millisecond, cfg.ThinkingDelay())
}

func TestLoadServerConfig(t *testing.T) {
	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
  database  = "/var/lib/bingo/games.db"
}

game {
  variant            = "quick25"
  turn_limit_seconds = 15
}

bot {
  difficulty          = "hard"
  thinking_delay_msec = 200
}
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/var/lib/bingo/games.db", cfg.Server.Database)
	assert.Equal(t, "quick25", cfg.Game.Variant)
	assert.Equal(t, 15, cfg.Game.TurnLimitSeconds)
	// Unset fields fall back to defaults.
	assert.Equal(t, 2, cfg.Game.MaxPlayers)
	assert.Equal(t, 120, cfg.Game.SetupLimitSeconds)
	assert.Equal(t, "hard", cfg.Bot.Difficulty)
	assert.Equal(t, 200*time.Millisecond, cfg.ThinkingDelay())

	gc := cfg.GameConfig()
	assert.Equal(t, 25, gc.Variant.PoolSize())
	assert.Equal(t, 15, gc.TurnLimitSeconds)
}

func TestLoadServerConfigRejectsBadValues(t *testing.T) {
	_, err := LoadServerConfig(writeConfig(t, `
game {
  variant = "blackout"
}
`))
	assert.Error(t, err)

	_, err = LoadServerConfig(writeConfig(t, `
bot {
  difficulty = "nightmare"
}
`))
	assert.Error(t, err)

	_, err = LoadServerConfig(writeConfig(t, `
game {
  max_players = 1
}
`))
	assert.Error(t, err)
}

func TestLoadServerConfigRejectsMalformedHCL(t *testing.T) {
	_, err := LoadServerConfig(writeConfig(t, `server { address = `))
	assert.Error(t, err)
}
