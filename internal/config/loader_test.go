package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.Database.AcquireTimeout)
	assert.True(t, cfg.Chat.AutoExecute)
	assert.True(t, cfg.Chat.Ratings)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlchat.yaml")
	content := `
server:
  port: 9000
database:
  database: invoices
  user: reader
model:
  base_url: http://localhost:11434/v1
  models:
    - llama3
    - qwen2
chat:
  auto_execute: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "invoices", cfg.Database.Database)
	assert.Equal(t, "reader", cfg.Database.User)
	assert.Equal(t, []string{"llama3", "qwen2"}, cfg.Model.Models)
	assert.Equal(t, "llama3", cfg.Model.DefaultModel())
	assert.False(t, cfg.Chat.AutoExecute)
	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  password: from-file\n"), 0600))

	t.Setenv("SQLCHAT_DATABASE__PASSWORD", "from-env")
	t.Setenv("SQLCHAT_VERBOSE", "true")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.True(t, cfg.Verbose)
}

func TestLoadFlagsWinOverEverything(t *testing.T) {
	t.Setenv("SQLCHAT_SERVER__PORT", "9100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("model", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "9200", "--model", "gpt-4o-mini"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Default)
}

func TestUnsetFlagsDoNotOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 1234, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
}
