package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yml := `
upbit:
  base_url: "https://api.upbit.com"
trading:
  tick_interval: 60
  quote_currency: "KRW"
logger:
  level: "debug"
  format: "json"
server:
  port: 9090
database:
  dsn: "test.db"
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644))

	cfg, err := LoadConfig(dir)

	assert.NoError(t, err)
	assert.Equal(t, "https://api.upbit.com", cfg.Upbit.BaseURL)
	assert.Equal(t, 60, cfg.Trading.TickInterval)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// Values absent from the file come from the defaults.
	assert.Equal(t, 30, cfg.Trading.ScanCount)
	assert.Equal(t, 5, cfg.Trading.TopMarketCount)
	assert.Equal(t, 0.0005, cfg.Trading.FeeRate)
	assert.Equal(t, "rsi_oversold", cfg.Trading.DefaultStrategy)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
