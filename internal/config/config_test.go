package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackedAddress = "0xAbC0000000000000000000000000000000000001"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "https://rpc.example.org")
	t.Setenv("MONITOR_ADDRESS", trackedAddress)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0xabc0000000000000000000000000000000000001", cfg.MonitorAddress)
	assert.True(t, cfg.MinAlertValue.Equal(decimal.RequireFromString("0.001")))
	assert.False(t, cfg.IgnoreZeroValue)
	assert.Equal(t, 1000, cfg.LogCapacity)
	assert.True(t, cfg.WhaleThreshold.Equal(decimal.NewFromInt(10)))
	require.Len(t, cfg.RoundNumbers, 5)
	assert.True(t, cfg.RoundNumbers[4].Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
	assert.Equal(t, StorageMySQL, cfg.StorageDriver)
	assert.Equal(t, LedgerDatabase, cfg.LedgerBackend)
	assert.Equal(t, []string{"log"}, cfg.AlertModes())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RPC_URL", "wss://rpc.example.org/ws")
	t.Setenv("MIN_ALERT_VALUE", " 0.5")
	t.Setenv("WHALE_THRESHOLD", "25 ")
	t.Setenv("IGNORE_ZERO_VALUE", "true")
	t.Setenv("ROUND_NUMBERS", "1, 5, 10,")
	t.Setenv("ALERT_MODE", "log, discord")
	t.Setenv("DISCORD_WEBHOOK_URLS", "https://discord.test/a, ,https://discord.test/b")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.MinAlertValue.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, cfg.IgnoreZeroValue)
	assert.True(t, cfg.WhaleThreshold.Equal(decimal.NewFromInt(25)))
	require.Len(t, cfg.RoundNumbers, 3)
	assert.True(t, cfg.RoundNumbers[1].Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.RoundNumbers[2].Equal(decimal.NewFromInt(10)))
	assert.Equal(t, []string{"log", "discord"}, cfg.AlertModes())
	assert.Equal(t, []string{"https://discord.test/a", "https://discord.test/b"}, cfg.DiscordWebhookURLs)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
}

func TestLoadRejectsBadAmount(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MIN_ALERT_VALUE", "lots"},
		{"WHALE_THRESHOLD", "ten"},
		{"ROUND_NUMBERS", "1, five"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			RPCURL:         "http://localhost:8545",
			MonitorAddress: "0xabc0000000000000000000000000000000000001",
			MinAlertValue:  decimal.RequireFromString("0.001"),
			WhaleThreshold: decimal.NewFromInt(10),
			LogCapacity:    1000,
			Workers:        4,
			StorageDriver:  StorageMemory,
			LedgerBackend:  LedgerDatabase,
			AlertMode:      "log",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing rpc", func(c *Config) { c.RPCURL = "" }, true},
		{"bad scheme", func(c *Config) { c.RPCURL = "ftp://node" }, true},
		{"short address", func(c *Config) { c.MonitorAddress = "0xabc" }, true},
		{"negative min value", func(c *Config) { c.MinAlertValue = decimal.NewFromInt(-1) }, true},
		{"zero whale threshold", func(c *Config) { c.WhaleThreshold = decimal.Zero }, true},
		{"zero capacity", func(c *Config) { c.LogCapacity = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"unknown storage", func(c *Config) { c.StorageDriver = "sqlite" }, true},
		{"mysql without dsn", func(c *Config) { c.StorageDriver = StorageMySQL }, true},
		{"mysql found rows", func(c *Config) {
			c.StorageDriver = StorageMySQL
			c.DatabaseDSN = "u:p@tcp(db:3306)/chainwatch?parseTime=true&clientFoundRows=true"
		}, true},
		{"mysql found rows off", func(c *Config) {
			c.StorageDriver = StorageMySQL
			c.DatabaseDSN = "u:p@tcp(db:3306)/chainwatch?clientFoundRows=false"
		}, false},
		{"unknown ledger", func(c *Config) { c.LedgerBackend = "rocks" }, true},
		{"redis without addr", func(c *Config) { c.LedgerBackend = LedgerRedis }, true},
		{"unknown alert mode", func(c *Config) { c.AlertMode = "log,pager" }, true},
		{"discord without urls", func(c *Config) { c.AlertMode = "discord" }, true},
		{"smtp without host", func(c *Config) { c.AlertMode = "smtp" }, true},
		{"telegram without token", func(c *Config) { c.AlertMode = "telegram"; c.TelegramChatID = "1" }, true},
		{"nats with defaults", func(c *Config) { c.AlertMode = "nats" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
