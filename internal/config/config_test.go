package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg.Services)
	assert.Equal(t, LogLevel, cfg.Logging.Level)
	assert.Equal(t, LogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultMailboxSize, cfg.Bus.MailboxSize)
	assert.Equal(t, DefaultSubBuffer, cfg.Bus.SubBuffer)
	assert.Equal(t, DefaultTickInterval, cfg.Kernel.TickInterval)
	assert.Equal(t, DefaultShutdownBudget, cfg.Kernel.ShutdownBudget)
}

func Test_Path_DefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	assert.Equal(t, DefaultConfigFile, Path())
}

func Test_Path_UsesEnvVarWhenSet(t *testing.T) {
	t.Setenv(ConfigEnvVar, "/tmp/custom-config.json")
	assert.Equal(t, "/tmp/custom-config.json", Path())
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := DefaultConfigFile
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Cleanup(func() { os.Remove(path) })
}

func Test_Load_NoFilePresentUsesDefaults(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func Test_Load_ValidFile(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	writeConfig(t, `{
		"logging": {"level": "debug", "format": "json"},
		"ConfigService": {"save_after": 30}
	}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	raw := cfg.ServiceSubtree(ConfigServiceKey)
	var settings ConfigServiceSettings
	require.NoError(t, json.Unmarshal(raw, &settings))
	assert.Equal(t, 30.0, settings.SaveAfter)
}

func Test_Load_MissingSaveAfterFails(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	writeConfig(t, `{"ConfigService": {}}`)

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func Test_Load_ZeroSaveAfterFails(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	writeConfig(t, `{"ConfigService": {"save_after": 0}}`)

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func Test_Load_InvalidJSONFails(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	writeConfig(t, `not json`)

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func Test_Load_ZeroAmbientValuesFallBackToDefaults(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	writeConfig(t, `{"bus": {"mailboxSize": 0, "subBuffer": 0}, "kernel": {"tickInterval": 0, "shutdownBudget": 0}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMailboxSize, cfg.Bus.MailboxSize)
	assert.Equal(t, DefaultSubBuffer, cfg.Bus.SubBuffer)
	assert.Equal(t, DefaultTickInterval, cfg.Kernel.TickInterval)
	assert.Equal(t, DefaultShutdownBudget, cfg.Kernel.ShutdownBudget)
}

func Test_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{
			name:        "default config is valid",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "zero mailbox size is invalid",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.Bus.MailboxSize = 0
				return cfg
			}(),
			expectError: true,
		},
		{
			name: "zero shutdown budget is invalid",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.Kernel.ShutdownBudget = 0
				return cfg
			}(),
			expectError: true,
		},
		{
			name: "negative shutdown budget is invalid",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.Kernel.ShutdownBudget = -time.Second
				return cfg
			}(),
			expectError: true,
		},
		{
			name: "missing save_after for a present ConfigService entry is invalid",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.Services[ConfigServiceKey] = json.RawMessage(`{}`)
				return cfg
			}(),
			expectError: true,
		},
		{
			name: "valid ConfigService subtree",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.Services[ConfigServiceKey] = json.RawMessage(`{"save_after": 60}`)
				return cfg
			}(),
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_ServiceSubtree_ReturnsNilForUnknownService(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.ServiceSubtree("DoesNotExist"))
}

func Test_ServiceSubtree_ReturnsRegisteredSubtree(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services["MemoryService"] = json.RawMessage(`{"storage_dir": "data"}`)

	assert.JSONEq(t, `{"storage_dir": "data"}`, string(cfg.ServiceSubtree("MemoryService")))
}
