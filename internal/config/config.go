package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/hsiatein/helenium/internal/errors"
)

// Config is the root configuration document: a single JSON file,
// top-level object keyed by service name, plus the ambient kernel/bus/
// logging settings that are not any one service's concern.
type Config struct {
	Logging struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logging"`

	Bus struct {
		MailboxSize int `json:"mailboxSize"`
		SubBuffer   int `json:"subBuffer"`
	} `json:"bus"`

	Kernel struct {
		TickInterval   time.Duration `json:"tickInterval"`
		ShutdownBudget time.Duration `json:"shutdownBudget"`
	} `json:"kernel"`

	// Services holds each service's own JSON subtree, undecoded. Each
	// service unmarshals its own key at construction time. Unknown keys
	// are ignored.
	Services map[string]json.RawMessage `json:"-"`
}

// ConfigServiceSettings is the mandatory subtree the ConfigService
// entry must carry: a save_after interval, in seconds.
type ConfigServiceSettings struct {
	SaveAfter float64 `json:"save_after"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{Services: make(map[string]json.RawMessage)}
	cfg.Logging.Level = LogLevel
	cfg.Logging.Format = LogFormat
	cfg.Bus.MailboxSize = DefaultMailboxSize
	cfg.Bus.SubBuffer = DefaultSubBuffer
	cfg.Kernel.TickInterval = DefaultTickInterval
	cfg.Kernel.ShutdownBudget = DefaultShutdownBudget
	return cfg
}

// Path resolves the configuration file location: HELENIUM_CONFIG if
// set, else ./Config.json.
func Path() string {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Load reads and validates the configuration file at Path(). A missing
// file is not an error: DefaultConfig is returned as is, with no
// ConfigService entry, so the save_after check in Validate does not run.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfig, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfig, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfig, err)
	}
	delete(raw, "logging")
	delete(raw, "bus")
	delete(raw, "kernel")
	cfg.Services = raw

	if cfg.Bus.MailboxSize == 0 {
		cfg.Bus.MailboxSize = DefaultMailboxSize
	}
	if cfg.Bus.SubBuffer == 0 {
		cfg.Bus.SubBuffer = DefaultSubBuffer
	}
	if cfg.Kernel.TickInterval == 0 {
		cfg.Kernel.TickInterval = DefaultTickInterval
	}
	if cfg.Kernel.ShutdownBudget == 0 {
		cfg.Kernel.ShutdownBudget = DefaultShutdownBudget
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfig, err)
	}

	return cfg, nil
}

// Validate checks the ambient settings and the mandatory ConfigService
// subtree.
func (c *Config) Validate() error {
	if c.Bus.MailboxSize <= 0 {
		return fmt.Errorf("bus.mailboxSize must be greater than 0")
	}
	if c.Kernel.ShutdownBudget <= 0 {
		return fmt.Errorf("kernel.shutdownBudget must be greater than 0")
	}

	if raw, ok := c.Services[ConfigServiceKey]; ok {
		var settings ConfigServiceSettings
		if err := json.Unmarshal(raw, &settings); err != nil {
			return fmt.Errorf("%s: %w", ConfigServiceKey, err)
		}
		if settings.SaveAfter <= 0 {
			return fmt.Errorf("%s: %w (save_after)", ConfigServiceKey, errors.ErrMissingConfigKey)
		}
	}

	return nil
}

// ServiceSubtree returns the raw JSON subtree registered for name, or
// nil if the document does not mention it.
func (c *Config) ServiceSubtree(name string) json.RawMessage {
	return c.Services[name]
}

