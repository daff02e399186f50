package config

import "time"

// Application metadata
const (
	AppName = "helenium"
	Version = "0.1.0"

	// ConfigEnvVar overrides the configuration file path.
	ConfigEnvVar = "HELENIUM_CONFIG"
	// DefaultConfigFile is used when ConfigEnvVar is unset.
	DefaultConfigFile = "Config.json"

	// ConfigServiceKey is the top-level key under which the Config
	// service's own settings (including the mandatory save_after) live.
	ConfigServiceKey = "ConfigService"
)

// Logging defaults
const (
	LogLevel  = "info"
	LogFormat = "console"
)

// Bus / Kernel defaults
const (
	DefaultMailboxSize     = 32
	DefaultSubBuffer       = 16
	DefaultTickInterval    = time.Second
	DefaultShutdownBudget  = 5 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultRegisterTimeout = 5 * time.Second
)

// Scheduler / Task defaults
const (
	DefaultMaxWorkingLoop  = 20
	DefaultMaxRunningTasks = 3
)

// Toolkit defaults
const (
	// DefaultToolsDir is where the Toolkit service looks for static
	// tool manual JSON files when no ToolkitService config subtree
	// overrides it.
	DefaultToolsDir = "tools"
)

// Memory defaults
const (
	// DefaultShortTermLength caps the in-memory ring buffer of recent
	// chat entries kept alongside the on-disk log.
	DefaultShortTermLength = 20
	// DefaultDisplayLength bounds a single paginated Get response.
	DefaultDisplayLength = 50
	// DefaultMemoryStorageDir is where the Memory service's sqlite
	// database file lives when no MemoryService config subtree
	// overrides it.
	DefaultMemoryStorageDir = "memory"
)
