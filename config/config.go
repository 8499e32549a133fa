// Package config owns the voyagent configuration.
//
// Configuration is loaded with Viper from (lowest to highest precedence)
// built-in defaults, a voyagent.toml discovered by walking up from the
// working directory, and VOYAGENT_* environment variables.
package config

// Config represents the core voyagent configuration
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Connection ConnectionConfig `mapstructure:"connection"`
	Activity   ActivityConfig   `mapstructure:"activity"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
}

// BackendConfig configures the research backend the coordinator talks to
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // e.g. "http://localhost:8000/api/v1"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // per-request HTTP timeout (default: 15)
}

// ConnectionConfig configures live-channel lifecycle behavior.
// Every value here is a tunable rather than a constant so tests can run
// with tiny timeouts.
type ConnectionConfig struct {
	IdleTimeoutSeconds  int `mapstructure:"idle_timeout_seconds"`  // silence before a stall reconnect (default: 30)
	BackoffBaseMillis   int `mapstructure:"backoff_base_millis"`   // first reconnect delay (default: 1000)
	BackoffMaxMillis    int `mapstructure:"backoff_max_millis"`    // reconnect delay ceiling (default: 30000)
	MaxAttempts         int `mapstructure:"max_attempts"`          // consecutive failures before giving up (default: 5)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"` // fallback status poll cadence (default: 5)
}

// ActivityConfig configures the in-memory activity log
type ActivityConfig struct {
	LogCapacity int `mapstructure:"log_capacity"` // bounded FIFO size (default: 50)
}

// RecommendConfig configures result aggregation output
type RecommendConfig struct {
	TopN int `mapstructure:"top_n"` // ranked recommendations to emit (default: 5)
}
