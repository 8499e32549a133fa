package config

import "github.com/spf13/viper"

// SetDefaults registers the built-in defaults on a Viper instance.
// These are the values a fresh checkout runs with when no voyagent.toml
// or environment overrides are present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("backend.timeout_seconds", 15)

	v.SetDefault("connection.idle_timeout_seconds", 30)
	v.SetDefault("connection.backoff_base_millis", 1000)
	v.SetDefault("connection.backoff_max_millis", 30000)
	v.SetDefault("connection.max_attempts", 5)
	v.SetDefault("connection.poll_interval_seconds", 5)

	v.SetDefault("activity.log_capacity", 50)

	v.SetDefault("recommend.top_n", 5)
}
