package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	enabled := true
	return Config{
		Server: ServerConfig{
			Port: 3001,
			Bind: "loopback",
		},
		Directory: DirectoryConfig{
			TTLMinutes:     15,
			TimeoutSeconds: 10,
		},
		Sync: SyncConfig{
			Enabled:  &enabled,
			Schedule: "@every 15m",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
