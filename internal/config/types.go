package config

// Config is the root configuration for dialogs.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Channels  ChannelsConfig  `yaml:"channels,omitempty"`
	Directory DirectoryConfig `yaml:"directory,omitempty"`
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	Sync      SyncConfig      `yaml:"sync,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Admin     AdminConfig     `yaml:"admin,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty" env:"SERVER_PORT"`
	Bind           string   `yaml:"bind,omitempty" env:"SERVER_BIND"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty" env:"SERVER_BIND_HOST"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ChannelsConfig defines chat channel configurations.
type ChannelsConfig struct {
	IRC     *IRCConfig     `yaml:"irc,omitempty"`
	Discord *DiscordConfig `yaml:"discord,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty" env:"IRC_PASSWORD"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// DiscordConfig defines Discord channel settings.
type DiscordConfig struct {
	Token    string   `yaml:"token,omitempty" env:"DISCORD_TOKEN"`
	GuildID  string   `yaml:"guildId,omitempty"`
	Channels []string `yaml:"channels,omitempty"` // channel IDs to listen on; empty means all
}

// DirectoryConfig defines the upstream people directory (CMS).
type DirectoryConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty" env:"DIRECTORY_URL"`
	Token          string `yaml:"token,omitempty" env:"DIRECTORY_TOKEN"`
	DatabaseID     string `yaml:"databaseId,omitempty" env:"DIRECTORY_DATABASE_ID"`
	TTLMinutes     int    `yaml:"ttlMinutes,omitempty" env:"DIRECTORY_TTL_MINUTES"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// DatabaseConfig defines the session store location.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty" env:"DATABASE_PATH"` // overrides the default under the data dir
}

// SyncConfig controls the periodic directory sync job.
type SyncConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Schedule string `yaml:"schedule,omitempty" env:"SYNC_SCHEDULE"` // cron expression
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" env:"LOG_LEVEL"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// AdminConfig guards the administrative endpoints.
type AdminConfig struct {
	Key string `yaml:"key,omitempty" env:"ADMIN_KEY"`
}
