package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".dialogs"

// Paths holds resolved filesystem paths for dialogs data.
type Paths struct {
	Base   string // ~/.dialogs
	Config string // ~/.dialogs/config.yaml
	Logs   string // ~/.dialogs/logs
	Data   string // ~/.dialogs/data
}

// ResolvePaths computes all standard paths from the home directory.
// If DIALOGS_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("DIALOGS_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath returns the configured database path, falling back to the
// default location under the data directory.
func (p Paths) DatabasePath(cfg Config) string {
	if cfg.Database.Path != "" {
		return cfg.Database.Path
	}
	return filepath.Join(p.Data, "dialogs.db")
}
