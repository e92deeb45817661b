package config

import (
	"os"
	"path/filepath"
)

// Paths contains the standard on-disk locations for Tandem data.
type Paths struct {
	Data   string // ~/.local/share/tandem
	Config string // ~/.config/tandem
}

// GetPaths returns the XDG-style paths for Tandem data.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", filepath.Join(os.Getenv("HOME"), ".local", "share")), "tandem"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "tandem"),
	}
}

// StoragePath returns the root of the document store.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
