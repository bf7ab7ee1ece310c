package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the XDG-compliant config directory for credstore
// Typically ~/.config/credstore/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "credstore")
}

// ConfigPath returns the full path to the config file. CREDSTORE_CONFIG
// overrides it.
func ConfigPath() string {
	if p := os.Getenv("CREDSTORE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.json5")
}

// CacheDir returns the XDG-compliant cache directory for credstore
// Typically ~/.cache/credstore/ on Linux (lock files live here)
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "credstore")
}

// DataDir returns the XDG-compliant data directory for credstore
// Typically ~/.local/share/credstore/ on Linux (keyring file backend)
func DataDir() string {
	return filepath.Join(xdg.DataHome, "credstore")
}
