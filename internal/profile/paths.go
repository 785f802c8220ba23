// Package profile owns the on-disk layout of a local chat profile and the
// process lock that enforces the single-writer assumption per profile.
package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.mdchat.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mdchat")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// DBPath returns the message database path for a profile.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "messages.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the core log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "mdchat.log")
}

// ConfigPath returns the per-profile config file path.
func ConfigPath(name string) string {
	return filepath.Join(Dir(name), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
