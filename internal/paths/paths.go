// Package paths provides centralized path resolution for tgstatctl.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName     = ".tgstatctl"
	localPrefix = "tgstatctl"
)

// configExts are tried in order inside each candidate directory.
var configExts = []string{".toml", ".yaml", ".yml"}

// BaseDir returns the tgstatctl base directory (~/.tgstatctl).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// DataPath returns a path within the data directory (~/.tgstatctl/<subpath>).
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// ConfigPath returns the active config file path.
// Priority: ./tgstatctl.{toml,yaml,yml} > ~/.tgstatctl/config.{toml,yaml,yml}
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath() (string, error) {
	for _, ext := range configExts {
		local := localPrefix + ext
		if _, err := os.Stat(local); err == nil {
			abs, err := filepath.Abs(local)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return abs, nil
		}
	}

	for _, ext := range configExts {
		global, err := DataPath("config" + ext)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// DefaultConfigPath returns the location for new configs (~/.tgstatctl/config.toml).
func DefaultConfigPath() (string, error) {
	return DataPath("config.toml")
}

// DefaultHistoryPath returns the job history database path.
func DefaultHistoryPath() (string, error) {
	return DataPath("history.db")
}

// DefaultExportDir returns the directory exports are saved into (~/.tgstatctl/exports).
func DefaultExportDir() (string, error) {
	return DataPath("exports")
}

// EnsureDir creates a directory if it doesn't exist.
// Uses 0750 permissions (owner: rwx, group: rx, other: none).
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of a file path if it doesn't exist.
func EnsureParentDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// ExpandTilde expands a path that starts with ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
