// Package setup provides the interactive setup wizard for tgstatctl.
package setup

import (
	"fmt"

	"github.com/roelfdiedericks/tgstatctl/internal/config"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/paths"
)

// TargetPath returns where the wizard writes: the given path, the config
// that is already active, or ~/.tgstatctl/config.toml for a fresh install.
func TargetPath(explicit string) (string, error) {
	if explicit != "" {
		return paths.ExpandTilde(explicit)
	}
	existing, err := paths.ConfigPath()
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	return paths.DefaultConfigPath()
}

// RunWizard runs the wizard starting from base (defaults when nil) and
// writes the result to path. It returns false when the operator cancels.
func RunWizard(base *config.Config, path string) (bool, error) {
	if base == nil {
		base = config.Default()
	}
	w := NewWizard(base)
	if err := w.Run(); err != nil {
		return false, err
	}
	if !w.confirmed {
		fmt.Println("Setup cancelled. No changes were saved.")
		return false, nil
	}

	cfg, err := w.Apply()
	if err != nil {
		return false, err
	}
	if err := Save(cfg, path); err != nil {
		return false, err
	}

	fmt.Println()
	fmt.Println("Setup complete!")
	fmt.Println()
	fmt.Println("  tgstatctl              Interactive console")
	fmt.Println("  tgstatctl channels     List collected channels")
	fmt.Println("  tgstatctl collect      Run one collection")
	fmt.Println()
	fmt.Printf("Configuration saved to: %s\n", path)
	return true, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *config.Config, path string) error {
	if err := paths.EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	L_info("setup: saved configuration", "path", path)
	return nil
}
