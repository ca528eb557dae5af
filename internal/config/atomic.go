package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/tgstatctl/internal/logging"
)

// DefaultBackupCount is the number of previous config versions kept by Save.
const DefaultBackupCount = 3

// Save writes cfg to path atomically, keeping rotated .bak copies of the
// previous file. The format follows the extension (TOML unless .yaml/.yml).
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		enc.Close()
	default:
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode TOML: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := createBackup(path, DefaultBackupCount); err != nil {
			logging.L_warn("config: backup failed, continuing with save", "error", err)
		}
	}

	if err := AtomicWrite(path, buf.Bytes(), 0600); err != nil {
		return err
	}
	logging.L_debug("config: saved", "path", path)
	return nil
}

// AtomicWrite writes data to path atomically using temp file + rename.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Same directory keeps the rename on one filesystem
	tmp, err := os.CreateTemp(dir, ".tgstatctl-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp to target: %w", err)
	}

	success = true
	return nil
}

// createBackup rotates existing backups and copies the current file to .bak
func createBackup(path string, maxBackups int) error {
	rotateBackups(path, maxBackups)

	backupPath := path + ".bak"
	if err := copyFile(path, backupPath); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	logging.L_debug("config: created backup", "path", backupPath)
	return nil
}

// rotateBackups drops .bak.N-1 and shifts .bak -> .bak.1 -> .bak.2 ...
func rotateBackups(path string, maxBackups int) {
	if maxBackups <= 1 {
		return
	}

	backupBase := path + ".bak"
	maxIndex := maxBackups - 1

	oldestPath := fmt.Sprintf("%s.%d", backupBase, maxIndex)
	if err := os.Remove(oldestPath); err != nil && !os.IsNotExist(err) {
		logging.L_trace("config: failed to remove oldest backup", "path", oldestPath, "error", err)
	}

	for i := maxIndex - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", backupBase, i)
		dst := fmt.Sprintf("%s.%d", backupBase, i+1)
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			logging.L_trace("config: failed to rotate backup", "src", src, "dst", dst, "error", err)
		}
	}

	if err := os.Rename(backupBase, backupBase+".1"); err != nil && !os.IsNotExist(err) {
		logging.L_trace("config: failed to rotate .bak to .bak.1", "error", err)
	}
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
