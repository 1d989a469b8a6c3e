package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Save writes tree's raw view back to path, first copying the existing file
// into a timestamped backup under a "backups" directory next to path.
// tree.Raw() is a plain map, so comments in the existing file are not kept;
// [SaveRaw] with a [RawDocument] edit is the comment-preserving path.
func Save(tree *ConfigTree, path string) error {
	if err := backup(path); err != nil {
		return fmt.Errorf("config: backup before save: %w", err)
	}

	data, err := yaml.Marshal(tree.Raw())
	if err != nil {
		return fmt.Errorf("config: encode yaml: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: rename temp file into place: %w", err)
	}
	return nil
}

// SaveRaw writes text verbatim to path, first backing up any existing file,
// the same backup-then-atomic-rename discipline as Save. Intended for the
// administrative write path, which edits a [RawDocument] to preserve
// comments rather than re-marshaling tree.Raw().
func SaveRaw(text, path string) error {
	if err := backup(path); err != nil {
		return fmt.Errorf("config: backup before save: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: rename temp file into place: %w", err)
	}
	return nil
}

// backup copies the file at path into a "backups" directory next to it,
// named "<basename>.<UTC timestamp>.bak" (see backupStamp), if path exists. Absence of the source
// file is not an error (first save of a new config), and the backups
// directory is not created in that case.
func backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	backupDir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("config: create backups dir: %w", err)
	}
	stamp := backupStamp()
	bakPath := filepath.Join(backupDir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	return os.WriteFile(bakPath, data, 0o644)
}

// backupStamp is overridable in tests to keep backup names deterministic.
var backupStamp = func() string {
	return time.Now().UTC().Format("20060102T150405.000000000Z")
}

// EnsureParentDir creates the directory containing path if it does not
// already exist, used before the first Save of a freshly generated config.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
