package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDirName is the fixed-name subdirectory of the media directory
// that holds originals displaced by a backfill run.
const DefaultDirName = "backup_original"

// ErrCollision is returned by Archive when a file with the same base
// name already sits in the vault. The run aborts on it: a collision
// means an earlier run's state is not what this run expects, and
// overwriting the stored original would destroy the only copy.
var ErrCollision = errors.New("backup vault collision")

// Vault manages the backup location for files about to be displaced by
// a destructive change.
type Vault struct {
	dir string
}

// NewVault returns a Vault rooted at dirName inside mediaDir.
func NewVault(mediaDir, dirName string) *Vault {
	if dirName == "" {
		dirName = DefaultDirName
	}
	return &Vault{dir: filepath.Join(mediaDir, dirName)}
}

// Dir returns the vault directory path.
func (v *Vault) Dir() string {
	return v.dir
}

// Name returns the vault directory base name, used to exclude it from
// media enumeration.
func (v *Vault) Name() string {
	return filepath.Base(v.dir)
}

// Ensure creates the vault directory if it does not exist. It is
// idempotent and succeeds when the directory is already present.
func (v *Vault) Ensure() error {
	info, err := os.Stat(v.dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("backup location exists but is not a directory: %s", v.dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat backup directory: %w", err)
	}
	if err := os.Mkdir(v.dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return nil
}

// Archive moves a file into the vault, preserving its base name.
func (v *Vault) Archive(path string) error {
	dest := filepath.Join(v.dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s already exists in %s", ErrCollision, filepath.Base(path), v.dir)
	}
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}
