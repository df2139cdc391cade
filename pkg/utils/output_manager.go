package utils

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// OutputManager handles output file organization under a base directory.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// GetOutputFilePath joins a subdirectory and file name under the base directory.
func (om *OutputManager) GetOutputFilePath(subDir, fileName string) string {
	return filepath.Join(om.BaseOutputDir, subDir, filepath.Base(fileName))
}

// Exists reports whether a regular file exists at path.
func (om *OutputManager) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "failed to stat %s", path)
	}
	return info.Mode().IsRegular(), nil
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to stat %s", path)
	}
	return info.Size(), nil
}

// WriteAtomic writes a file through a temp file in the same directory and
// renames it into place, so path either holds the complete output or nothing.
func (om *OutputManager) WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "failed to create output directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "failed to create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "failed to sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "failed to move output into %s", path)
	}
	return nil
}

// Remove deletes a file; a missing file is not an error.
func (om *OutputManager) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "failed to remove %s", path)
	}
	return nil
}
