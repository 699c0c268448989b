//go:build windows

package storage

import (
	"os"
	"path/filepath"
)

// Volume roots cannot be created with MkdirAll on windows.
func init() {
	osSpecificEnsureDir = func(o osOps, dir string, mode os.FileMode) error {
		if dir == filepath.VolumeName(dir)+string(os.PathSeparator) {
			return nil
		}
		return o.MkdirAll(dir, mode)
	}
}
