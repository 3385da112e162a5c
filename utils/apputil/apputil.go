// Package apputil provides utility functions for file and directory
// operations.
package apputil

import (
	"os"
	"path/filepath"
)

// EnsureDir checks if a file could be written to a path and creates the
// necessary directories if they don't exist.
func EnsureDir(fileName string) (err error) {
	dirName := filepath.Dir(fileName)
	if _, err = os.Stat(dirName); err != nil {
		return os.MkdirAll(dirName, os.ModePerm)
	}
	return
}

// FileExists reports whether the named file or directory exists.
func FileExists(filePath string) bool {
	_, e := os.Stat(filePath)
	return e == nil
}
