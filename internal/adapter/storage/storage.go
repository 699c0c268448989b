// Package storage contains the default [domain.Storage] implementation and
// the binary layout of datafiles.
package storage

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

type osOps interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
	Rename(oldPath, newPath string) error
	Stat(name string) (os.FileInfo, error)
	IsNotExist(err error) bool
}

type defaultOS struct{}

func (defaultOS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}
func (defaultOS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (defaultOS) Remove(name string) error                    { return os.Remove(name) }
func (defaultOS) Rename(oldPath, newPath string) error        { return os.Rename(oldPath, newPath) }
func (defaultOS) Stat(name string) (os.FileInfo, error)       { return os.Stat(name) }
func (defaultOS) IsNotExist(err error) bool                   { return os.IsNotExist(err) }

var osSpecificEnsureDir = func(o osOps, dir string, mode os.FileMode) error {
	return o.MkdirAll(dir, mode)
}

// Storage implements domain.Storage.
type Storage struct {
	os osOps
}

// NewStorage returns a new implementation of domain.Storage.
func NewStorage() domain.Storage {
	return &Storage{os: defaultOS{}}
}

// AppendFile implements domain.Storage.
func (d *Storage) AppendFile(filename string, mode os.FileMode, data []byte) (int, error) {
	f, err := d.os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, mode)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Write(data)
}

// CrashSafeWriteFrames implements domain.Storage.
func (d *Storage) CrashSafeWriteFrames(filename string, frames [][]byte, dirMode os.FileMode, fileMode os.FileMode) error {
	tempFilename := filename + "~"

	if err := d.flushToStorage(filepath.Dir(filename), true, dirMode); err != nil {
		return err
	}

	exists, err := d.Exists(filename)
	if err != nil {
		return err
	}

	if exists {
		if err := d.flushToStorage(filename, false, fileMode); err != nil {
			return err
		}
	}

	if err := d.writeFrames(tempFilename, frames, fileMode); err != nil {
		return err
	}

	if err := d.flushToStorage(tempFilename, false, fileMode); err != nil {
		return err
	}

	if err := d.os.Rename(tempFilename, filename); err != nil {
		return err
	}

	return d.flushToStorage(filepath.Dir(filename), true, dirMode)
}

// EnsureDatafileIntegrity implements domain.Storage.
func (d *Storage) EnsureDatafileIntegrity(filename string, mode os.FileMode) (bool, error) {
	tempFilename := filename + "~"

	filenameExists, err := d.Exists(filename)
	if err != nil {
		return false, err
	}
	// Write was successful
	if filenameExists {
		return false, nil
	}

	oldFilenameExists, err := d.Exists(tempFilename)
	if err != nil {
		return false, err
	}
	// Crash during a rewrite, the temp file is complete
	if oldFilenameExists {
		return false, d.os.Rename(tempFilename, filename)
	}

	// New database
	if err := d.writeFrames(filename, nil, mode); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureParentDirectoryExists implements domain.Storage.
func (d *Storage) EnsureParentDirectoryExists(filename string, mode os.FileMode) error {
	parsedDir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return err
	}
	return osSpecificEnsureDir(d.os, parsedDir, mode)
}

// Exists implements domain.Storage.
func (d *Storage) Exists(filename string) (bool, error) {
	_, err := d.os.Stat(filename)
	if err != nil {
		if d.os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadFileStream implements domain.Storage.
func (d *Storage) ReadFileStream(filename string, mode os.FileMode) (io.ReadCloser, error) {
	return d.os.OpenFile(filename, os.O_RDONLY, mode)
}

// Remove implements domain.Storage.
func (d *Storage) Remove(filename string) error {
	return d.os.Remove(filename)
}

func (d *Storage) flushToStorage(filename string, isDir bool, mode os.FileMode) error {
	flags := os.O_RDWR
	if isDir {
		flags = os.O_RDONLY
	}

	fileHandle, err := d.os.OpenFile(filename, flags, mode)
	if err != nil {
		return domain.ErrFlushToStorage{ErrorOnFsync: err}
	}

	if err := fileHandle.Sync(); err != nil {
		fileHandle.Close()
		return domain.ErrFlushToStorage{ErrorOnFsync: err}
	}

	if err := fileHandle.Close(); err != nil {
		return domain.ErrFlushToStorage{ErrorOnClose: err}
	}

	return nil
}

func (d *Storage) writeFrames(filename string, frames [][]byte, mode os.FileMode) error {
	f, err := d.os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteHeader(w); err != nil {
		return err
	}
	for _, frame := range frames {
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return w.Flush()
}
