package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

type osOpsMock struct {
	mock.Mock
	passthrough int
}

func (o *osOpsMock) pass() bool {
	if o.passthrough > 0 {
		o.passthrough--
		return true
	}
	return false
}

// IsNotExist implements osOps.
func (o *osOpsMock) IsNotExist(err error) bool {
	if o.pass() {
		return os.IsNotExist(err)
	}
	return o.Called(err).Bool(0)
}

// MkdirAll implements osOps.
func (o *osOpsMock) MkdirAll(path string, perm os.FileMode) error {
	if o.pass() {
		return os.MkdirAll(path, perm)
	}
	return o.Called(path, perm).Error(0)
}

// OpenFile implements osOps.
func (o *osOpsMock) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	if o.pass() {
		return os.OpenFile(name, flag, perm)
	}
	call := o.Called(name, flag, perm)
	f, _ := call.Get(0).(*os.File)
	return f, call.Error(1)
}

// Remove implements osOps.
func (o *osOpsMock) Remove(name string) error {
	if o.pass() {
		return os.Remove(name)
	}
	return o.Called(name).Error(0)
}

// Rename implements osOps.
func (o *osOpsMock) Rename(oldPath, newPath string) error {
	if o.pass() {
		return os.Rename(oldPath, newPath)
	}
	return o.Called(oldPath, newPath).Error(0)
}

// Stat implements osOps.
func (o *osOpsMock) Stat(name string) (os.FileInfo, error) {
	if o.pass() {
		return os.Stat(name)
	}
	call := o.Called(name)
	fi, _ := call.Get(0).(os.FileInfo)
	return fi, call.Error(1)
}

type StorageTestSuite struct {
	suite.Suite
	dir     string
	storage *Storage
}

func (s *StorageTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.storage = NewStorage().(*Storage)
}

func (s *StorageTestSuite) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *StorageTestSuite) readAll(name string) []byte {
	b, err := os.ReadFile(name)
	s.Require().NoError(err)
	return b
}

// a new datafile should only contain the header.
func (s *StorageTestSuite) TestEnsureDatafileIntegrityNewFile() {
	name := s.path("store.db")
	created, err := s.storage.EnsureDatafileIntegrity(name, 0o666)
	s.NoError(err)
	s.True(created)

	b := s.readAll(name)
	s.Len(b, HeaderSize)
	_, err = ReadHeader(bytes.NewReader(b))
	s.NoError(err)
}

// an existing datafile should be left untouched.
func (s *StorageTestSuite) TestEnsureDatafileIntegrityExisting() {
	name := s.path("store.db")
	s.Require().NoError(os.WriteFile(name, []byte("content"), 0o666))

	created, err := s.storage.EnsureDatafileIntegrity(name, 0o666)
	s.NoError(err)
	s.False(created)
	s.Equal([]byte("content"), s.readAll(name))
}

// a leftover temp file should replace a missing datafile.
func (s *StorageTestSuite) TestEnsureDatafileIntegrityTempFile() {
	name := s.path("store.db")
	s.Require().NoError(os.WriteFile(name+"~", []byte("temp"), 0o666))

	created, err := s.storage.EnsureDatafileIntegrity(name, 0o666)
	s.NoError(err)
	s.False(created)
	s.Equal([]byte("temp"), s.readAll(name))
	exists, err := s.storage.Exists(name + "~")
	s.NoError(err)
	s.False(exists)
}

// stat errors other than not-exist should be returned.
func (s *StorageTestSuite) TestEnsureDatafileIntegrityStatError() {
	o := new(osOpsMock)
	s.storage.os = o
	errStat := errors.New("stat error")
	o.On("Stat", mock.Anything).Return(nil, errStat).Once()
	o.On("IsNotExist", errStat).Return(false).Once()

	_, err := s.storage.EnsureDatafileIntegrity(s.path("x"), 0o666)
	s.ErrorIs(err, errStat)
	o.AssertExpectations(s.T())
}

// frames should be written after the header and the temp file removed.
func (s *StorageTestSuite) TestCrashSafeWriteFrames() {
	name := s.path("store.db")
	s.Require().NoError(os.WriteFile(name, []byte("old"), 0o666))

	frames := [][]byte{NewFrame(0, 3, []byte("abc")), NewFrame(0, 2, []byte("de"))}
	s.NoError(s.storage.CrashSafeWriteFrames(name, frames, 0o755, 0o666))

	r := bytes.NewReader(s.readAll(name))
	_, err := ReadHeader(r)
	s.NoError(err)
	f1, err := ReadFrame(r)
	s.NoError(err)
	s.Equal(frames[0], f1)
	f2, err := ReadFrame(r)
	s.NoError(err)
	s.Equal(frames[1], f2)
	_, err = ReadFrame(r)
	s.ErrorIs(err, io.EOF)

	exists, err := s.storage.Exists(name + "~")
	s.NoError(err)
	s.False(exists)
}

// a failing directory flush should abort the rewrite.
func (s *StorageTestSuite) TestCrashSafeWriteFramesFlushError() {
	o := new(osOpsMock)
	s.storage.os = o
	errOpen := errors.New("open error")
	o.On("OpenFile", s.dir, os.O_RDONLY, os.FileMode(0o755)).Return(nil, errOpen).Once()

	err := s.storage.CrashSafeWriteFrames(s.path("store.db"), nil, 0o755, 0o666)
	var flushErr domain.ErrFlushToStorage
	s.ErrorAs(err, &flushErr)
	s.ErrorIs(err, errOpen)
	o.AssertExpectations(s.T())
}

// a rename failure should be reported.
func (s *StorageTestSuite) TestCrashSafeWriteFramesRenameError() {
	o := &osOpsMock{passthrough: 5}
	s.storage.os = o
	errRename := errors.New("rename error")
	name := s.path("store.db")
	o.On("Rename", name+"~", name).Return(errRename).Once()

	err := s.storage.CrashSafeWriteFrames(name, nil, 0o755, 0o666)
	s.ErrorIs(err, errRename)
	o.AssertExpectations(s.T())
}

// appends should go to the end of the file.
func (s *StorageTestSuite) TestAppendFile() {
	name := s.path("store.db")
	n, err := s.storage.AppendFile(name, 0o666, []byte("ab"))
	s.NoError(err)
	s.Equal(2, n)
	_, err = s.storage.AppendFile(name, 0o666, []byte("cd"))
	s.NoError(err)
	s.Equal([]byte("abcd"), s.readAll(name))

	_, err = s.storage.AppendFile(s.path("missing/store.db"), 0o666, []byte("ab"))
	s.Error(err)
}

// parent directories should be created recursively.
func (s *StorageTestSuite) TestEnsureParentDirectoryExists() {
	name := s.path("a/b/c/store.db")
	s.NoError(s.storage.EnsureParentDirectoryExists(name, 0o755))
	info, err := os.Stat(filepath.Dir(name))
	s.NoError(err)
	s.True(info.IsDir())
}

// read streams and removals should hit the file system.
func (s *StorageTestSuite) TestReadFileStreamRemove() {
	name := s.path("store.db")
	s.Require().NoError(os.WriteFile(name, []byte("data"), 0o666))

	r, err := s.storage.ReadFileStream(name, 0o666)
	s.Require().NoError(err)
	b, err := io.ReadAll(r)
	s.NoError(err)
	s.NoError(r.Close())
	s.Equal([]byte("data"), b)

	s.NoError(s.storage.Remove(name))
	exists, err := s.storage.Exists(name)
	s.NoError(err)
	s.False(exists)
}

func TestStorageTestSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}

type FormatTestSuite struct {
	suite.Suite
}

// headers with a wrong magic or version should be rejected.
func (s *FormatTestSuite) TestHeader() {
	buf := new(bytes.Buffer)
	s.NoError(WriteHeader(buf))
	s.Equal(HeaderSize, buf.Len())
	s.Equal([]byte(MagicBytes), buf.Bytes()[:4])

	h, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	s.NoError(err)
	s.Equal(FormatVersion, h.Version)

	bad := append([]byte(nil), buf.Bytes()...)
	bad[0] = 'X'
	_, err = ReadHeader(bytes.NewReader(bad))
	s.ErrorIs(err, domain.ErrInvalidHeader)

	bad = append([]byte(nil), buf.Bytes()...)
	bad[4] = 9
	_, err = ReadHeader(bytes.NewReader(bad))
	s.ErrorIs(err, domain.ErrInvalidHeader)

	_, err = ReadHeader(bytes.NewReader(buf.Bytes()[:3]))
	s.ErrorIs(err, domain.ErrInvalidHeader)
}

// frames should keep their flags and lengths.
func (s *FormatTestSuite) TestFrame() {
	frame := NewFrame(FlagCompressed, 10, []byte("xyz"))
	s.Len(frame, FrameHeaderSize+3)

	flags, rawLen, payload, err := ParseFrame(frame)
	s.NoError(err)
	s.Equal(FlagCompressed, flags)
	s.Equal(10, rawLen)
	s.Equal([]byte("xyz"), payload)

	_, _, _, err = ParseFrame(frame[:4])
	s.ErrorIs(err, domain.ErrTruncatedFrame)
	_, _, _, err = ParseFrame(frame[:len(frame)-1])
	s.ErrorIs(err, domain.ErrTruncatedFrame)
}

// a stream cut inside a frame should be reported as truncated.
func (s *FormatTestSuite) TestReadFrameTruncated() {
	frame := NewFrame(0, 5, []byte("hello"))

	_, err := ReadFrame(bytes.NewReader(nil))
	s.ErrorIs(err, io.EOF)

	_, err = ReadFrame(bytes.NewReader(frame[:5]))
	s.ErrorIs(err, domain.ErrTruncatedFrame)

	_, err = ReadFrame(bytes.NewReader(frame[:len(frame)-2]))
	s.ErrorIs(err, domain.ErrTruncatedFrame)

	huge := NewFrame(0, 1, nil)
	huge[5], huge[6], huge[7], huge[8] = 0xff, 0xff, 0xff, 0xff
	_, err = ReadFrame(bytes.NewReader(huge))
	s.ErrorIs(err, domain.ErrTruncatedFrame)
}

func TestFormatTestSuite(t *testing.T) {
	suite.Run(t, new(FormatTestSuite))
}
