package gedbq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := LoadConfig("")
	s.NoError(err)
	s.Equal(DefaultConfig(), cfg)
}

func (s *ConfigTestSuite) TestFile() {
	path := filepath.Join(s.T().TempDir(), "gedbq.yaml")
	content := "filename: data/customers.db\n" +
		"compression: true\n" +
		"file_mode: \"0600\"\n" +
		"workers: 2\n"
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	s.NoError(err)
	s.Equal("data/customers.db", cfg.Filename)
	s.True(cfg.Compression)
	s.Equal(os.FileMode(0o600), cfg.FileMode)
	s.Equal(2, cfg.Workers)
	s.Equal(DefaultConfig().DirMode, cfg.DirMode)
	s.Equal(DefaultConfig().CorruptionThreshold, cfg.CorruptionThreshold)
}

// environment variables take precedence over the file.
func (s *ConfigTestSuite) TestEnv() {
	path := filepath.Join(s.T().TempDir(), "gedbq.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("workers: 2\n"), 0o600))
	s.T().Setenv("GEDBQ_WORKERS", "8")
	s.T().Setenv("GEDBQ_IN_MEMORY_ONLY", "true")

	cfg, err := LoadConfig(path)
	s.NoError(err)
	s.Equal(8, cfg.Workers)
	s.True(cfg.InMemoryOnly)
}

func (s *ConfigTestSuite) TestMissingFile() {
	_, err := LoadConfig(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Error(err)
}

func (s *ConfigTestSuite) TestOptions() {
	cfg := DefaultConfig()
	cfg.Compression = true
	cfg.Workers = 3

	db, err := Open(cfg.Options()...)
	s.Require().NoError(err)
	defer db.Close()
	s.True(db.compression)
	s.Equal(3, db.workers)
	s.Equal(cfg.CorruptionThreshold, db.corruptAlertThreshold)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
