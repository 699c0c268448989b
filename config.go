package gedbq

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/persistence"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/worker"
)

// EnvPrefix prefixes the environment variables read by [LoadConfig], as in
// GEDBQ_FILENAME or GEDBQ_IN_MEMORY_ONLY.
const EnvPrefix = "GEDBQ"

// Config holds the settings of a [DB] that can be read from a file or the
// environment.
type Config struct {
	Filename            string      `gedbq:"filename"`
	InMemoryOnly        bool        `gedbq:"in_memory_only"`
	CorruptionThreshold float64     `gedbq:"corruption_threshold"`
	FileMode            os.FileMode `gedbq:"file_mode"`
	DirMode             os.FileMode `gedbq:"dir_mode"`
	Compression         bool        `gedbq:"compression"`
	Workers             int         `gedbq:"workers"`
	MetricsNamespace    string      `gedbq:"metrics_namespace"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		CorruptionThreshold: persistence.DefaultCorruptAlertThreshold,
		FileMode:            persistence.DefaultFileMode,
		DirMode:             persistence.DefaultDirMode,
		Workers:             worker.DefaultSize,
		MetricsNamespace:    metrics.DefaultNamespace,
	}
}

// LoadConfig reads the settings from the file at path, if given, and from
// the environment, which takes precedence. Any format known by viper is
// accepted. Modes may be written in octal, as in "0640".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]any{}
	if err := decoder.NewDecoder().Decode(cfg, &defaults); err != nil {
		return Config{}, err
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := decoder.NewDecoder().Decode(v.AllSettings(), &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Options returns the options applying c.
func (c Config) Options() []Option {
	return []Option{
		WithFilename(c.Filename),
		WithInMemoryOnly(c.InMemoryOnly),
		WithCorruptionThreshold(c.CorruptionThreshold),
		WithFileMode(c.FileMode),
		WithDirMode(c.DirMode),
		WithCompression(c.Compression),
		WithWorkers(c.Workers),
		WithMetricsNamespace(c.MetricsNamespace),
	}
}
