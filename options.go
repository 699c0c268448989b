package gedbq

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a [DB] through the functional options pattern.
type Option func(*DB)

// WithFilename sets the datafile path. An empty name keeps the store in
// memory. Names ending with '~' are reserved for crash-safe rewrites.
func WithFilename(f string) Option {
	return func(db *DB) {
		db.filename = f
	}
}

// WithInMemoryOnly disables the datafile.
func WithInMemoryOnly(i bool) Option {
	return func(db *DB) {
		db.inMemoryOnly = i
	}
}

// WithCorruptionThreshold sets the share of unreadable records, between 0
// and 1, tolerated when opening the datafile. Defaults to 0.1.
func WithCorruptionThreshold(c float64) Option {
	return func(db *DB) {
		db.corruptAlertThreshold = c
	}
}

// WithFileMode sets the permission of the datafile.
func WithFileMode(m os.FileMode) Option {
	return func(db *DB) {
		db.fileMode = m
	}
}

// WithDirMode sets the permission of created parent directories.
func WithDirMode(m os.FileMode) Option {
	return func(db *DB) {
		db.dirMode = m
	}
}

// WithCompression enables LZ4 compression of stored records.
func WithCompression(c bool) Option {
	return func(db *DB) {
		db.compression = c
	}
}

// WithWorkers sets the size of the pool running the async methods.
func WithWorkers(n int) Option {
	return func(db *DB) {
		db.workers = n
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(db *DB) {
		db.log = l
	}
}

// WithRegisterer registers the engine metrics in r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(db *DB) {
		db.registerer = r
	}
}

// WithMetricsNamespace sets the prefix of the metric names.
func WithMetricsNamespace(n string) Option {
	return func(db *DB) {
		db.namespace = n
	}
}

// WithMetrics replaces the Prometheus metrics.
func WithMetrics(m Metrics) Option {
	return func(db *DB) {
		db.metrics = m
	}
}

// WithCodecType registers a custom semantic type in the default codec.
func WithCodecType(t CodecType) Option {
	return func(db *DB) {
		db.codecTypes = append(db.codecTypes, t)
	}
}

// WithCodec replaces the value codec.
func WithCodec(c Codec) Option {
	return func(db *DB) {
		db.codec = c
	}
}

// WithComparer replaces the comparer used for ordering, Min and Max.
func WithComparer(c Comparer) Option {
	return func(db *DB) {
		db.comparer = c
	}
}

// WithHasher replaces the hasher used for grouping and set operators.
func WithHasher(h Hasher) Option {
	return func(db *DB) {
		db.hasher = h
	}
}

// WithStore replaces the embedded document store. File related options are
// ignored when set.
func WithStore(s Store) Option {
	return func(db *DB) {
		db.store = s
	}
}

// WithTranslator replaces the operator translator.
func WithTranslator(t Translator) Option {
	return func(db *DB) {
		db.translator = t
	}
}

// WithCompiler replaces the expression compiler. A custom compiler usually
// comes with a custom [Translator].
func WithCompiler(c Compiler) Option {
	return func(db *DB) {
		db.compiler = c
	}
}
