package domain

import (
	"io"
	"os"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SerializerOption configures a [Serializer] through the functional options
// pattern.
type SerializerOption func(*SerializerOptions)

// SerializerOptions contains parameters for the record serializer.
type SerializerOptions struct {
	// Compression enables LZ4 block compression of record payloads.
	Compression bool
	// MinCompressSize is the smallest payload that is compressed.
	MinCompressSize int
}

// WithSerializerCompression enables or disables payload compression.
func WithSerializerCompression(c bool) SerializerOption {
	return func(so *SerializerOptions) {
		so.Compression = c
	}
}

// WithSerializerMinCompressSize sets the smallest payload that gets
// compressed.
func WithSerializerMinCompressSize(n int) SerializerOption {
	return func(so *SerializerOptions) {
		so.MinCompressSize = n
	}
}

// PersistenceOption configures a [Persistence] through the functional
// options pattern.
type PersistenceOption func(*PersistenceOptions)

// PersistenceOptions contains parameters for the record log.
type PersistenceOptions struct {
	// Filename is the datafile path. Empty means in-memory only.
	Filename string
	// InMemoryOnly disables the datafile.
	InMemoryOnly bool
	// CorruptAlertThreshold is the share of unreadable records tolerated
	// when loading, between 0 and 1.
	CorruptAlertThreshold float64
	// FileMode is the datafile permission.
	FileMode os.FileMode
	// DirMode is the permission of created parent directories.
	DirMode os.FileMode
	// Serializer encodes records.
	Serializer Serializer
	// Deserializer decodes records.
	Deserializer Deserializer
	// Storage performs file operations.
	Storage Storage
	// Comparer matches document keys while replaying the log.
	Comparer Comparer
	// Hasher hashes uncomparable document keys while replaying the log.
	Hasher Hasher
	// Logger receives warnings about skipped records.
	Logger *zap.SugaredLogger
}

// WithPersistenceFilename sets the datafile path.
func WithPersistenceFilename(f string) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Filename = f
	}
}

// WithPersistenceInMemoryOnly disables the datafile.
func WithPersistenceInMemoryOnly(i bool) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.InMemoryOnly = i
	}
}

// WithPersistenceCorruptAlertThreshold sets the tolerated share of
// unreadable records.
func WithPersistenceCorruptAlertThreshold(c float64) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.CorruptAlertThreshold = c
	}
}

// WithPersistenceFileMode sets the datafile permission.
func WithPersistenceFileMode(m os.FileMode) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.FileMode = m
	}
}

// WithPersistenceDirMode sets the permission of created directories.
func WithPersistenceDirMode(m os.FileMode) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.DirMode = m
	}
}

// WithPersistenceSerializer sets the record serializer.
func WithPersistenceSerializer(s Serializer) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Serializer = s
	}
}

// WithPersistenceDeserializer sets the record deserializer.
func WithPersistenceDeserializer(d Deserializer) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Deserializer = d
	}
}

// WithPersistenceStorage sets the file operations implementation.
func WithPersistenceStorage(s Storage) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Storage = s
	}
}

// WithPersistenceLogger sets the logger.
func WithPersistenceLogger(l *zap.SugaredLogger) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Logger = l
	}
}

// WithPersistenceComparer sets the key comparer.
func WithPersistenceComparer(c Comparer) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Comparer = c
	}
}

// WithPersistenceHasher sets the key hasher.
func WithPersistenceHasher(h Hasher) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Hasher = h
	}
}

// IDGeneratorOption configures an [IDGenerator].
type IDGeneratorOption func(*IDGeneratorOptions)

// IDGeneratorOptions contains parameters for key generation.
type IDGeneratorOptions struct {
	// Reader is the randomness source of string keys.
	Reader io.Reader
	// Length is the length of string keys.
	Length int
}

// WithIDGeneratorReader sets the randomness source of string keys.
func WithIDGeneratorReader(r io.Reader) IDGeneratorOption {
	return func(o *IDGeneratorOptions) {
		o.Reader = r
	}
}

// WithIDGeneratorLength sets the length of string keys.
func WithIDGeneratorLength(l int) IDGeneratorOption {
	return func(o *IDGeneratorOptions) {
		o.Length = l
	}
}

// StoreOption configures a [Store].
type StoreOption func(*StoreOptions)

// StoreOptions contains parameters for the document store adapter.
type StoreOptions struct {
	// Persistence is the record log. Required.
	Persistence Persistence
	// Comparer orders keys.
	Comparer Comparer
	// IDGenerator creates missing keys.
	IDGenerator IDGenerator
	// Logger records lifecycle events.
	Logger *zap.SugaredLogger
}

// WithStorePersistence sets the record log.
func WithStorePersistence(p Persistence) StoreOption {
	return func(so *StoreOptions) {
		so.Persistence = p
	}
}

// WithStoreComparer sets the key comparer.
func WithStoreComparer(c Comparer) StoreOption {
	return func(so *StoreOptions) {
		so.Comparer = c
	}
}

// WithStoreIDGenerator sets the key generator.
func WithStoreIDGenerator(g IDGenerator) StoreOption {
	return func(so *StoreOptions) {
		so.IDGenerator = g
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *zap.SugaredLogger) StoreOption {
	return func(so *StoreOptions) {
		so.Logger = l
	}
}

// CollectionOption configures a collection handle.
type CollectionOption func(*CollectionOptions)

// CollectionOptions contains parameters of a collection.
type CollectionOptions struct {
	// AutoID is the key generation strategy. Nil keeps the current one.
	AutoID *AutoID
}

// WithAutoID sets the key generation strategy of a collection.
func WithAutoID(a AutoID) CollectionOption {
	return func(co *CollectionOptions) {
		co.AutoID = &a
	}
}

// CodecType registers a semantic type in a [Codec].
type CodecType struct {
	// Tag identifies the semantic type.
	Tag Type
	// Match reports whether values of a Go type use this entry.
	Match func(reflect.Type) bool
	// Encode converts a non-nil value to a store value.
	Encode func(reflect.Value) (any, error)
	// Decode converts a non-nil store value to the given type.
	Decode func(any, reflect.Type) (reflect.Value, error)
}

// CodecOption configures a [Codec].
type CodecOption func(*CodecOptions)

// CodecOptions contains parameters of the value codec.
type CodecOptions struct {
	// Types are registered before the default types, so they take
	// precedence.
	Types []CodecType
	// Decoder is the weak decoder used for unknown types.
	Decoder Decoder
}

// WithCodecType registers a semantic type.
func WithCodecType(t CodecType) CodecOption {
	return func(co *CodecOptions) {
		co.Types = append(co.Types, t)
	}
}

// WithCodecDecoder sets the weak decoder used for unknown types.
func WithCodecDecoder(d Decoder) CodecOption {
	return func(co *CodecOptions) {
		co.Decoder = d
	}
}

// ShapeBuilderOption configures a [ShapeBuilder].
type ShapeBuilderOption func(*ShapeBuilderOptions)

// ShapeBuilderOptions contains parameters of the shape builder.
type ShapeBuilderOptions struct {
	// Codec classifies field types.
	Codec Codec
}

// WithShapeBuilderCodec sets the codec used to classify fields.
func WithShapeBuilderCodec(c Codec) ShapeBuilderOption {
	return func(so *ShapeBuilderOptions) {
		so.Codec = c
	}
}

// TranslatorOption configures a [Translator].
type TranslatorOption func(*TranslatorOptions)

// TranslatorOptions contains parameters of the operator translator.
type TranslatorOptions struct {
	// Logger records deferred operators.
	Logger *zap.SugaredLogger
}

// WithTranslatorLogger sets the logger.
func WithTranslatorLogger(l *zap.SugaredLogger) TranslatorOption {
	return func(to *TranslatorOptions) {
		to.Logger = l
	}
}

// CompilerOption configures a [Compiler].
type CompilerOption func(*CompilerOptions)

// CompilerOptions contains parameters of the execution compiler.
type CompilerOptions struct {
	// Codec decodes document fields.
	Codec Codec
	// Comparer orders sort keys.
	Comparer Comparer
	// Hasher partitions group keys.
	Hasher Hasher
	// Metrics receives scan counts.
	Metrics Metrics
	// Logger records executions.
	Logger *zap.SugaredLogger
}

// WithCompilerCodec sets the codec.
func WithCompilerCodec(c Codec) CompilerOption {
	return func(co *CompilerOptions) {
		co.Codec = c
	}
}

// WithCompilerComparer sets the comparer.
func WithCompilerComparer(c Comparer) CompilerOption {
	return func(co *CompilerOptions) {
		co.Comparer = c
	}
}

// WithCompilerHasher sets the hasher.
func WithCompilerHasher(h Hasher) CompilerOption {
	return func(co *CompilerOptions) {
		co.Hasher = h
	}
}

// WithCompilerMetrics sets the metrics sink.
func WithCompilerMetrics(m Metrics) CompilerOption {
	return func(co *CompilerOptions) {
		co.Metrics = m
	}
}

// WithCompilerLogger sets the logger.
func WithCompilerLogger(l *zap.SugaredLogger) CompilerOption {
	return func(co *CompilerOptions) {
		co.Logger = l
	}
}

// EvaluatorOption configures an [Evaluator].
type EvaluatorOption func(*EvaluatorOptions)

// EvaluatorOptions contains parameters of the client evaluator.
type EvaluatorOptions struct {
	// Comparer orders keys and aggregates.
	Comparer Comparer
	// Hasher buckets uncomparable elements for set operators.
	Hasher Hasher
}

// WithEvaluatorComparer sets the comparer.
func WithEvaluatorComparer(c Comparer) EvaluatorOption {
	return func(eo *EvaluatorOptions) {
		eo.Comparer = c
	}
}

// WithEvaluatorHasher sets the hasher.
func WithEvaluatorHasher(h Hasher) EvaluatorOption {
	return func(eo *EvaluatorOptions) {
		eo.Hasher = h
	}
}

// IdentityMapOption configures an [IdentityMap].
type IdentityMapOption func(*IdentityMapOptions)

// IdentityMapOptions contains parameters of the identity map.
type IdentityMapOptions struct {
	// Hasher buckets keys.
	Hasher Hasher
	// Comparer resolves hash collisions.
	Comparer Comparer
}

// WithIdentityMapHasher sets the hasher.
func WithIdentityMapHasher(h Hasher) IdentityMapOption {
	return func(io *IdentityMapOptions) {
		io.Hasher = h
	}
}

// WithIdentityMapComparer sets the comparer.
func WithIdentityMapComparer(c Comparer) IdentityMapOption {
	return func(io *IdentityMapOptions) {
		io.Comparer = c
	}
}

// ChangeWriterOption configures a [ChangeWriter].
type ChangeWriterOption func(*ChangeWriterOptions)

// ChangeWriterOptions contains parameters of the change writer.
type ChangeWriterOptions struct {
	// Store receives the changes.
	Store Store
	// Codec encodes entity fields.
	Codec Codec
	// Metrics receives affected row counts.
	Metrics Metrics
	// Logger records save summaries.
	Logger *zap.SugaredLogger
}

// WithChangeWriterStore sets the store the changes are written to.
func WithChangeWriterStore(s Store) ChangeWriterOption {
	return func(co *ChangeWriterOptions) {
		co.Store = s
	}
}

// WithChangeWriterCodec sets the codec.
func WithChangeWriterCodec(c Codec) ChangeWriterOption {
	return func(co *ChangeWriterOptions) {
		co.Codec = c
	}
}

// WithChangeWriterMetrics sets the metrics sink.
func WithChangeWriterMetrics(m Metrics) ChangeWriterOption {
	return func(co *ChangeWriterOptions) {
		co.Metrics = m
	}
}

// WithChangeWriterLogger sets the logger.
func WithChangeWriterLogger(l *zap.SugaredLogger) ChangeWriterOption {
	return func(co *ChangeWriterOptions) {
		co.Logger = l
	}
}

// RunnerOption configures a [Runner].
type RunnerOption func(*RunnerOptions)

// RunnerOptions contains parameters of the worker pool.
type RunnerOptions struct {
	// Size is the maximum number of concurrent workers.
	Size int
	// Logger receives recovered panics.
	Logger *zap.SugaredLogger
}

// WithRunnerSize sets the number of workers.
func WithRunnerSize(s int) RunnerOption {
	return func(ro *RunnerOptions) {
		ro.Size = s
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *zap.SugaredLogger) RunnerOption {
	return func(ro *RunnerOptions) {
		ro.Logger = l
	}
}

// MetricsOption configures a [Metrics] sink.
type MetricsOption func(*MetricsOptions)

// MetricsOptions contains parameters of the metrics sink.
type MetricsOptions struct {
	// Registerer receives the collectors. Nil keeps them unregistered.
	Registerer prometheus.Registerer
	// Namespace prefixes every metric name.
	Namespace string
}

// WithMetricsRegisterer sets the registerer.
func WithMetricsRegisterer(r prometheus.Registerer) MetricsOption {
	return func(mo *MetricsOptions) {
		mo.Registerer = r
	}
}

// WithMetricsNamespace sets the metric namespace.
func WithMetricsNamespace(n string) MetricsOption {
	return func(mo *MetricsOptions) {
		mo.Namespace = n
	}
}
