package gedbq

import (
	"context"
	"os"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/changewriter"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/codec"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/compiler"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/docstore"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/evaluator"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/persistence"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/shape"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/translator"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/worker"
)

// DB is an embedded document database queried through typed sequences. The
// store is opened on first use and every store operation is serialized, so
// a DB can be shared by goroutines. Sessions cannot.
type DB struct {
	filename              string
	inMemoryOnly          bool
	corruptAlertThreshold float64
	fileMode              os.FileMode
	dirMode               os.FileMode
	compression           bool
	workers               int
	namespace             string
	registerer            prometheus.Registerer
	codecTypes            []domain.CodecType
	log                   *zap.SugaredLogger

	codec      domain.Codec
	comparer   domain.Comparer
	hasher     domain.Hasher
	metrics    domain.Metrics
	store      domain.Store
	shapes     domain.ShapeBuilder
	translator domain.Translator
	compiler   domain.Compiler
	evaluator  domain.Evaluator
	writer     domain.ChangeWriter
	runner     domain.Runner
}

// Open creates a new DB with the given options. Without [WithFilename] the
// data is kept in memory. The datafile itself is only read on first use
// or by [DB.EnsureCreated].
func Open(opts ...Option) (*DB, error) {
	db := &DB{
		corruptAlertThreshold: persistence.DefaultCorruptAlertThreshold,
		fileMode:              persistence.DefaultFileMode,
		dirMode:               persistence.DefaultDirMode,
		workers:               worker.DefaultSize,
		namespace:             metrics.DefaultNamespace,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.log == nil {
		db.log = zap.NewNop().Sugar()
	}
	if db.codec == nil {
		db.codec = codec.NewCodec(codecOptions(db.codecTypes)...)
	}
	if db.comparer == nil {
		db.comparer = comparer.NewComparer()
	}
	if db.hasher == nil {
		db.hasher = hasher.NewHasher()
	}
	if db.metrics == nil {
		m, err := metrics.NewMetrics(
			domain.WithMetricsRegisterer(db.registerer),
			domain.WithMetricsNamespace(db.namespace),
		)
		if err != nil {
			return nil, err
		}
		db.metrics = m
	}
	if db.store == nil {
		s, err := db.newStore()
		if err != nil {
			return nil, err
		}
		db.store = s
	}
	if db.translator == nil {
		db.translator = translator.NewTranslator(domain.WithTranslatorLogger(db.log))
	}
	if db.compiler == nil {
		db.compiler = compiler.NewCompiler(
			domain.WithCompilerCodec(db.codec),
			domain.WithCompilerComparer(db.comparer),
			domain.WithCompilerHasher(db.hasher),
			domain.WithCompilerMetrics(db.metrics),
			domain.WithCompilerLogger(db.log),
		)
	}

	runner, err := worker.NewRunner(domain.WithRunnerSize(db.workers), domain.WithRunnerLogger(db.log))
	if err != nil {
		return nil, err
	}
	db.runner = runner
	db.shapes = shape.NewBuilder(domain.WithShapeBuilderCodec(db.codec))
	db.evaluator = evaluator.NewEvaluator(
		domain.WithEvaluatorComparer(db.comparer),
		domain.WithEvaluatorHasher(db.hasher),
	)
	db.writer = changewriter.NewChangeWriter(
		domain.WithChangeWriterStore(db.store),
		domain.WithChangeWriterCodec(db.codec),
		domain.WithChangeWriterMetrics(db.metrics),
		domain.WithChangeWriterLogger(db.log),
	)
	return db, nil
}

func codecOptions(types []domain.CodecType) []domain.CodecOption {
	opts := make([]domain.CodecOption, len(types))
	for n, t := range types {
		opts[n] = domain.WithCodecType(t)
	}
	return opts
}

func (db *DB) newStore() (domain.Store, error) {
	p, err := persistence.NewPersistence(
		domain.WithPersistenceFilename(db.filename),
		domain.WithPersistenceInMemoryOnly(db.inMemoryOnly),
		domain.WithPersistenceCorruptAlertThreshold(db.corruptAlertThreshold),
		domain.WithPersistenceFileMode(db.fileMode),
		domain.WithPersistenceDirMode(db.dirMode),
		domain.WithPersistenceSerializer(serializer.NewSerializer(
			domain.WithSerializerCompression(db.compression),
		)),
		domain.WithPersistenceComparer(db.comparer),
		domain.WithPersistenceHasher(db.hasher),
		domain.WithPersistenceLogger(db.log),
	)
	if err != nil {
		return nil, err
	}
	return docstore.NewStore(
		domain.WithStorePersistence(p),
		domain.WithStoreComparer(db.comparer),
		domain.WithStoreLogger(db.log),
	)
}

// EnsureCreated opens the store, returning true if the datafile did not
// exist yet.
func (db *DB) EnsureCreated(ctx context.Context) (bool, error) {
	return db.store.Open(ctx)
}

// EnsureDeleted removes every collection and the datafile content,
// returning true if there was anything to remove.
func (db *DB) EnsureDeleted(ctx context.Context) (bool, error) {
	return db.store.Drop(ctx)
}

// CanConnect reports whether the store can be opened.
func (db *DB) CanConnect(ctx context.Context) bool {
	return db.store.CanConnect(ctx)
}

// Compact rewrites the datafile keeping only live documents.
func (db *DB) Compact(ctx context.Context) error {
	return db.store.Compact(ctx)
}

// Close waits for running async operations and closes the store. Calling
// Close more than once is a no-op.
func (db *DB) Close() error {
	db.runner.Release()
	return db.store.Close()
}

// NewSession returns a new unit of work with its own identity map.
func (db *DB) NewSession() *Session {
	return newSession(db)
}

// NewQueryContext implements domain.QueryContextFactory. Queries run
// through the DB itself are never tracked.
func (db *DB) NewQueryContext(bool) *domain.QueryContext {
	return &domain.QueryContext{Store: db.store}
}

func (db *DB) shape(t reflect.Type) (*domain.Shape, error) {
	return db.shapes.Shape(t)
}
