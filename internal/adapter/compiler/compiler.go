// Package compiler contains the default [domain.Compiler] implementation.
//
// A compiled executable runs in a fixed order: scan the collection, decode
// the declared fields of every document into a typed instance (resolving it
// against the identity map when tracking), filter, sort, then either count,
// group, or reduce with the element operator, and project last.
package compiler

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/codec"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/querier"
)

// Query outcomes reported to [domain.Metrics].
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Compiler implements domain.Compiler.
type Compiler struct {
	codec   domain.Codec
	querier *querier.Querier
	metrics domain.Metrics
	log     *zap.SugaredLogger
}

// NewCompiler returns a new implementation of domain.Compiler.
func NewCompiler(opts ...domain.CompilerOption) domain.Compiler {
	options := domain.CompilerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Codec == nil {
		options.Codec = codec.NewCodec()
	}
	if options.Comparer == nil {
		options.Comparer = comparer.NewComparer()
	}
	if options.Hasher == nil {
		options.Hasher = hasher.NewHasher()
	}
	if options.Metrics == nil {
		options.Metrics = metrics.Nop{}
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop().Sugar()
	}
	return &Compiler{
		codec: options.Codec,
		querier: querier.NewQuerier(
			querier.WithComparer(options.Comparer),
			querier.WithHasher(options.Hasher),
		),
		metrics: options.Metrics,
		log:     options.Logger,
	}
}

// Compile implements domain.Compiler.
func (c *Compiler) Compile(e domain.Expression) (domain.Executable, error) {
	expr, ok := e.(*expression.Expression)
	if !ok || expr == nil {
		return nil, domain.ErrForeignExpression
	}
	if expr.Shape() == nil {
		return nil, domain.ErrEntityType{Type: "<nil>", Reason: "query has no shape"}
	}
	return &Executable{compiler: c, expr: expr}, nil
}

// Executable implements domain.Executable.
type Executable struct {
	compiler *Compiler
	expr     *expression.Expression
}

// Execute implements domain.Executable.
func (x *Executable) Execute(ctx context.Context, qc *domain.QueryContext) (res *domain.Result, err error) {
	defer func() {
		switch {
		case err == nil:
			x.compiler.metrics.QueryExecuted(OutcomeSuccess)
		case ctx.Err() != nil:
			x.compiler.metrics.QueryExecuted(OutcomeCancelled)
		default:
			x.compiler.metrics.QueryExecuted(OutcomeError)
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if qc == nil || qc.Store == nil {
		return nil, domain.ErrMissingConnection
	}

	name := x.expr.CollectionName()
	coll, err := qc.Store.Collection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", name, err)
	}
	docs, err := coll.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning collection %q: %w", name, err)
	}
	x.compiler.metrics.DocumentsScanned(name, len(docs))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	counting := x.expr.IsCount() || x.expr.IsLongCount()
	tracking := qc.Tracking && qc.IdentityMap != nil && !counting

	items := make([]any, len(docs))
	for n, doc := range docs {
		if items[n], err = x.compiler.materialize(doc, x.expr.Shape(), qc.IdentityMap, tracking); err != nil {
			return nil, err
		}
	}

	res, err = x.run(items)
	if err != nil {
		return nil, err
	}
	x.compiler.log.Debugw("query executed",
		"collection", name,
		"scanned", len(docs),
		"tracking", tracking,
		"scalar", res.IsScalar,
		"returned", len(res.Items),
	)
	return res, nil
}

func (x *Executable) run(items []any) (*domain.Result, error) {
	q := x.compiler.querier
	items = q.Filter(items, x.expr.Predicates()...)

	switch {
	case x.expr.IsLongCount():
		return &domain.Result{Scalar: int64(len(items)), IsScalar: true}, nil
	case x.expr.IsCount():
		return &domain.Result{Scalar: len(items), IsScalar: true}, nil
	}

	items, err := q.Sort(items, x.expr.Orderings()...)
	if err != nil {
		return nil, err
	}

	if g := x.expr.Grouping(); g != nil {
		if items, err = q.Group(items, *g); err != nil {
			return nil, err
		}
	}

	if op := x.expr.ElementOperator(); op != domain.ElementNone {
		v, found, err := q.Element(items, op)
		if err != nil {
			return nil, err
		}
		if found && x.expr.Projection() != nil {
			v = x.expr.Projection()(v)
		}
		return &domain.Result{Scalar: v, IsScalar: true, Found: found}, nil
	}

	return &domain.Result{Items: q.Project(items, x.expr.Projection())}, nil
}

// materialize builds the typed instance of a document. Tracked instances
// found in the identity map are reused as they are.
func (c *Compiler) materialize(doc domain.Document, shape *domain.Shape, im domain.IdentityMap, tracking bool) (any, error) {
	var key any
	keyField, hasKey := shape.KeyField()
	if hasKey {
		var err error
		if key, err = c.decodeField(doc, keyField); err != nil {
			return nil, err
		}
	}

	tracked := tracking && hasKey && key != nil
	if tracked {
		found, ok, err := im.Find(shape, key)
		if err != nil {
			return nil, fmt.Errorf("finding tracked entity: %w", err)
		}
		if ok {
			return found, nil
		}
	}

	ptr := shape.New()
	for _, f := range shape.Fields {
		v, err := c.decodeField(doc, f)
		if err != nil {
			return nil, err
		}
		dst := ptr.Elem().FieldByIndex(f.Index)
		if v == nil {
			dst.Set(reflect.Zero(f.Type))
			continue
		}
		dst.Set(reflect.ValueOf(v))
	}

	entity := ptr.Interface()
	if tracked {
		if err := im.Register(shape, key, entity, domain.StateUnchanged); err != nil {
			return nil, fmt.Errorf("tracking entity: %w", err)
		}
	}
	return entity, nil
}

func (c *Compiler) decodeField(doc domain.Document, f domain.Field) (any, error) {
	v, err := c.codec.Decode(doc.Get(f.Name), f.Type)
	if err != nil {
		return nil, fmt.Errorf("decoding field %s: %w", f.GoName, err)
	}
	return v, nil
}
