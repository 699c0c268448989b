package gedbq

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// source is the root of a query: the entity it scans and the context it
// runs with.
type source struct {
	db       *DB
	shape    *domain.Shape
	factory  domain.QueryContextFactory
	tracking bool
	err      error
}

// Sequence is a lazily evaluated, immutable operator chain. Every method
// returning a Sequence leaves the receiver untouched, so sequences can be
// reused as prefixes of several queries. Nothing runs until a terminal
// method such as [Sequence.ToList] or [Sequence.Count] is called.
type Sequence[E any] struct {
	src *source
	ops []domain.Operator
}

// Query starts a sequence over every stored entity of type T. Results are
// tracked by s unless [Sequence.AsNoTracking] is called.
func Query[T any](s *Session) Sequence[*T] {
	return query[*T](s.db, reflect.TypeFor[T](), s, true)
}

// QueryDB starts an untracked sequence over every stored entity of type T.
func QueryDB[T any](db *DB) Sequence[*T] {
	return query[*T](db, reflect.TypeFor[T](), db, false)
}

func query[E any](db *DB, t reflect.Type, factory domain.QueryContextFactory, tracking bool) Sequence[E] {
	sh, err := db.shape(t)
	return Sequence[E]{src: &source{db: db, shape: sh, factory: factory, tracking: tracking, err: err}}
}

// as converts an untyped element, mapping nil to the zero value.
func as[E any](v any) E {
	if v == nil {
		var zero E
		return zero
	}
	return v.(E)
}

func items[E any](vs []E) []any {
	res := make([]any, len(vs))
	for n, v := range vs {
		res[n] = v
	}
	return res
}

func predicate[E any](preds []func(E) bool) func(any) bool {
	if len(preds) == 0 {
		return nil
	}
	return func(v any) bool {
		e := as[E](v)
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

func selector[E, R any](fn func(E) R) func(any) any {
	return func(v any) any { return fn(as[E](v)) }
}

// chain returns a sequence of R continuing the operators of s.
func chain[R, E any](s Sequence[E], ops ...domain.Operator) Sequence[R] {
	next := make([]domain.Operator, 0, len(s.ops)+len(ops))
	next = append(next, s.ops...)
	next = append(next, ops...)
	return Sequence[R]{src: s.src, ops: next}
}

func (s Sequence[E]) with(op domain.Operator) Sequence[E] {
	return chain[E](s, op)
}

// AsTracking makes the query resolve entities against the session identity
// map, registering the ones it has not seen yet.
func (s Sequence[E]) AsTracking() Sequence[E] {
	src := *s.src
	src.tracking = true
	return Sequence[E]{src: &src, ops: s.ops}
}

// AsNoTracking makes the query build new instances that the session does
// not track.
func (s Sequence[E]) AsNoTracking() Sequence[E] {
	src := *s.src
	src.tracking = false
	return Sequence[E]{src: &src, ops: s.ops}
}

// Where keeps the elements matching pred.
func (s Sequence[E]) Where(pred func(E) bool) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorWhere, Predicate: predicate([]func(E) bool{pred})})
}

// OrderBy sorts the elements by key, replacing any previous ordering. Keys
// of Go built-in types, times, decimals and their pointers are supported.
func (s Sequence[E]) OrderBy(key func(E) any) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorOrderBy, Selector: selector(key)})
}

// OrderByDescending sorts the elements by key in descending order.
func (s Sequence[E]) OrderByDescending(key func(E) any) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorOrderByDescending, Selector: selector(key)})
}

// ThenBy breaks ties of the previous ordering.
func (s Sequence[E]) ThenBy(key func(E) any) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorThenBy, Selector: selector(key)})
}

// ThenByDescending breaks ties of the previous ordering in descending
// order.
func (s Sequence[E]) ThenByDescending(key func(E) any) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorThenByDescending, Selector: selector(key)})
}

// Skip bypasses the first n elements.
func (s Sequence[E]) Skip(n int) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorSkip, Count: n})
}

// Take keeps at most n elements.
func (s Sequence[E]) Take(n int) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorTake, Count: n})
}

// SkipWhile bypasses elements while pred holds.
func (s Sequence[E]) SkipWhile(pred func(E) bool) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorSkipWhile, Predicate: predicate([]func(E) bool{pred})})
}

// TakeWhile keeps elements while pred holds.
func (s Sequence[E]) TakeWhile(pred func(E) bool) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorTakeWhile, Predicate: predicate([]func(E) bool{pred})})
}

// Distinct removes repeated elements, keeping first occurrences. Entities
// are pointers, so only repeated instances are removed.
func (s Sequence[E]) Distinct() Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorDistinct})
}

// Reverse inverts the element order.
func (s Sequence[E]) Reverse() Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorReverse})
}

// Concat appends other.
func (s Sequence[E]) Concat(other []E) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorConcat, Other: items(other)})
}

// Union appends other and removes repeated elements.
func (s Sequence[E]) Union(other []E) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorUnion, Other: items(other)})
}

// Intersect keeps the distinct elements also found in other.
func (s Sequence[E]) Intersect(other []E) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorIntersect, Other: items(other)})
}

// Except keeps the distinct elements not found in other.
func (s Sequence[E]) Except(other []E) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorExcept, Other: items(other)})
}

// DefaultIfEmpty yields v alone when the sequence is empty.
func (s Sequence[E]) DefaultIfEmpty(v E) Sequence[E] {
	return s.with(domain.Operator{Kind: domain.OperatorDefaultIfEmpty, Value: v})
}

// run translates, executes and evaluates the chain followed by ops.
func (s Sequence[E]) run(ctx context.Context, ops ...domain.Operator) (*domain.Result, error) {
	if s.src.err != nil {
		return nil, s.src.err
	}
	db := s.src.db
	all := slices.Concat(s.ops, ops)
	tr, err := db.translator.Translate(s.src.shape, all...)
	if err != nil {
		return nil, err
	}
	exe, err := db.compiler.Compile(tr.Expression)
	if err != nil {
		return nil, err
	}
	res, err := exe.Execute(ctx, s.src.factory.NewQueryContext(s.src.tracking))
	if err != nil {
		return nil, err
	}
	return db.evaluator.Evaluate(ctx, res, tr.Deferred...)
}

func (s Sequence[E]) scalar(ctx context.Context, op domain.Operator) (any, error) {
	res, err := s.run(ctx, op)
	if err != nil {
		return nil, err
	}
	if !res.IsScalar {
		return nil, fmt.Errorf("%s did not reduce the sequence", op.Kind)
	}
	return res.Scalar, nil
}

// ToList runs the query and returns its elements.
func (s Sequence[E]) ToList(ctx context.Context) ([]E, error) {
	res, err := s.run(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]E, len(res.Items))
	for n, itm := range res.Items {
		list[n] = as[E](itm)
	}
	return list, nil
}

// Count returns the number of elements matching every predicate.
func (s Sequence[E]) Count(ctx context.Context, preds ...func(E) bool) (int, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorCount, Predicate: predicate(preds)})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// LongCount is [Sequence.Count] returning an int64.
func (s Sequence[E]) LongCount(ctx context.Context, preds ...func(E) bool) (int64, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorLongCount, Predicate: predicate(preds)})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// found runs an operator reducing the sequence to at most one element.
func (s Sequence[E]) found(ctx context.Context, op domain.Operator) (E, bool, error) {
	var zero E
	res, err := s.run(ctx, op)
	if err != nil {
		return zero, false, err
	}
	if !res.IsScalar {
		return zero, false, fmt.Errorf("%s did not reduce the sequence", op.Kind)
	}
	if !res.Found {
		return zero, false, nil
	}
	return as[E](res.Scalar), true, nil
}

func (s Sequence[E]) element(ctx context.Context, kind domain.OperatorKind, preds []func(E) bool) (E, bool, error) {
	return s.found(ctx, domain.Operator{Kind: kind, Predicate: predicate(preds)})
}

func (s Sequence[E]) required(ctx context.Context, kind domain.OperatorKind, preds []func(E) bool) (E, error) {
	e, _, err := s.element(ctx, kind, preds)
	return e, err
}

// First returns the first element matching every predicate, failing with
// [ErrNoElements] when there is none.
func (s Sequence[E]) First(ctx context.Context, preds ...func(E) bool) (E, error) {
	return s.required(ctx, domain.OperatorFirst, preds)
}

// FirstOrDefault is [Sequence.First] reporting absence with false instead
// of an error.
func (s Sequence[E]) FirstOrDefault(ctx context.Context, preds ...func(E) bool) (E, bool, error) {
	return s.element(ctx, domain.OperatorFirstOrDefault, preds)
}

// Last returns the last element matching every predicate, failing with
// [ErrNoElements] when there is none.
func (s Sequence[E]) Last(ctx context.Context, preds ...func(E) bool) (E, error) {
	return s.required(ctx, domain.OperatorLast, preds)
}

// LastOrDefault is [Sequence.Last] reporting absence with false.
func (s Sequence[E]) LastOrDefault(ctx context.Context, preds ...func(E) bool) (E, bool, error) {
	return s.element(ctx, domain.OperatorLastOrDefault, preds)
}

// Single returns the only element matching every predicate. It fails with
// [ErrNoElements] or [ErrMoreThanOneElement].
func (s Sequence[E]) Single(ctx context.Context, preds ...func(E) bool) (E, error) {
	return s.required(ctx, domain.OperatorSingle, preds)
}

// SingleOrDefault is [Sequence.Single] reporting absence with false. More
// than one match is still an error.
func (s Sequence[E]) SingleOrDefault(ctx context.Context, preds ...func(E) bool) (E, bool, error) {
	return s.element(ctx, domain.OperatorSingleOrDefault, preds)
}

// ElementAt returns the element at index n, failing with
// [ErrIndexOutOfRange].
func (s Sequence[E]) ElementAt(ctx context.Context, n int) (E, error) {
	v, _, err := s.found(ctx, domain.Operator{Kind: domain.OperatorElementAt, Count: n})
	return v, err
}

// ElementAtOrDefault is [Sequence.ElementAt] reporting absence with false.
func (s Sequence[E]) ElementAtOrDefault(ctx context.Context, n int) (E, bool, error) {
	return s.found(ctx, domain.Operator{Kind: domain.OperatorElementAtOrDefault, Count: n})
}

// Any reports whether an element matches every predicate.
func (s Sequence[E]) Any(ctx context.Context, preds ...func(E) bool) (bool, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorAny, Predicate: predicate(preds)})
	return v == true, err
}

// All reports whether every element matches pred.
func (s Sequence[E]) All(ctx context.Context, pred func(E) bool) (bool, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorAll, Predicate: predicate([]func(E) bool{pred})})
	return v == true, err
}

// Contains reports whether v is an element of the sequence.
func (s Sequence[E]) Contains(ctx context.Context, v E) (bool, error) {
	res, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorContains, Value: v})
	return res == true, err
}

// Explain returns the plan of the query: the steps run while scanning,
// followed by the operators run over the materialized results.
func (s Sequence[E]) Explain() (string, error) {
	if s.src.err != nil {
		return "", s.src.err
	}
	tr, err := s.src.db.translator.Translate(s.src.shape, s.ops...)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(tr.Expression.String())
	if len(tr.Deferred) > 0 {
		names := make([]string, len(tr.Deferred))
		for n, op := range tr.Deferred {
			names[n] = op.Kind.String()
		}
		fmt.Fprintf(&sb, "client %s\n", strings.Join(names, ", "))
	}
	return sb.String(), nil
}

// ToListAsync runs [Sequence.ToList] on the worker pool.
func (s Sequence[E]) ToListAsync(ctx context.Context) *Future[[]E] {
	return submit(s.src.db.runner, func() ([]E, error) { return s.ToList(ctx) })
}

// CountAsync runs [Sequence.Count] on the worker pool.
func (s Sequence[E]) CountAsync(ctx context.Context, preds ...func(E) bool) *Future[int] {
	return submit(s.src.db.runner, func() (int, error) { return s.Count(ctx, preds...) })
}

// FirstAsync runs [Sequence.First] on the worker pool.
func (s Sequence[E]) FirstAsync(ctx context.Context, preds ...func(E) bool) *Future[E] {
	return submit(s.src.db.runner, func() (E, error) { return s.First(ctx, preds...) })
}
