// Package evaluator contains the default [domain.Evaluator] implementation,
// which applies deferred operators to an already materialized result.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cockroachdb/apd/v3"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/querier"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/structure"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/uncomparable"
)

var errReduced = errors.New("sequence was already reduced to a single value")

// decimalContext is used by Sum and Average.
var decimalContext = apd.BaseContext.WithPrecision(34)

// Evaluator implements domain.Evaluator.
type Evaluator struct {
	querier *querier.Querier
	cmpr    domain.Comparer
	hshr    domain.Hasher
}

// NewEvaluator returns a new implementation of domain.Evaluator.
func NewEvaluator(opts ...domain.EvaluatorOption) domain.Evaluator {
	options := domain.EvaluatorOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Comparer == nil {
		options.Comparer = comparer.NewComparer()
	}
	if options.Hasher == nil {
		options.Hasher = hasher.NewHasher()
	}
	return &Evaluator{
		querier: querier.NewQuerier(
			querier.WithComparer(options.Comparer),
			querier.WithHasher(options.Hasher),
		),
		cmpr: options.Comparer,
		hshr: options.Hasher,
	}
}

// Evaluate implements domain.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, res *domain.Result, ops ...domain.Operator) (*domain.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if res == nil {
		res = &domain.Result{}
	}
	if len(ops) == 0 {
		return res, nil
	}
	if res.IsScalar {
		return nil, domain.ErrInvalidOperation{Operator: ops[0].Kind.String(), Err: errReduced}
	}

	items := slices.Clone(res.Items)
	var orderings []expression.Ordering
	for n, op := range ops {
		if isOrdering(op.Kind) {
			if len(orderings) == 0 && !primary(op.Kind) {
				return nil, domain.ErrInvalidOperation{Operator: op.Kind.String(), Err: domain.ErrNotOrdered}
			}
			orderings = e.ordering(orderings, op)
			var err error
			if items, err = e.querier.Sort(items, orderings...); err != nil {
				return nil, err
			}
			continue
		}
		orderings = nil

		out, err := e.apply(items, op)
		if err != nil {
			return nil, err
		}
		if out.IsScalar {
			if n < len(ops)-1 {
				return nil, domain.ErrInvalidOperation{Operator: ops[n+1].Kind.String(), Err: errReduced}
			}
			return &out, nil
		}
		items = out.Items
	}
	return &domain.Result{Items: items}, nil
}

func isOrdering(k domain.OperatorKind) bool {
	switch k {
	case domain.OperatorOrderBy, domain.OperatorOrderByDescending,
		domain.OperatorThenBy, domain.OperatorThenByDescending:
		return true
	}
	return false
}

func primary(k domain.OperatorKind) bool {
	return k == domain.OperatorOrderBy || k == domain.OperatorOrderByDescending
}

// ordering returns the sort keys after op. OrderBy starts over, ThenBy
// refines the current keys.
func (e *Evaluator) ordering(current []expression.Ordering, op domain.Operator) []expression.Ordering {
	o := expression.Ordering{
		Key:       op.Selector,
		Ascending: op.Kind == domain.OperatorOrderBy || op.Kind == domain.OperatorThenBy,
	}
	if primary(op.Kind) {
		return []expression.Ordering{o}
	}
	return append(slices.Clone(current), o)
}

func sequence(items []any) domain.Result { return domain.Result{Items: items} }

func scalar(v any) domain.Result { return domain.Result{Scalar: v, IsScalar: true} }

func (e *Evaluator) apply(items []any, op domain.Operator) (domain.Result, error) {
	q := e.querier
	switch op.Kind {
	case domain.OperatorWhere, domain.OperatorOfType:
		return sequence(q.Filter(items, op.Predicate)), nil
	case domain.OperatorSelect:
		return sequence(q.Project(items, op.Selector)), nil
	case domain.OperatorGroupBy:
		groups, err := q.Group(items, expression.Grouping{Key: op.Selector, Element: op.Element, Result: op.Group})
		return sequence(groups), err
	case domain.OperatorCount:
		return scalar(len(filter(q, items, op.Predicate))), nil
	case domain.OperatorLongCount:
		return scalar(int64(len(filter(q, items, op.Predicate)))), nil
	case domain.OperatorFirst, domain.OperatorFirstOrDefault, domain.OperatorLast,
		domain.OperatorLastOrDefault, domain.OperatorSingle, domain.OperatorSingleOrDefault:
		v, found, err := q.Element(filter(q, items, op.Predicate), element(op.Kind))
		return domain.Result{Scalar: v, IsScalar: true, Found: found}, err
	case domain.OperatorDistinct:
		res, err := e.distinct(items)
		return sequence(res), err
	case domain.OperatorSkip:
		return sequence(q.SkipAndTake(items, op.Count, -1)), nil
	case domain.OperatorTake:
		return sequence(q.SkipAndTake(items, 0, max(op.Count, 0))), nil
	case domain.OperatorSkipWhile:
		n := 0
		for n < len(items) && op.Predicate(items[n]) {
			n++
		}
		return sequence(items[n:]), nil
	case domain.OperatorTakeWhile:
		n := 0
		for n < len(items) && op.Predicate(items[n]) {
			n++
		}
		return sequence(items[:n]), nil
	case domain.OperatorConcat:
		return sequence(append(slices.Clone(items), op.Other...)), nil
	case domain.OperatorUnion:
		res, err := e.distinct(append(slices.Clone(items), op.Other...))
		return sequence(res), err
	case domain.OperatorIntersect:
		res, err := e.intersect(items, op.Other, true)
		return sequence(res), err
	case domain.OperatorExcept:
		res, err := e.intersect(items, op.Other, false)
		return sequence(res), err
	case domain.OperatorCast:
		res, err := cast(items, op.Convert)
		return sequence(res), err
	case domain.OperatorReverse:
		res := slices.Clone(items)
		slices.Reverse(res)
		return sequence(res), nil
	case domain.OperatorContains:
		found, err := e.contains(items, op.Value)
		return scalar(found), err
	case domain.OperatorAny:
		return scalar(len(filter(q, items, op.Predicate)) > 0), nil
	case domain.OperatorAll:
		return scalar(len(q.Filter(items, op.Predicate)) == len(items)), nil
	case domain.OperatorMin:
		v, err := e.extreme(items, op, -1)
		return scalar(v), err
	case domain.OperatorMax:
		v, err := e.extreme(items, op, 1)
		return scalar(v), err
	case domain.OperatorSum:
		sum, _, err := total(q.Project(items, op.Selector))
		return scalar(sum), err
	case domain.OperatorAverage:
		avg, err := average(q.Project(items, op.Selector))
		return scalar(avg), err
	case domain.OperatorDefaultIfEmpty:
		if len(items) == 0 {
			return sequence([]any{op.Value}), nil
		}
		return sequence(items), nil
	case domain.OperatorElementAt, domain.OperatorElementAtOrDefault:
		if op.Count >= 0 && op.Count < len(items) {
			return domain.Result{Scalar: items[op.Count], IsScalar: true, Found: true}, nil
		}
		if op.Kind == domain.OperatorElementAtOrDefault {
			return scalar(nil), nil
		}
		return domain.Result{}, domain.ErrInvalidOperation{Operator: op.Kind.String(), Err: domain.ErrIndexOutOfRange}
	}
	return domain.Result{}, domain.ErrUnsupportedOperation{Operator: op.Kind.String()}
}

func filter(q *querier.Querier, items []any, p func(any) bool) []any {
	if p == nil {
		return items
	}
	return q.Filter(items, p)
}

func element(k domain.OperatorKind) domain.ElementOperator {
	switch k {
	case domain.OperatorFirst:
		return domain.ElementFirst
	case domain.OperatorFirstOrDefault:
		return domain.ElementFirstOrDefault
	case domain.OperatorLast:
		return domain.ElementLast
	case domain.OperatorLastOrDefault:
		return domain.ElementLastOrDefault
	case domain.OperatorSingle:
		return domain.ElementSingle
	default:
		return domain.ElementSingleOrDefault
	}
}

func (e *Evaluator) set(items []any) (*uncomparable.Map[struct{}], error) {
	set := uncomparable.New[struct{}](e.hshr, e.cmpr)
	for _, itm := range items {
		if err := set.Set(itm, struct{}{}); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// distinct keeps the first occurrence of every element.
func (e *Evaluator) distinct(items []any) ([]any, error) {
	set, err := e.set(items)
	if err != nil {
		return nil, err
	}
	return slices.Collect(set.Keys()), nil
}

// intersect keeps the distinct elements of items that are (or are not) in
// other.
func (e *Evaluator) intersect(items, other []any, in bool) ([]any, error) {
	lookup, err := e.set(other)
	if err != nil {
		return nil, err
	}
	distinct, err := e.distinct(items)
	if err != nil {
		return nil, err
	}
	res := make([]any, 0, len(distinct))
	for _, itm := range distinct {
		_, ok, err := lookup.Get(itm)
		if err != nil {
			return nil, err
		}
		if ok == in {
			res = append(res, itm)
		}
	}
	return res, nil
}

func (e *Evaluator) contains(items []any, v any) (bool, error) {
	set, err := e.set(items)
	if err != nil {
		return false, err
	}
	_, ok, err := set.Get(v)
	return ok, err
}

func cast(items []any, convert func(any) (any, error)) ([]any, error) {
	if convert == nil {
		return items, nil
	}
	res := make([]any, len(items))
	for n, itm := range items {
		v, err := convert(itm)
		if err != nil {
			return nil, err
		}
		res[n] = v
	}
	return res, nil
}

// extreme returns the smallest (sign -1) or greatest (sign 1) selected
// value. Nil values are ignored.
func (e *Evaluator) extreme(items []any, op domain.Operator, sign int) (any, error) {
	var best any
	found := false
	for _, itm := range items {
		v := itm
		if op.Selector != nil {
			v = op.Selector(itm)
		}
		if v == nil {
			continue
		}
		if !found {
			best, found = v, true
			continue
		}
		c, err := e.cmpr.Compare(v, best)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Kind, err)
		}
		if c*sign > 0 {
			best = v
		}
	}
	if !found {
		return nil, domain.ErrInvalidOperation{Operator: op.Kind.String(), Err: domain.ErrNoElements}
	}
	return best, nil
}

// total sums numbers exactly. Nil values are ignored.
func total(values []any) (*apd.Decimal, int, error) {
	sum := apd.New(0, 0)
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		d, err := toDecimal(v)
		if err != nil {
			return nil, 0, err
		}
		if _, err := decimalContext.Add(sum, sum, d); err != nil {
			return nil, 0, err
		}
		n++
	}
	return sum, n, nil
}

func average(values []any) (*apd.Decimal, error) {
	sum, n, err := total(values)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrInvalidOperation{Operator: domain.OperatorAverage.String(), Err: domain.ErrNoElements}
	}
	res := new(apd.Decimal)
	if _, err := decimalContext.Quo(res, sum, apd.New(int64(n), 0)); err != nil {
		return nil, err
	}
	res.Reduce(res)
	return res, nil
}

func toDecimal(v any) (*apd.Decimal, error) {
	switch t := v.(type) {
	case apd.Decimal:
		return &t, nil
	case *apd.Decimal:
		return t, nil
	case float32:
		return new(apd.Decimal).SetFloat64(float64(t))
	case float64:
		return new(apd.Decimal).SetFloat64(t)
	case uint64:
		d, _, err := apd.NewFromString(fmt.Sprint(t))
		return d, err
	case uint:
		d, _, err := apd.NewFromString(fmt.Sprint(t))
		return d, err
	}
	if n, ok := structure.AsInteger(v); ok {
		return apd.New(n, 0), nil
	}
	return nil, domain.ErrUnsupportedValue{Value: v, Target: "number"}
}
