// Package querier contains the in-memory sequence operations shared by the
// compiled executables and the client evaluator: filtering, stable
// multi-key sorting, grouping and windowing over materialized elements.
package querier

import (
	"fmt"
	"slices"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/uncomparable"
)

// Option configures a [Querier].
type Option func(*Querier)

// WithComparer sets the comparer used to order sort keys.
func WithComparer(c domain.Comparer) Option {
	return func(q *Querier) { q.cmpr = c }
}

// WithHasher sets the hasher used to bucket group keys.
func WithHasher(h domain.Hasher) Option {
	return func(q *Querier) { q.hshr = h }
}

// Querier applies sequence operations to materialized elements.
type Querier struct {
	cmpr domain.Comparer
	hshr domain.Hasher
}

// NewQuerier returns a new [Querier].
func NewQuerier(opts ...Option) *Querier {
	q := Querier{}
	for _, opt := range opts {
		opt(&q)
	}
	if q.cmpr == nil {
		q.cmpr = comparer.NewComparer()
	}
	if q.hshr == nil {
		q.hshr = hasher.NewHasher()
	}
	return &q
}

// Comparer returns the comparer used by q.
func (q *Querier) Comparer() domain.Comparer { return q.cmpr }

// Filter keeps the elements matching every predicate, in order.
func (q *Querier) Filter(items []any, preds ...func(any) bool) []any {
	if len(preds) == 0 {
		return items
	}
	res := make([]any, 0, len(items))
outer:
	for _, itm := range items {
		for _, p := range preds {
			if !p(itm) {
				continue outer
			}
		}
		res = append(res, itm)
	}
	return res
}

// Sort returns a stably sorted copy of items. Each key is computed once per
// element.
func (q *Querier) Sort(items []any, orderings ...expression.Ordering) ([]any, error) {
	if len(orderings) == 0 {
		return items, nil
	}

	type keyed struct {
		item any
		keys []any
	}
	rows := make([]keyed, len(items))
	for n, itm := range items {
		keys := make([]any, len(orderings))
		for k, o := range orderings {
			keys[k] = o.Key(itm)
		}
		rows[n] = keyed{item: itm, keys: keys}
	}

	var err error
	slices.SortStableFunc(rows, func(a, b keyed) int {
		if err != nil {
			return 0
		}
		for k, o := range orderings {
			comp, cErr := q.cmpr.Compare(a.keys[k], b.keys[k])
			if cErr != nil {
				err = cErr
				return 0
			}
			if comp != 0 {
				if !o.Ascending {
					return -comp
				}
				return comp
			}
		}
		return 0
	})
	if err != nil {
		return nil, fmt.Errorf("sorting: %w", err)
	}

	res := make([]any, len(rows))
	for n, r := range rows {
		res[n] = r.item
	}
	return res, nil
}

// Group partitions items by key. Groups follow the first occurrence of
// their key and members keep their source order.
func (q *Querier) Group(items []any, g expression.Grouping) ([]any, error) {
	type bucket struct {
		key     any
		members []any
	}
	groups := uncomparable.New[*bucket](q.hshr, q.cmpr)
	for _, itm := range items {
		key := g.Key(itm)
		b, ok, err := groups.Get(key)
		if err != nil {
			return nil, fmt.Errorf("grouping: %w", err)
		}
		if !ok {
			b = &bucket{key: key}
			if err := groups.Set(key, b); err != nil {
				return nil, fmt.Errorf("grouping: %w", err)
			}
		}
		member := itm
		if g.Element != nil {
			member = g.Element(itm)
		}
		b.members = append(b.members, member)
	}

	res := make([]any, 0, groups.Len())
	for b := range groups.Values() {
		if g.Result != nil {
			res = append(res, g.Result(b.key, b.members))
			continue
		}
		res = append(res, domain.Group{Key: b.key, Members: b.members})
	}
	return res, nil
}

// Project maps every element.
func (q *Querier) Project(items []any, fn func(any) any) []any {
	if fn == nil {
		return items
	}
	res := make([]any, len(items))
	for n, itm := range items {
		res[n] = fn(itm)
	}
	return res
}

// SkipAndTake returns the window starting at skip holding at most take
// elements. A negative take keeps every remaining element.
func (q *Querier) SkipAndTake(items []any, skip, take int) []any {
	length := len(items)
	skip = min(max(skip, 0), length)
	end := length
	if take >= 0 {
		end = min(skip+take, length)
	}
	return items[skip:end]
}

// Element reduces items with an element operator. A nil result with a nil
// error is the absence value of the OrDefault variants.
func (q *Querier) Element(items []any, op domain.ElementOperator) (any, bool, error) {
	switch op {
	case domain.ElementFirst, domain.ElementFirstOrDefault:
		if len(items) > 0 {
			return items[0], true, nil
		}
	case domain.ElementLast, domain.ElementLastOrDefault:
		if len(items) > 0 {
			return items[len(items)-1], true, nil
		}
	case domain.ElementSingle, domain.ElementSingleOrDefault:
		if len(items) > 1 {
			return nil, false, domain.ErrInvalidOperation{Operator: op.String(), Err: domain.ErrMoreThanOneElement}
		}
		if len(items) == 1 {
			return items[0], true, nil
		}
	default:
		return nil, false, fmt.Errorf("unknown element operator %d", op)
	}
	if op.OrDefault() {
		return nil, false, nil
	}
	return nil, false, domain.ErrInvalidOperation{Operator: op.String(), Err: domain.ErrNoElements}
}
