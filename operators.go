package gedbq

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Grouping is a group produced by [GroupBy]: the elements sharing a key, in
// sequence order.
type Grouping[K, V any] struct {
	Key      K
	Elements []V
}

// Number is the constraint of [Sum] and [Average].
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Select maps every element with fn.
func Select[E, R any](s Sequence[E], fn func(E) R) Sequence[R] {
	return chain[R](s, domain.Operator{Kind: domain.OperatorSelect, Selector: selector(fn)})
}

// GroupBy partitions the elements by key. Groups follow the first
// occurrence of their key.
func GroupBy[E, K any](s Sequence[E], key func(E) K) Sequence[Grouping[K, E]] {
	return GroupByElement(s, key, func(e E) E { return e })
}

// GroupByElement partitions the elements by key, mapping each one with
// elem before adding it to its group.
func GroupByElement[E, K, V any](s Sequence[E], key func(E) K, elem func(E) V) Sequence[Grouping[K, V]] {
	return chain[Grouping[K, V]](s, domain.Operator{
		Kind:     domain.OperatorGroupBy,
		Selector: selector(key),
		Element:  selector(elem),
		Group: func(k any, members []any) any {
			g := Grouping[K, V]{Key: as[K](k), Elements: make([]V, len(members))}
			for n, m := range members {
				g.Elements[n] = as[V](m)
			}
			return g
		},
	})
}

// Cast converts every element to R, failing with [ErrInvalidCast] when an
// element is neither an R nor convertible to it.
func Cast[R, E any](s Sequence[E]) Sequence[R] {
	target := reflect.TypeFor[R]()
	return chain[R](s, domain.Operator{
		Kind: domain.OperatorCast,
		Convert: func(v any) (any, error) {
			if r, ok := v.(R); ok {
				return r, nil
			}
			rv := reflect.ValueOf(v)
			if v != nil && rv.Type().ConvertibleTo(target) {
				return rv.Convert(target).Interface(), nil
			}
			return nil, domain.ErrInvalidCast{Value: v, Target: target.String()}
		},
	})
}

// OfType keeps the elements that are an R.
func OfType[R, E any](s Sequence[E]) Sequence[R] {
	return chain[R](s, domain.Operator{
		Kind: domain.OperatorOfType,
		Predicate: func(v any) bool {
			_, ok := v.(R)
			return ok
		},
	})
}

// Min returns the smallest value selected by fn. Nil values are ignored.
func Min[E, R any](ctx context.Context, s Sequence[E], fn func(E) R) (R, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorMin, Selector: selector(fn)})
	return as[R](v), err
}

// Max returns the greatest value selected by fn. Nil values are ignored.
func Max[E, R any](ctx context.Context, s Sequence[E], fn func(E) R) (R, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorMax, Selector: selector(fn)})
	return as[R](v), err
}

// Sum adds the values selected by fn. The sum is computed exactly and
// converted to N at the end; an empty sequence sums to zero.
func Sum[E any, N Number](ctx context.Context, s Sequence[E], fn func(E) N) (N, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorSum, Selector: numbers(fn)})
	if err != nil {
		return 0, err
	}
	return fromDecimal[N](v.(*apd.Decimal))
}

// Average returns the mean of the values selected by fn, failing with
// [ErrNoElements] on an empty sequence.
func Average[E any, N Number](ctx context.Context, s Sequence[E], fn func(E) N) (float64, error) {
	v, err := s.scalar(ctx, domain.Operator{Kind: domain.OperatorAverage, Selector: numbers(fn)})
	if err != nil {
		return 0, err
	}
	return v.(*apd.Decimal).Float64()
}

// numbers selects the values of fn as int64, uint64 or float64, so named
// numeric types are summed like their underlying type.
func numbers[E any, N Number](fn func(E) N) func(any) any {
	return func(v any) any {
		rv := reflect.ValueOf(fn(as[E](v)))
		switch {
		case rv.CanInt():
			return rv.Int()
		case rv.CanUint():
			return rv.Uint()
		default:
			return rv.Float()
		}
	}
}

func fromDecimal[N Number](d *apd.Decimal) (N, error) {
	switch reflect.TypeFor[N]().Kind() {
	case reflect.Float32, reflect.Float64:
		f, err := d.Float64()
		return N(f), err
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(d.Text('f'), 10, 64)
		if err != nil {
			return 0, domain.ErrUnsupportedValue{Value: d.String(), Target: reflect.TypeFor[N]().String(), Reason: err.Error()}
		}
		return N(u), nil
	default:
		i, err := d.Int64()
		if err != nil {
			return 0, domain.ErrUnsupportedValue{Value: d.String(), Target: reflect.TypeFor[N]().String(), Reason: err.Error()}
		}
		return N(i), nil
	}
}

// Join is refused: the store cannot correlate collections. Call ToList on
// both sides and join the slices instead.
func Join[E, I, K, R any](s Sequence[E], inner Sequence[I], outerKey func(E) K, innerKey func(I) K, result func(E, I) R) Sequence[R] {
	return chain[R](s, domain.Operator{Kind: domain.OperatorJoin})
}

// GroupJoin is refused for the same reason as [Join].
func GroupJoin[E, I, K, R any](s Sequence[E], inner Sequence[I], outerKey func(E) K, innerKey func(I) K, result func(E, []I) R) Sequence[R] {
	return chain[R](s, domain.Operator{Kind: domain.OperatorGroupJoin})
}

// SelectMany is refused: the store cannot flatten nested sequences. Call
// ToList first and flatten the slice instead.
func SelectMany[E, R any](s Sequence[E], fn func(E) []R) Sequence[R] {
	return chain[R](s, domain.Operator{Kind: domain.OperatorSelectMany})
}

// Future is the pending result of an async method.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done. Giving up on a
// future does not stop the running work.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}

func submit[T any](r domain.Runner, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	err := r.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				f.err = fmt.Errorf("async operation panicked: %v", p)
				close(f.done)
				panic(p)
			}
			close(f.done)
		}()
		f.value, f.err = fn()
	})
	if err != nil {
		f.err = err
		close(f.done)
	}
	return f
}
