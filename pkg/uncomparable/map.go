// Package uncomparable contains an insertion-ordered map with keys of type
// [any]. Comparable keys use Go equality; other keys are bucketed by a
// [domain.Hasher] and matched with a [domain.Comparer], so slices, maps and
// similar values never panic when used as keys.
package uncomparable

import (
	"iter"
	"reflect"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Map represents an ordered map[any]T. Iteration follows the order in which
// keys were first set.
type Map[T any] struct {
	index    map[any]int
	buckets  map[uint64][]int
	entries  []kv[T]
	hasher   domain.Hasher
	comparer domain.Comparer
	length   int
}

// New returns a new instance of [Map] with the given [domain.Hasher] and
// [domain.Comparer].
func New[T any](hasher domain.Hasher, comparer domain.Comparer) *Map[T] {
	return &Map[T]{
		index:    make(map[any]int),
		buckets:  make(map[uint64][]int),
		hasher:   hasher,
		comparer: comparer,
	}
}

// Get returns the value for the given key with a bool to indicate whether it
// exists in the map or not. If hashing fails, returns an error.
func (m *Map[T]) Get(key any) (T, bool, error) {
	pos, _, err := m.find(key)
	if err != nil || pos < 0 {
		return *new(T), false, err
	}
	return m.entries[pos].value, true, nil
}

// Set adds or replaces the given key in the map. A replaced key keeps its
// original position.
func (m *Map[T]) Set(key any, value T) error {
	pos, h, err := m.find(key)
	if err != nil {
		return err
	}
	if pos >= 0 {
		m.entries[pos].value = value
		return nil
	}

	pos = len(m.entries)
	m.entries = append(m.entries, kv[T]{key: key, value: value})
	m.length++

	if isComparable(key) {
		m.index[key] = pos
	} else {
		m.buckets[h] = append(m.buckets[h], pos)
	}
	return nil
}

// Delete removes a given key from the map, if it exists.
func (m *Map[T]) Delete(key any) error {
	pos, h, err := m.find(key)
	if err != nil || pos < 0 {
		return err
	}
	m.entries[pos].deleted = true
	m.entries[pos].value = *new(T)
	m.length--

	if isComparable(key) {
		delete(m.index, key)
		return nil
	}
	bucket := m.buckets[h]
	for n, p := range bucket {
		if p == pos {
			m.buckets[h] = append(bucket[:n:n], bucket[n+1:]...)
			break
		}
	}
	return nil
}

// Len returns the amount of stored values.
func (m *Map[T]) Len() int {
	return m.length
}

// Keys returns the stored keys in insertion order.
func (m *Map[T]) Keys() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, e := range m.entries {
			if !e.deleted && !yield(e.key) {
				return
			}
		}
	}
}

// Values returns the stored values in insertion order.
func (m *Map[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, e := range m.entries {
			if !e.deleted && !yield(e.value) {
				return
			}
		}
	}
}

// Iter returns the key+value pairs in insertion order.
func (m *Map[T]) Iter() iter.Seq2[any, T] {
	return func(yield func(any, T) bool) {
		for _, e := range m.entries {
			if !e.deleted && !yield(e.key, e.value) {
				return
			}
		}
	}
}

// find returns the position of key, or -1, along with the hash of
// uncomparable keys. Keys are hashed once per call.
func (m *Map[T]) find(key any) (int, uint64, error) {
	if isComparable(key) {
		if pos, ok := m.index[key]; ok {
			return pos, 0, nil
		}
		return -1, 0, nil
	}
	h, err := m.hasher.Hash(key)
	if err != nil {
		return -1, 0, err
	}
	for _, pos := range m.buckets[h] {
		if m.equal(key, m.entries[pos].key) {
			return pos, h, nil
		}
	}
	return -1, h, nil
}

func (m *Map[T]) equal(a, b any) bool {
	if c, err := m.comparer.Compare(a, b); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func isComparable(key any) bool {
	if key == nil {
		return true
	}
	return comparableType(reflect.TypeOf(key))
}

func comparableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Interface:
		return false
	case reflect.Array:
		return comparableType(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !comparableType(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return t.Comparable()
	}
}

type kv[T any] struct {
	key     any
	value   T
	deleted bool
}
