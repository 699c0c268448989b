// Package hasher contains the default [domain.Hasher] implementation.
package hasher

import (
	"bytes"
	"hash/fnv"
	"math"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Hasher implements domain.Hasher. Values that the default comparer treats
// as equal hash to the same value: numbers are reduced to a canonical form
// and documents are hashed as maps with sorted keys.
type Hasher struct{}

// NewHasher returns a new implementation of domain.Hasher.
func NewHasher() domain.Hasher {
	return &Hasher{}
}

// Hash implements domain.Hasher.
func (h *Hasher) Hash(a any) (uint64, error) {
	buf := new(bytes.Buffer)
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(h.canonical(a)); err != nil {
		return 0, err
	}
	hasher := fnv.New64a()
	if _, err := hasher.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return hasher.Sum64(), nil
}

func (h *Hasher) canonical(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case domain.Document:
		m := make(map[string]any, t.Len())
		for k, val := range t.Iter() {
			m[k] = h.canonical(val)
		}
		return m
	case []any:
		res := make([]any, len(t))
		for n, itm := range t {
			res[n] = h.canonical(itm)
		}
		return res
	}

	r := reflect.ValueOf(v)
	switch r.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return r.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := r.Uint()
		if u <= math.MaxInt64 {
			return int64(u)
		}
		return u
	case reflect.Float32, reflect.Float64:
		f := r.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
		return f
	case reflect.String:
		return r.String()
	case reflect.Bool:
		return r.Bool()
	case reflect.Pointer:
		if r.IsNil() {
			return nil
		}
		return h.canonical(r.Elem().Interface())
	}
	return v
}
