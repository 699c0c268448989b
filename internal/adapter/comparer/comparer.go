// Package comparer contains the default [domain.Comparer] implementation.
//
// Values are ordered by type class first and by value within a class:
// nil < numbers < strings < booleans < dates < binaries < arrays < documents.
package comparer

import (
	"bytes"
	"cmp"
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

type binary []byte

// Comparable implements domain.Comparer.
func (c *Comparer) Comparable(a, b any) bool {
	a, b = c.normalize(a), c.normalize(b)

	if _, ok := c.asNumber(a); ok {
		_, ok = c.asNumber(b)
		return ok
	}

	equal := false
	switch a.(type) {
	case string:
		_, equal = b.(string)
	case time.Time:
		_, equal = b.(time.Time)
	case binary:
		_, equal = b.(binary)
	default:
		return false
	}
	return equal
}

// Compare implements domain.Comparer.
func (c *Comparer) Compare(a any, b any) (int, error) {
	a, b = c.normalize(a), c.normalize(b)

	// [nil] (null)
	if c, ok := c.checkNil(a, b); ok {
		return c, nil
	}

	// Numbers
	if c, ok := c.checkNumbers(a, b); ok {
		return c, nil
	}

	// Strings
	if c, ok := c.checkStrings(a, b); ok {
		return c, nil
	}

	// Booleans
	if c, ok := c.checkBooleans(a, b); ok {
		return c, nil
	}

	// Dates
	if c, ok := c.checkTime(a, b); ok {
		return c, nil
	}

	// Identifiers and byte sequences
	if c, ok := c.checkBinary(a, b); ok {
		return c, nil
	}

	// Arrays
	if c, ok, err := c.checkArrays(a, b); err != nil || ok {
		return c, err
	}

	// Objects
	if c, ok, err := c.checkDocs(a, b); err != nil || ok {
		return c, err
	}

	return 0, domain.ErrCannotCompare{A: fmt.Sprintf("%T", a), B: fmt.Sprintf("%T", b)}
}

// normalize reduces store-native and named Go types to the few base types
// handled by Compare.
func (c *Comparer) normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, time.Time, []any, domain.Document,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, *big.Float:
		return v
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return c.parseDecimal(t.String(), v)
	case apd.Decimal:
		return c.parseDecimal(t.String(), v)
	case *apd.Decimal:
		if t == nil {
			return nil
		}
		return c.parseDecimal(t.String(), v)
	case uuid.UUID:
		return binary(t[:])
	case primitive.ObjectID:
		return binary(t[:])
	case primitive.Binary:
		return binary(t.Data)
	case []byte:
		return binary(t)
	case primitive.A:
		return []any(t)
	case primitive.Null:
		return nil
	}

	r := reflect.ValueOf(v)
	switch r.Kind() {
	case reflect.Pointer, reflect.Interface:
		if r.IsNil() {
			return nil
		}
		return c.normalize(r.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return r.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return r.Uint()
	case reflect.Float32, reflect.Float64:
		return r.Float()
	case reflect.String:
		return r.String()
	case reflect.Bool:
		return r.Bool()
	case reflect.Slice:
		if r.IsNil() {
			return nil
		}
		if r.Type().Elem().Kind() == reflect.Uint8 {
			return binary(r.Bytes())
		}
		res := make([]any, r.Len())
		for i := range res {
			res[i] = r.Index(i).Interface()
		}
		return res
	case reflect.Array:
		if r.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, r.Len())
			reflect.Copy(reflect.ValueOf(b), r)
			return binary(b)
		}
		res := make([]any, r.Len())
		for i := range res {
			res[i] = r.Index(i).Interface()
		}
		return res
	}
	return v
}

func (c *Comparer) parseDecimal(s string, fallback any) any {
	f, ok := new(big.Float).SetPrec(200).SetString(s)
	if !ok {
		return fallback
	}
	return f
}

func (c *Comparer) checkNil(a, b any) (int, bool) {
	if a == nil {
		if b == nil {
			return 0, true
		}
		return -1, true
	}
	if b == nil {
		return 1, true // no need to test if a == nil
	}
	return 0, false
}

func (c *Comparer) checkNumbers(a, b any) (int, bool) {
	if a, ok := c.asNumber(a); ok {
		// Using big.Float to safely compare float64 and int64 without
		// precision loss
		if b, ok := c.asNumber(b); ok {
			return a.Cmp(b), true
		}
		return -1, true
	}
	if _, ok := c.asNumber(b); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkStrings(a, b any) (int, bool) {
	if a, ok := a.(string); ok {
		if b, ok := b.(string); ok {
			return cmp.Compare(a, b), true
		}
		return -1, true
	}
	if _, ok := b.(string); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkBooleans(a, b any) (int, bool) {
	if a, ok := a.(bool); ok {
		if b, ok := b.(bool); ok {
			return c.compareBool(a, b), true
		}
		return -1, true
	}
	if _, ok := b.(bool); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkTime(a, b any) (int, bool) {
	if a, ok := a.(time.Time); ok {
		if b, ok := b.(time.Time); ok {
			return a.Compare(b), true
		}
		return -1, true
	}
	if _, ok := b.(time.Time); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkBinary(a, b any) (int, bool) {
	if a, ok := a.(binary); ok {
		if b, ok := b.(binary); ok {
			return bytes.Compare(a, b), true
		}
		return -1, true
	}
	if _, ok := b.(binary); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkArrays(a, b any) (int, bool, error) {
	if a, ok := a.([]any); ok {
		if b, ok := b.([]any); ok {
			comp, err := c.compareArray(a, b)
			return comp, true, err
		}
		return -1, true, nil
	}
	if _, ok := b.([]any); ok {
		return 1, true, nil
	}
	return 0, false, nil
}

func (c *Comparer) checkDocs(a, b any) (int, bool, error) {
	if a, ok := a.(domain.Document); ok {
		if b, ok := b.(domain.Document); ok {
			comp, err := c.compareDoc(a, b)
			return comp, true, err
		}
		return -1, true, nil
	}
	if _, ok := b.(domain.Document); ok {
		return 1, true, nil
	}
	return 0, false, nil
}

func (c *Comparer) compareArray(a, b []any) (int, error) {
	for i := range min(len(a), len(b)) {
		comp, err := c.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func (c *Comparer) compareDoc(a domain.Document, b domain.Document) (int, error) {
	aKeys := slices.Sorted(a.Keys())
	bKeys := slices.Sorted(b.Keys())

	for i := range min(len(aKeys), len(bKeys)) {
		comp, err := c.Compare(a.Get(aKeys[i]), b.Get(bKeys[i]))
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	if comp := cmp.Compare(a.Len(), b.Len()); comp != 0 {
		return comp, nil
	}

	return slices.Compare(aKeys, bKeys), nil
}

func (c *Comparer) asNumber(v any) (*big.Float, bool) {
	r := big.NewFloat(0)
	switch n := v.(type) {
	case int:
		r.SetInt64(int64(n))
	case int8:
		r.SetInt64(int64(n))
	case int16:
		r.SetInt64(int64(n))
	case int32:
		r.SetInt64(int64(n))
	case int64:
		r.SetInt64(n)
	case uint:
		r.SetUint64(uint64(n))
	case uint8:
		r.SetUint64(uint64(n))
	case uint16:
		r.SetUint64(uint64(n))
	case uint32:
		r.SetUint64(uint64(n))
	case uint64:
		r.SetUint64(n)
	case float32:
		r.SetFloat64(float64(n))
	case float64:
		if n != n {
			// NaN sorts before every other number
			r.SetInf(true)
			return r, true
		}
		r.SetFloat64(n)
	case *big.Float:
		return n, true
	default:
		return nil, false
	}
	return r, true
}
