// Package structure contains type-related operations, such as listing the
// persisted fields of a struct and converting numbers.
package structure

import (
	"math"
	"math/big"
	stdreflect "reflect"
	"strings"
	"sync"

	"github.com/goccy/go-reflect"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Field is an exported struct field as seen by the store.
type Field struct {
	// Name is the stored field name, from the tag or the struct field.
	Name string
	// GoName is the struct field name.
	GoName string
	// Index is the path used by [stdreflect.Value.FieldByIndex].
	Index []int
	// Type is the field type.
	Type stdreflect.Type
	// Key is set when the tag carries the key option.
	Key bool
}

var fieldCache sync.Map

// Fields lists the persisted fields of a struct type in declaration order.
// Unexported fields and fields tagged "-" are skipped. Untagged embedded
// structs are flattened, and their fields are shadowed by outer fields with
// the same name. Non-struct types have no fields.
func Fields(t stdreflect.Type) []Field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]Field)
	}
	var fields []Field
	if t.Kind() == stdreflect.Struct {
		fields = listFields(reflect.ToType(t), nil)
	}
	fieldCache.Store(t, fields)
	return fields
}

func outerNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for n := range t.NumField() {
		f := t.Field(n)
		if name, _, ok := fieldName(f); ok && !flattened(f) {
			names[name] = true
		}
	}
	return names
}

func listFields(t reflect.Type, prefix []int) []Field {
	direct := outerNames(t)
	seen := make(map[string]bool, t.NumField())
	var res []Field
	for n := range t.NumField() {
		f := t.Field(n)
		index := append(append([]int(nil), prefix...), n)

		if flattened(f) {
			for _, inner := range listFields(f.Type, index) {
				if direct[inner.Name] || seen[inner.Name] {
					continue
				}
				seen[inner.Name] = true
				res = append(res, inner)
			}
			continue
		}

		name, opts, ok := fieldName(f)
		if !ok {
			continue
		}
		seen[name] = true
		res = append(res, Field{
			Name:   name,
			GoName: f.Name,
			Index:  index,
			Type:   reflect.ToReflectType(f.Type),
			Key:    hasOption(opts, "key"),
		})
	}
	return res
}

// flattened reports whether the fields of an embedded struct are promoted.
func flattened(f reflect.StructField) bool {
	if !f.Anonymous || f.PkgPath != "" || f.Type.Kind() != reflect.Struct {
		return false
	}
	name, _ := ParseTag(f.Tag.Get(domain.TagName))
	return name == ""
}

func fieldName(f reflect.StructField) (string, []string, bool) {
	if f.PkgPath != "" {
		return "", nil, false
	}
	tag, found := f.Tag.Lookup(domain.TagName)
	if found && tag == "-" {
		return "", nil, false
	}
	name, opts := ParseTag(tag)
	if name == "" {
		name = f.Name
	}
	return name, opts, true
}

// ParseTag splits a tag value into the field name and its options.
func ParseTag(tag string) (string, []string) {
	name, rest, found := strings.Cut(tag, ",")
	if !found {
		return name, nil
	}
	return name, strings.Split(rest, ",")
}

func hasOption(opts []string, opt string) bool {
	for _, o := range opts {
		if strings.TrimSpace(o) == opt {
			return true
		}
	}
	return false
}

// AsInteger converts any built-in number to int64 and returns a flag that
// informs if the argument is a valid integer in range.
func AsInteger(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), uint64(t) <= math.MaxInt64
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), t <= math.MaxInt64
	case float32:
		return floatAsInteger(float64(t))
	case float64:
		return floatAsInteger(t)
	case *big.Int:
		if t != nil && t.IsInt64() {
			return t.Int64(), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatAsInteger(f float64) (int64, bool) {
	if trunc := math.Trunc(f); trunc == f && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(trunc), true
	}
	return 0, false
}
