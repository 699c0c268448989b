// Package data contains the default [domain.Document] implementation.
package data

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	goreflect "github.com/goccy/go-reflect"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// D implements domain.Document as an ordered list of elements. Setting an
// existing key keeps its position.
type D struct {
	elems []E
}

// E is a single document element.
type E struct {
	Key   string
	Value any
}

// NewDocument returns a new instance of [domain.Document]. It accepts nil,
// another document (copied), BSON documents, maps with string keys (keys
// sorted) and element lists.
func NewDocument(in any) (domain.Document, error) {
	switch t := in.(type) {
	case nil:
		return &D{}, nil
	case domain.Document:
		return t.Copy(), nil
	case []E:
		d := &D{elems: make([]E, 0, len(t))}
		for _, e := range t {
			d.Set(e.Key, e.Value)
		}
		return d, nil
	case bson.D:
		return FromBSON(t), nil
	case bson.M:
		return FromBSON(t), nil
	case map[string]any:
		return fromMap(t), nil
	}

	r := goreflect.ValueNoEscapeOf(in)
	if r.Kind() != goreflect.Map || r.Type().Key().Kind() != goreflect.String {
		return nil, fmt.Errorf("expected a document, got %T", in)
	}
	m := make(map[string]any, r.Len())
	for _, k := range r.MapKeys() {
		m[k.String()] = r.MapIndex(k).Interface()
	}
	return fromMap(m), nil
}

func fromMap(m map[string]any) *D {
	d := &D{elems: make([]E, 0, len(m))}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		d.elems = append(d.elems, E{Key: k, Value: m[k]})
	}
	return d
}

// FromBSON converts a decoded BSON document to a [D]. Nested documents and
// arrays are converted recursively.
func FromBSON(in any) *D {
	switch t := in.(type) {
	case bson.D:
		d := &D{elems: make([]E, 0, len(t))}
		for _, e := range t {
			d.Set(e.Key, FromBSONValue(e.Value))
		}
		return d
	case bson.M:
		d := &D{elems: make([]E, 0, len(t))}
		for _, k := range slices.Sorted(maps.Keys(t)) {
			d.elems = append(d.elems, E{Key: k, Value: FromBSONValue(t[k])})
		}
		return d
	}
	return &D{}
}

// FromBSONValue converts a decoded BSON value to its document form.
func FromBSONValue(v any) any {
	switch t := v.(type) {
	case bson.D, bson.M:
		return FromBSON(t)
	case bson.A:
		res := make([]any, len(t))
		for n, itm := range t {
			res[n] = FromBSONValue(itm)
		}
		return res
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

// ToBSON converts a document to a [bson.D], recursively.
func ToBSON(doc domain.Document) bson.D {
	res := make(bson.D, 0, doc.Len())
	for k, v := range doc.Iter() {
		res = append(res, bson.E{Key: k, Value: toBSONValue(v)})
	}
	return res
}

func toBSONValue(v any) any {
	switch t := v.(type) {
	case domain.Document:
		return ToBSON(t)
	case []any:
		res := make(bson.A, len(t))
		for n, itm := range t {
			res[n] = toBSONValue(itm)
		}
		return res
	default:
		return v
	}
}

// ID implements domain.Document.
func (d *D) ID() any {
	return d.Get(domain.KeyField)
}

// Get implements domain.Document.
func (d *D) Get(key string) any {
	if n := d.index(key); n >= 0 {
		return d.elems[n].Value
	}
	return nil
}

// Has implements domain.Document.
func (d *D) Has(key string) bool {
	return d.index(key) >= 0
}

// Set implements domain.Document.
func (d *D) Set(key string, value any) {
	if n := d.index(key); n >= 0 {
		d.elems[n].Value = value
		return
	}
	d.elems = append(d.elems, E{Key: key, Value: value})
}

// Unset implements domain.Document.
func (d *D) Unset(key string) {
	if n := d.index(key); n >= 0 {
		d.elems = slices.Delete(d.elems, n, n+1)
	}
}

// Keys implements domain.Document.
func (d *D) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, e := range d.elems {
			if !yield(e.Key) {
				return
			}
		}
	}
}

// Iter implements domain.Document.
func (d *D) Iter() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, e := range d.elems {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Len implements domain.Document.
func (d *D) Len() int {
	return len(d.elems)
}

// Copy implements domain.Document.
func (d *D) Copy() domain.Document {
	return &D{elems: slices.Clone(d.elems)}
}

func (d *D) index(key string) int {
	for n, e := range d.elems {
		if e.Key == key {
			return n
		}
	}
	return -1
}

// String returns the elements formatted as key:value pairs.
func (d *D) String() string {
	return fmt.Sprint(d.elems)
}
