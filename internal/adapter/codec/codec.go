// Package codec contains the default [domain.Codec] implementation, a
// registry of semantic types converting Go values to BSON-native document
// values and back.
package codec

import (
	"encoding"
	"fmt"
	"reflect"
	"sync"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/decoder"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// Codec implements domain.Codec.
type Codec struct {
	types   []domain.CodecType
	byTag   map[domain.Type]int
	decoder domain.Decoder
	// cache maps a reflect.Type to its position in types, or -1.
	cache sync.Map
}

// NewCodec returns a new implementation of domain.Codec.
func NewCodec(opts ...domain.CodecOption) domain.Codec {
	options := domain.CodecOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Decoder == nil {
		options.Decoder = decoder.NewDecoder()
	}

	c := &Codec{
		byTag:   make(map[domain.Type]int),
		decoder: options.Decoder,
	}
	c.types = append(c.types, options.Types...)
	c.types = append(c.types, c.defaultTypes()...)
	for n, t := range c.types {
		if _, ok := c.byTag[t.Tag]; !ok {
			c.byTag[t.Tag] = n
		}
	}
	return c
}

func (c *Codec) lookup(t reflect.Type) int {
	if idx, ok := c.cache.Load(t); ok {
		return idx.(int)
	}
	idx := -1
	for n, entry := range c.types {
		if entry.Match(t) {
			idx = n
			break
		}
	}
	c.cache.Store(t, idx)
	return idx
}

// TypeOf implements domain.Codec.
func (c *Codec) TypeOf(t reflect.Type) domain.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if idx := c.lookup(t); idx >= 0 {
		return c.types[idx].Tag
	}
	return domain.TypeUnknown
}

// Encode implements domain.Codec.
func (c *Codec) Encode(v any, tag domain.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	return c.encodeValue(rv, tag)
}

func (c *Codec) encodeValue(rv reflect.Value, tag domain.Type) (any, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, nil
	}

	if idx, ok := c.byTag[tag]; ok && tag != domain.TypeUnknown && c.types[idx].Match(rv.Type()) {
		return c.types[idx].Encode(rv)
	}
	if idx := c.lookup(rv.Type()); idx >= 0 {
		return c.types[idx].Encode(rv)
	}
	return c.encodeUnknown(rv), nil
}

// encodeUnknown stores values of unregistered types as text.
func (c *Codec) encodeUnknown(rv reflect.Value) any {
	v := rv.Interface()
	if m, ok := v.(encoding.TextMarshaler); ok {
		if b, err := m.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// Decode implements domain.Codec.
func (c *Codec) Decode(v any, t reflect.Type) (any, error) {
	rv, err := c.decodeValue(v, t)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func (c *Codec) decodeValue(v any, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		if v == nil {
			return reflect.Zero(t), nil
		}
		elem, err := c.decodeValue(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	if idx := c.lookup(t); idx >= 0 {
		res, err := c.types[idx].Decode(v, t)
		if err != nil {
			return reflect.Value{}, err
		}
		return res, nil
	}
	return c.decodeUnknown(v, t)
}

func (c *Codec) decodeUnknown(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		res := reflect.New(t).Elem()
		res.Set(rv)
		return res, nil
	}

	if s, ok := v.(string); ok && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: err.Error()}
		}
		return ptr.Elem(), nil
	}

	ptr := reflect.New(t)
	if err := c.decoder.Decode(v, ptr.Interface()); err != nil {
		return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: err.Error()}
	}
	return ptr.Elem(), nil
}
