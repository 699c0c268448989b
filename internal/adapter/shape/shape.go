// Package shape contains the default [domain.ShapeBuilder] implementation.
package shape

import (
	"reflect"
	"strings"
	"sync"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/codec"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/structure"
)

// Namer can be implemented by entity types to choose their collection name.
// The type name is used otherwise.
type Namer interface {
	CollectionName() string
}

var namerType = reflect.TypeFor[Namer]()

// Builder implements domain.ShapeBuilder.
type Builder struct {
	codec  domain.Codec
	shapes sync.Map
}

// NewBuilder returns a new implementation of domain.ShapeBuilder.
func NewBuilder(opts ...domain.ShapeBuilderOption) domain.ShapeBuilder {
	options := domain.ShapeBuilderOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Codec == nil {
		options.Codec = codec.NewCodec()
	}
	return &Builder{codec: options.Codec}
}

// Shape implements domain.ShapeBuilder.
func (b *Builder) Shape(t reflect.Type) (*domain.Shape, error) {
	if t == nil {
		return nil, domain.ErrEntityType{Type: "<nil>", Reason: "type is nil"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := b.shapes.Load(t); ok {
		return cached.(*domain.Shape), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, domain.ErrEntityType{Type: t.String(), Reason: "entities must be structs"}
	}

	fields := structure.Fields(t)
	if len(fields) == 0 {
		return nil, domain.ErrEntityType{Type: t.String(), Reason: "no exported fields"}
	}

	s := &domain.Shape{
		Name:     collectionName(t),
		Type:     t,
		Fields:   make([]domain.Field, len(fields)),
		KeyIndex: -1,
	}
	for n, f := range fields {
		s.Fields[n] = domain.Field{
			Name:   f.Name,
			GoName: f.GoName,
			Index:  f.Index,
			Type:   f.Type,
			Tag:    b.codec.TypeOf(f.Type),
		}
	}

	idx, err := keyIndex(t, fields)
	if err != nil {
		return nil, err
	}
	if idx >= 0 {
		s.KeyIndex = idx
		s.Fields[idx].Key = true
		s.Fields[idx].Name = domain.KeyField
	}

	for n, f := range s.Fields {
		if n != s.KeyIndex && f.Name == domain.KeyField {
			return nil, domain.ErrEntityType{Type: t.String(), Reason: "only the key field can be stored as " + domain.KeyField}
		}
	}

	actual, _ := b.shapes.LoadOrStore(t, s)
	return actual.(*domain.Shape), nil
}

// keyIndex picks the key field: an explicit key tag first, then a field
// stored as _id, then a field named ID or Id, then <TypeName>ID.
func keyIndex(t reflect.Type, fields []structure.Field) (int, error) {
	idx := -1
	for n, f := range fields {
		if !f.Key {
			continue
		}
		if idx >= 0 {
			return -1, domain.ErrEntityType{Type: t.String(), Reason: "more than one key field"}
		}
		idx = n
	}
	if idx >= 0 {
		return idx, nil
	}

	for n, f := range fields {
		if f.Name == domain.KeyField {
			return n, nil
		}
	}
	for _, c := range []string{"ID", "Id", t.Name() + "ID", t.Name() + "Id"} {
		for n, f := range fields {
			if f.GoName == c {
				return n, nil
			}
		}
	}
	return -1, nil
}

func collectionName(t reflect.Type) string {
	if reflect.PointerTo(t).Implements(namerType) {
		return reflect.New(t).Interface().(Namer).CollectionName()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return strings.ReplaceAll(t.String(), " ", "")
}
