// Package changewriter contains the default [domain.ChangeWriter], which
// applies pending entity changes to the collections of a [domain.Store].
package changewriter

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/codec"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/metrics"
)

// ChangeWriter implements domain.ChangeWriter.
type ChangeWriter struct {
	store   domain.Store
	codec   domain.Codec
	metrics domain.Metrics
	log     *zap.SugaredLogger
}

// NewChangeWriter returns a new implementation of domain.ChangeWriter.
func NewChangeWriter(opts ...domain.ChangeWriterOption) domain.ChangeWriter {
	options := domain.ChangeWriterOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Codec == nil {
		options.Codec = codec.NewCodec()
	}
	if options.Metrics == nil {
		options.Metrics = metrics.Nop{}
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop().Sugar()
	}
	return &ChangeWriter{
		store:   options.Store,
		codec:   options.Codec,
		metrics: options.Metrics,
		log:     options.Logger,
	}
}

// Save implements domain.ChangeWriter. Entries are applied in order and the
// first failure stops the save; changes already written are kept.
func (w *ChangeWriter) Save(ctx context.Context, entries ...domain.Entry) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	if w.store == nil {
		return 0, domain.ErrMissingConnection
	}
	for _, e := range entries {
		if e.Shape == nil {
			return 0, domain.ErrEntityType{Type: fmt.Sprintf("%T", e.Entity), Reason: "entry has no shape"}
		}
		if _, ok := e.Shape.KeyField(); !ok {
			return 0, domain.ErrMissingKey{Shape: e.Shape.Name}
		}
	}

	counts := make(map[domain.ChangeKind]int)
	total := 0
	defer func() {
		for kind, n := range counts {
			w.metrics.RowsAffected(kind, n)
		}
	}()

	for _, e := range entries {
		n, err := w.apply(ctx, e)
		if err != nil {
			w.log.Errorw("save failed",
				"collection", e.Shape.Name,
				"kind", e.Kind.String(),
				"affected", total,
				"error", err,
			)
			return total, err
		}
		counts[e.Kind] += n
		total += n
	}

	w.log.Debugw("changes saved",
		"entries", len(entries),
		"inserted", counts[domain.ChangeInsert],
		"updated", counts[domain.ChangeUpdate],
		"deleted", counts[domain.ChangeDelete],
	)
	return total, nil
}

func (w *ChangeWriter) apply(ctx context.Context, e domain.Entry) (int, error) {
	keyField, _ := e.Shape.KeyField()
	coll, err := w.store.Collection(ctx, e.Shape.Name, domain.WithAutoID(autoID(keyField.Tag)))
	if err != nil {
		return 0, err
	}
	entity, err := value(e)
	if err != nil {
		return 0, err
	}

	switch e.Kind {
	case domain.ChangeInsert:
		doc, err := w.encode(entity, e.Shape, !e.TemporaryKey)
		if err != nil {
			return 0, err
		}
		key, err := coll.Insert(ctx, doc)
		if err != nil {
			return 0, err
		}
		if e.TemporaryKey {
			if err := w.assignKey(entity, keyField, key); err != nil {
				return 0, err
			}
		}
		return 1, nil

	case domain.ChangeUpdate:
		doc, err := w.encode(entity, e.Shape, true)
		if err != nil {
			return 0, err
		}
		if e.OriginalKey != nil {
			key, err := w.codec.Encode(e.OriginalKey, keyField.Tag)
			if err != nil {
				return 0, fmt.Errorf("encoding key: %w", err)
			}
			doc.Set(domain.KeyField, key)
		}
		ok, err := coll.Update(ctx, doc)
		return count(ok), err

	case domain.ChangeDelete:
		key := e.OriginalKey
		if key == nil {
			key = entity.FieldByIndex(keyField.Index).Interface()
		}
		encoded, err := w.codec.Encode(key, keyField.Tag)
		if err != nil {
			return 0, fmt.Errorf("encoding key: %w", err)
		}
		ok, err := coll.Delete(ctx, encoded)
		return count(ok), err
	}
	return 0, fmt.Errorf("unknown change kind %d", e.Kind)
}

func count(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

// value returns the addressable struct behind the entry entity.
func value(e domain.Entry) (reflect.Value, error) {
	rv := reflect.ValueOf(e.Entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != e.Shape.Type {
		return reflect.Value{}, domain.ErrEntityType{
			Type:   fmt.Sprintf("%T", e.Entity),
			Reason: "entity must be a non-nil pointer to " + e.Shape.Type.String(),
		}
	}
	return rv.Elem(), nil
}

// encode builds the stored document of entity. The key is stored first,
// under domain.KeyField, unless withKey is unset.
func (w *ChangeWriter) encode(entity reflect.Value, shape *domain.Shape, withKey bool) (domain.Document, error) {
	elems := make([]data.E, 0, len(shape.Fields))
	if kf, ok := shape.KeyField(); ok && withKey {
		v, err := w.codec.Encode(entity.FieldByIndex(kf.Index).Interface(), kf.Tag)
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", kf.GoName, err)
		}
		elems = append(elems, data.E{Key: domain.KeyField, Value: v})
	}
	for _, f := range shape.Fields {
		if f.Key {
			continue
		}
		v, err := w.codec.Encode(entity.FieldByIndex(f.Index).Interface(), f.Tag)
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", f.GoName, err)
		}
		elems = append(elems, data.E{Key: f.Name, Value: v})
	}
	return data.NewDocument(elems)
}

// assignKey writes the key chosen by the store back onto the entity.
func (w *ChangeWriter) assignKey(entity reflect.Value, f domain.Field, key any) error {
	v, err := w.codec.Decode(key, f.Type)
	if err != nil {
		return fmt.Errorf("assigning generated key: %w", err)
	}
	dst := entity.FieldByIndex(f.Index)
	if v == nil {
		dst.Set(reflect.Zero(f.Type))
		return nil
	}
	dst.Set(reflect.ValueOf(v))
	return nil
}

// autoID picks the key generation strategy matching the key field.
func autoID(tag domain.Type) domain.AutoID {
	switch tag {
	case domain.TypeInt32, domain.TypeInt64, domain.TypeUInt64:
		return domain.AutoIDInt64
	case domain.TypeGUID:
		return domain.AutoIDGUID
	case domain.TypeString:
		return domain.AutoIDString
	default:
		return domain.AutoIDObjectID
	}
}
