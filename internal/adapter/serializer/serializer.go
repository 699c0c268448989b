// Package serializer contains the default [domain.Serializer] implementation.
package serializer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pierrec/lz4/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/storage"
)

// Reserved record fields.
const (
	FieldCollection = "$$collection"
	FieldDoc        = "$$doc"
	FieldDeleted    = "$$deleted"
	FieldDropped    = "$$dropped"
)

// DefaultMinCompressSize is the smallest payload compressed by default.
const DefaultMinCompressSize = 256

// Serializer implements domain.Serializer.
type Serializer struct {
	compression     bool
	minCompressSize int
}

// NewSerializer returns a new implementation of domain.Serializer.
func NewSerializer(opts ...domain.SerializerOption) domain.Serializer {
	options := domain.SerializerOptions{
		Compression:     true,
		MinCompressSize: DefaultMinCompressSize,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Serializer{
		compression:     options.Compression,
		minCompressSize: options.MinCompressSize,
	}
}

// Serialize implements domain.Serializer.
func (s *Serializer) Serialize(ctx context.Context, rec domain.Record) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if rec.Collection == "" {
		return nil, errors.New("record has no collection")
	}

	d := bson.D{{Key: FieldCollection, Value: rec.Collection}}
	switch {
	case rec.Dropped:
		d = append(d, bson.E{Key: FieldDropped, Value: true})
	case rec.Deleted:
		d = append(d, bson.E{Key: FieldDeleted, Value: rec.Key})
	case rec.Doc != nil:
		if err := s.checkDoc(rec.Doc); err != nil {
			return nil, err
		}
		d = append(d, bson.E{Key: FieldDoc, Value: data.ToBSON(rec.Doc)})
	default:
		return nil, errors.New("record has no document")
	}

	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	return s.frame(raw), nil
}

func (s *Serializer) frame(raw []byte) []byte {
	if !s.compression || len(raw) < s.minCompressSize {
		return storage.NewFrame(0, len(raw), raw)
	}
	buf := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, buf, nil)
	// incompressible payloads are kept raw
	if err != nil || n == 0 || n >= len(raw) {
		return storage.NewFrame(0, len(raw), raw)
	}
	return storage.NewFrame(storage.FlagCompressed, len(raw), buf[:n])
}

func (s *Serializer) checkDoc(doc domain.Document) error {
	for k, v := range doc.Iter() {
		if err := s.checkKey(k); err != nil {
			return err
		}
		if err := s.checkValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) checkValue(v any) error {
	switch t := v.(type) {
	case domain.Document:
		return s.checkDoc(t)
	case []any:
		for _, itm := range t {
			if err := s.checkValue(itm); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Serializer) checkKey(k string) error {
	if strings.ContainsRune(k, '.') {
		return fmt.Errorf("field name %q cannot contain a '.'", k)
	}
	if strings.HasPrefix(k, "$") {
		return fmt.Errorf("field name %q cannot start with the $ character", k)
	}
	return nil
}
