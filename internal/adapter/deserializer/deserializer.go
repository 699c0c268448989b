// Package deserializer contains the default [domain.Deserializer]
// implementation.
package deserializer

import (
	"context"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/storage"
)

// NewDeserializer returns a new instance of domain.Deserializer.
func NewDeserializer() domain.Deserializer {
	return &Deserializer{}
}

// Deserializer implements domain.Deserializer.
type Deserializer struct{}

// Deserialize implements domain.Deserializer.
func (d *Deserializer) Deserialize(ctx context.Context, frame []byte) (domain.Record, error) {
	select {
	case <-ctx.Done():
		return domain.Record{}, ctx.Err()
	default:
	}

	flags, rawLen, payload, err := storage.ParseFrame(frame)
	if err != nil {
		return domain.Record{}, err
	}

	raw := payload
	if flags&storage.FlagCompressed != 0 {
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return domain.Record{}, fmt.Errorf("decompressing record: %w", err)
		}
		if n != rawLen {
			return domain.Record{}, fmt.Errorf("decompressed %d bytes, expected %d", n, rawLen)
		}
	}

	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return domain.Record{}, err
	}
	return d.record(doc)
}

func (d *Deserializer) record(doc bson.D) (domain.Record, error) {
	var rec domain.Record
	var found bool
	for _, e := range doc {
		switch e.Key {
		case serializer.FieldCollection:
			name, ok := e.Value.(string)
			if !ok {
				return domain.Record{}, fmt.Errorf("invalid collection name %v", e.Value)
			}
			rec.Collection = name
		case serializer.FieldDoc:
			rec.Doc = data.FromBSON(e.Value)
			found = true
		case serializer.FieldDeleted:
			rec.Deleted = true
			rec.Key = data.FromBSONValue(e.Value)
			found = true
		case serializer.FieldDropped:
			rec.Dropped = true
			found = true
		}
	}
	if rec.Collection == "" {
		return domain.Record{}, errors.New("record has no collection")
	}
	if !found {
		return domain.Record{}, errors.New("record has no content")
	}
	return rec, nil
}
