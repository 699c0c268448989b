// Package idgenerator contains the default [domain.IDGenerator]
// implementation.
package idgenerator

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// DefaultLength is the length of generated string keys.
const DefaultLength = 16

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
	length int
}

// NewIDGenerator returns a new implementation of [domain.IDGenerator].
func NewIDGenerator(opts ...domain.IDGeneratorOption) domain.IDGenerator {
	options := domain.IDGeneratorOptions{Reader: rand.Reader, Length: DefaultLength}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Length <= 0 {
		options.Length = DefaultLength
	}
	return &IDGenerator{reader: options.Reader, length: options.Length}
}

// GenerateID implements [domain.IDGenerator].
func (i *IDGenerator) GenerateID(strategy domain.AutoID, last int64) (any, error) {
	switch strategy {
	case domain.AutoIDInt64:
		return max(last, 0) + 1, nil
	case domain.AutoIDGUID:
		u, err := uuid.NewRandomFromReader(i.reader)
		if err != nil {
			return nil, err
		}
		return primitive.Binary{Subtype: bsonUUIDSubtype, Data: u[:]}, nil
	case domain.AutoIDString:
		return i.randomString(i.length)
	case domain.AutoIDObjectID:
		return primitive.NewObjectID(), nil
	default:
		return nil, fmt.Errorf("unknown key generation strategy %d", strategy)
	}
}

const bsonUUIDSubtype = 0x04

func (i *IDGenerator) randomString(l int) (string, error) {
	buf := make([]byte, max(8, l*2))
	if _, err := io.ReadFull(i.reader, buf); err != nil {
		return "", err
	}
	enc := base64.StdEncoding.EncodeToString(buf)
	return strings.NewReplacer("+", "", "/", "").Replace(enc)[:l], nil
}
