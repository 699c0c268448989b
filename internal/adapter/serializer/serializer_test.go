package serializer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/storage"
)

type SerializerTestSuite struct {
	suite.Suite
	s   domain.Serializer
	ctx context.Context
}

func (s *SerializerTestSuite) SetupTest() {
	s.s = NewSerializer()
	s.ctx = context.Background()
}

func (s *SerializerTestSuite) doc(in any) domain.Document {
	d, err := data.NewDocument(in)
	s.Require().NoError(err)
	return d
}

func (s *SerializerTestSuite) payload(frame []byte) bson.D {
	flags, _, payload, err := storage.ParseFrame(frame)
	s.Require().NoError(err)
	s.Require().Zero(flags & storage.FlagCompressed)
	var d bson.D
	s.Require().NoError(bson.Unmarshal(payload, &d))
	return d
}

// upserts should carry the collection and the whole document.
func (s *SerializerTestSuite) TestUpsert() {
	frame, err := s.s.Serialize(s.ctx, domain.Record{
		Collection: "Person",
		Doc:        s.doc(bson.D{{Key: "_id", Value: int64(1)}, {Key: "Name", Value: "Alice"}}),
	})
	s.NoError(err)

	d := s.payload(frame)
	s.Equal(FieldCollection, d[0].Key)
	s.Equal("Person", d[0].Value)
	s.Equal(FieldDoc, d[1].Key)
	s.Equal(bson.D{{Key: "_id", Value: int64(1)}, {Key: "Name", Value: "Alice"}}, d[1].Value)
}

// tombstones and drops should not carry documents.
func (s *SerializerTestSuite) TestDeleteAndDrop() {
	frame, err := s.s.Serialize(s.ctx, domain.Record{Collection: "Person", Deleted: true, Key: int64(7)})
	s.NoError(err)
	d := s.payload(frame)
	s.Equal(bson.E{Key: FieldDeleted, Value: int64(7)}, d[1])

	frame, err = s.s.Serialize(s.ctx, domain.Record{Collection: "Person", Dropped: true})
	s.NoError(err)
	d = s.payload(frame)
	s.Equal(bson.E{Key: FieldDropped, Value: true}, d[1])
}

// large payloads should be compressed and small ones kept raw.
func (s *SerializerTestSuite) TestCompression() {
	big := s.doc(bson.D{{Key: "_id", Value: 1}, {Key: "Text", Value: strings.Repeat("abc", 500)}})
	frame, err := s.s.Serialize(s.ctx, domain.Record{Collection: "c", Doc: big})
	s.NoError(err)
	flags, rawLen, payload, err := storage.ParseFrame(frame)
	s.NoError(err)
	s.Equal(storage.FlagCompressed, flags)
	s.Less(len(payload), rawLen)

	noComp := NewSerializer(domain.WithSerializerCompression(false))
	frame, err = noComp.Serialize(s.ctx, domain.Record{Collection: "c", Doc: big})
	s.NoError(err)
	flags, rawLen, payload, err = storage.ParseFrame(frame)
	s.NoError(err)
	s.Zero(flags)
	s.Equal(rawLen, len(payload))
}

// payloads that do not shrink should be stored raw.
func (s *SerializerTestSuite) TestIncompressible() {
	ser := NewSerializer(domain.WithSerializerMinCompressSize(0))
	frame, err := ser.Serialize(s.ctx, domain.Record{
		Collection: "c",
		Doc:        s.doc(bson.D{{Key: "_id", Value: 1}}),
	})
	s.NoError(err)
	flags, _, _, err := storage.ParseFrame(frame)
	s.NoError(err)
	s.Zero(flags)

	_, err = storage.ReadFrame(bytes.NewReader(frame))
	s.NoError(err)
}

// reserved or dotted field names should be rejected, even nested.
func (s *SerializerTestSuite) TestInvalidFieldNames() {
	_, err := s.s.Serialize(s.ctx, domain.Record{Collection: "c", Doc: s.doc(bson.D{{Key: "a.b", Value: 1}})})
	s.Error(err)

	_, err = s.s.Serialize(s.ctx, domain.Record{Collection: "c", Doc: s.doc(bson.D{{Key: "$where", Value: 1}})})
	s.Error(err)

	nested := s.doc(bson.D{{Key: "list", Value: []any{s.doc(bson.D{{Key: "$$doc", Value: 1}})}}})
	_, err = s.s.Serialize(s.ctx, domain.Record{Collection: "c", Doc: nested})
	s.Error(err)
}

// records must name a collection and carry some content.
func (s *SerializerTestSuite) TestInvalidRecords() {
	_, err := s.s.Serialize(s.ctx, domain.Record{Dropped: true})
	s.Error(err)
	_, err = s.s.Serialize(s.ctx, domain.Record{Collection: "c"})
	s.Error(err)
}

// a cancelled context should stop serialization.
func (s *SerializerTestSuite) TestContextCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.s.Serialize(ctx, domain.Record{Collection: "c", Dropped: true})
	s.ErrorIs(err, context.Canceled)
}

func TestSerializerTestSuite(t *testing.T) {
	suite.Run(t, new(SerializerTestSuite))
}
