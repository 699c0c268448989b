package deserializer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/storage"
)

type DeserializerTestSuite struct {
	suite.Suite
	ser domain.Serializer
	des domain.Deserializer
	ctx context.Context
}

func (s *DeserializerTestSuite) SetupTest() {
	s.ser = serializer.NewSerializer()
	s.des = NewDeserializer()
	s.ctx = context.Background()
}

func (s *DeserializerTestSuite) roundTrip(rec domain.Record) domain.Record {
	frame, err := s.ser.Serialize(s.ctx, rec)
	s.Require().NoError(err)
	res, err := s.des.Deserialize(s.ctx, frame)
	s.Require().NoError(err)
	return res
}

// documents should keep their field order and store-native values.
func (s *DeserializerTestSuite) TestUpsert() {
	when := primitive.NewDateTimeFromTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	doc, err := data.NewDocument(bson.D{
		{Key: "_id", Value: int64(3)},
		{Key: "Name", Value: "Charlie"},
		{Key: "Age", Value: int32(35)},
		{Key: "At", Value: when},
		{Key: "Tags", Value: bson.A{"a", "b"}},
		{Key: "Sub", Value: bson.D{{Key: "X", Value: 1.5}}},
	})
	s.Require().NoError(err)

	rec := s.roundTrip(domain.Record{Collection: "Person", Doc: doc})
	s.Equal("Person", rec.Collection)
	s.False(rec.Deleted)
	s.Require().NotNil(rec.Doc)
	s.Equal([]string{"_id", "Name", "Age", "At", "Tags", "Sub"}, keys(rec.Doc))
	s.Equal(int64(3), rec.Doc.ID())
	s.Equal(int32(35), rec.Doc.Get("Age"))
	s.Equal(when, rec.Doc.Get("At"))
	s.Equal([]any{"a", "b"}, rec.Doc.Get("Tags"))
	sub, ok := rec.Doc.Get("Sub").(domain.Document)
	s.Require().True(ok)
	s.Equal(1.5, sub.Get("X"))
}

// compressed frames should be transparently expanded.
func (s *DeserializerTestSuite) TestCompressed() {
	doc, err := data.NewDocument(bson.D{{Key: "_id", Value: "k"}, {Key: "Text", Value: strings.Repeat("xyz", 400)}})
	s.Require().NoError(err)
	frame, err := s.ser.Serialize(s.ctx, domain.Record{Collection: "c", Doc: doc})
	s.Require().NoError(err)
	flags, _, _, err := storage.ParseFrame(frame)
	s.Require().NoError(err)
	s.Require().Equal(storage.FlagCompressed, flags)

	rec, err := s.des.Deserialize(s.ctx, frame)
	s.NoError(err)
	s.Equal(strings.Repeat("xyz", 400), rec.Doc.Get("Text"))
}

// tombstones and drops should be recognized.
func (s *DeserializerTestSuite) TestDeleteAndDrop() {
	rec := s.roundTrip(domain.Record{Collection: "Person", Deleted: true, Key: int64(2)})
	s.True(rec.Deleted)
	s.Equal(int64(2), rec.Key)
	s.Nil(rec.Doc)

	rec = s.roundTrip(domain.Record{Collection: "Person", Dropped: true})
	s.True(rec.Dropped)
}

// malformed frames and payloads should return errors.
func (s *DeserializerTestSuite) TestInvalid() {
	_, err := s.des.Deserialize(s.ctx, []byte{1, 2})
	s.ErrorIs(err, domain.ErrTruncatedFrame)

	_, err = s.des.Deserialize(s.ctx, storage.NewFrame(0, 3, []byte("abc")))
	s.Error(err)

	_, err = s.des.Deserialize(s.ctx, storage.NewFrame(storage.FlagCompressed, 100, []byte("abc")))
	s.Error(err)

	noColl, err := bson.Marshal(bson.D{{Key: serializer.FieldDropped, Value: true}})
	s.Require().NoError(err)
	_, err = s.des.Deserialize(s.ctx, storage.NewFrame(0, len(noColl), noColl))
	s.Error(err)

	empty, err := bson.Marshal(bson.D{{Key: serializer.FieldCollection, Value: "c"}})
	s.Require().NoError(err)
	_, err = s.des.Deserialize(s.ctx, storage.NewFrame(0, len(empty), empty))
	s.Error(err)

	badColl, err := bson.Marshal(bson.D{{Key: serializer.FieldCollection, Value: 1}})
	s.Require().NoError(err)
	_, err = s.des.Deserialize(s.ctx, storage.NewFrame(0, len(badColl), badColl))
	s.Error(err)
}

// a cancelled context should stop deserialization.
func (s *DeserializerTestSuite) TestContextCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.des.Deserialize(ctx, nil)
	s.ErrorIs(err, context.Canceled)
}

func keys(d domain.Document) []string {
	var res []string
	for k := range d.Keys() {
		res = append(res, k)
	}
	return res
}

func TestDeserializerTestSuite(t *testing.T) {
	suite.Run(t, new(DeserializerTestSuite))
}
