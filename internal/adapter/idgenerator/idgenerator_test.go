package idgenerator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

type readerMock struct{ mock.Mock }

// Read implements io.Reader.
func (r *readerMock) Read(p []byte) (int, error) {
	call := r.Called(p)
	return call.Int(0), call.Error(1)
}

type IDGeneratorTestSuite struct {
	suite.Suite
	g *IDGenerator
}

func (s *IDGeneratorTestSuite) SetupTest() {
	s.g = NewIDGenerator().(*IDGenerator)
}

// integer keys should continue after the greatest one.
func (s *IDGeneratorTestSuite) TestInt64() {
	id, err := s.g.GenerateID(domain.AutoIDInt64, 41)
	s.NoError(err)
	s.Equal(int64(42), id)

	id, err = s.g.GenerateID(domain.AutoIDInt64, -7)
	s.NoError(err)
	s.Equal(int64(1), id)
}

// GUID keys should be stored as UUID binaries.
func (s *IDGeneratorTestSuite) TestGUID() {
	id, err := s.g.GenerateID(domain.AutoIDGUID, 0)
	s.NoError(err)
	bin, ok := id.(primitive.Binary)
	s.True(ok)
	s.Equal(byte(4), bin.Subtype)
	_, err = uuid.FromBytes(bin.Data)
	s.NoError(err)
}

// string keys should have the configured length and be random.
func (s *IDGeneratorTestSuite) TestString() {
	g := NewIDGenerator(domain.WithIDGeneratorLength(10))
	a, err := g.GenerateID(domain.AutoIDString, 0)
	s.NoError(err)
	b, err := g.GenerateID(domain.AutoIDString, 0)
	s.NoError(err)
	s.Len(a, 10)
	s.NotEqual(a, b)
	s.NotContains(a, "+")
	s.NotContains(a, "/")
}

// the configured reader should be used for random keys.
func (s *IDGeneratorTestSuite) TestReader() {
	g := NewIDGenerator(domain.WithIDGeneratorReader(bytes.NewReader(make([]byte, 64))))
	id, err := g.GenerateID(domain.AutoIDString, 0)
	s.NoError(err)
	s.Equal("AAAAAAAAAAAAAAAA", id)

	r := new(readerMock)
	r.On("Read", mock.Anything).Return(0, errors.New("no entropy"))
	g = NewIDGenerator(domain.WithIDGeneratorReader(r))
	_, err = g.GenerateID(domain.AutoIDGUID, 0)
	s.Error(err)
	_, err = g.GenerateID(domain.AutoIDString, 0)
	s.Error(err)
}

// ObjectIDs should be generated by default.
func (s *IDGeneratorTestSuite) TestObjectID() {
	id, err := s.g.GenerateID(domain.AutoIDObjectID, 0)
	s.NoError(err)
	s.IsType(primitive.ObjectID{}, id)

	_, err = s.g.GenerateID(domain.AutoID(99), 0)
	s.Error(err)
}

func TestIDGeneratorTestSuite(t *testing.T) {
	suite.Run(t, new(IDGeneratorTestSuite))
}
