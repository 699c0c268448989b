package hasher

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
)

type code uint16

type HasherTestSuite struct {
	suite.Suite
	h *Hasher
}

func (s *HasherTestSuite) SetupTest() {
	s.h = NewHasher().(*Hasher)
}

func (s *HasherTestSuite) hash(v any) uint64 {
	n, err := s.h.Hash(v)
	s.Require().NoError(err)
	return n
}

// numbers that compare as equal should have the same hash.
func (s *HasherTestSuite) TestNumbers() {
	s.Equal(s.hash(1), s.hash(int64(1)))
	s.Equal(s.hash(1), s.hash(uint8(1)))
	s.Equal(s.hash(1), s.hash(1.0))
	s.Equal(s.hash(7), s.hash(code(7)))
	s.NotEqual(s.hash(1), s.hash(1.5))
}

// document hashes should not depend on key order.
func (s *HasherTestSuite) TestDocumentOrder() {
	a, err := data.NewDocument([]data.E{{Key: "a", Value: 1}, {Key: "b", Value: "x"}})
	s.NoError(err)
	b, err := data.NewDocument([]data.E{{Key: "b", Value: "x"}, {Key: "a", Value: int32(1)}})
	s.NoError(err)
	s.Equal(s.hash(a), s.hash(b))
}

// arrays should be hashed element by element.
func (s *HasherTestSuite) TestArrays() {
	s.Equal(s.hash([]any{1, "a"}), s.hash([]any{int64(1), "a"}))
	s.NotEqual(s.hash([]any{1, "a"}), s.hash([]any{"a", 1}))
}

// pointers should hash as their targets.
func (s *HasherTestSuite) TestPointers() {
	n := 4
	var nilPtr *int
	s.Equal(s.hash(4), s.hash(&n))
	s.Equal(s.hash(nil), s.hash(nilPtr))
}

func TestHasherTestSuite(t *testing.T) {
	suite.Run(t, new(HasherTestSuite))
}
