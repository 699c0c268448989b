package uncomparable

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
)

type hasherMock struct{ mock.Mock }

// Hash implements domain.Hasher.
func (h *hasherMock) Hash(v any) (uint64, error) {
	call := h.Called(v)
	return uint64(call.Int(0)), call.Error(1)
}

type MapTestSuite struct {
	suite.Suite
	m *Map[any]
}

func (s *MapTestSuite) SetupTest() {
	s.m = New[any](hasher.NewHasher(), comparer.NewComparer())
}

// comparable keys should be stored and replaced in place.
func (s *MapTestSuite) TestSetComparable() {
	s.NoError(s.m.Set("key", "value"))
	s.NoError(s.m.Set(3, "three"))
	s.NoError(s.m.Set("key", "other"))

	v, ok, err := s.m.Get("key")
	s.NoError(err)
	s.True(ok)
	s.Equal("other", v)
	s.Equal(2, s.m.Len())
	s.Equal([]any{"key", 3}, slices.Collect(s.m.Keys()))
}

// uncomparable keys should be matched by content.
func (s *MapTestSuite) TestSetUncomparable() {
	s.NoError(s.m.Set([]any{1, "a"}, 1))
	s.NoError(s.m.Set([]any{2, "b"}, 2))
	s.NoError(s.m.Set([]any{1, "a"}, 3))

	v, ok, err := s.m.Get([]any{1, "a"})
	s.NoError(err)
	s.True(ok)
	s.Equal(3, v)
	s.Equal(2, s.m.Len())

	_, ok, err = s.m.Get([]any{3})
	s.NoError(err)
	s.False(ok)
}

// iteration should follow first insertion order and skip deleted keys.
func (s *MapTestSuite) TestOrderAfterDelete() {
	for _, k := range []any{"c", "a", []any{"z"}, "b"} {
		s.NoError(s.m.Set(k, k))
	}
	s.NoError(s.m.Delete("a"))
	s.NoError(s.m.Delete([]any{"z"}))
	s.NoError(s.m.Delete("missing"))

	s.Equal([]any{"c", "b"}, slices.Collect(s.m.Keys()))
	s.Equal([]any{"c", "b"}, slices.Collect(s.m.Values()))
	s.Equal(2, s.m.Len())

	s.NoError(s.m.Set("a", "again"))
	keys := []any{}
	for k := range s.m.Iter() {
		keys = append(keys, k)
	}
	s.Equal([]any{"c", "b", "a"}, keys)
}

// colliding hashes should still be told apart by the comparer.
func (s *MapTestSuite) TestCollision() {
	h := new(hasherMock)
	h.On("Hash", mock.Anything).Return(7, nil)
	m := New[int](h, comparer.NewComparer())

	s.NoError(m.Set([]any{1}, 1))
	s.NoError(m.Set([]any{2}, 2))
	v, ok, err := m.Get([]any{2})
	s.NoError(err)
	s.True(ok)
	s.Equal(2, v)
	s.Equal(2, m.Len())
}

// hash failures should be returned.
func (s *MapTestSuite) TestHashError() {
	h := new(hasherMock)
	h.On("Hash", mock.Anything).Return(0, errors.New("boom"))
	m := New[int](h, comparer.NewComparer())

	s.Error(m.Set([]any{1}, 1))
	_, _, err := m.Get([]any{1})
	s.Error(err)
	s.NoError(m.Set(1, 1))
	s.Equal(1, m.Len())
}

// set and delete should hash a key only once.
func (s *MapTestSuite) TestHashOnce() {
	h := new(hasherMock)
	h.On("Hash", []any{1}).Return(3, nil).Once()
	h.On("Hash", []any{1}).Return(0, errors.New("hashed twice"))
	m := New[int](h, comparer.NewComparer())
	s.NoError(m.Set([]any{1}, 1))

	h = new(hasherMock)
	h.On("Hash", []any{1}).Return(3, nil).Once()
	h.On("Hash", []any{1}).Return(0, errors.New("hashed twice"))
	m.hasher = h
	s.NoError(m.Delete([]any{1}))
	s.Zero(m.Len())
}

func TestMapTestSuite(t *testing.T) {
	suite.Run(t, new(MapTestSuite))
}
