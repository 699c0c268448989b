package identitymap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

type hasherMock struct{ mock.Mock }

// Hash implements domain.Hasher.
func (h *hasherMock) Hash(v any) (uint64, error) {
	call := h.Called(v)
	return call.Get(0).(uint64), call.Error(1)
}

type person struct {
	ID   int64
	Name string
}

type IdentityMapTestSuite struct {
	suite.Suite
	im     *IdentityMap
	people *domain.Shape
	orders *domain.Shape
}

func (s *IdentityMapTestSuite) SetupTest() {
	s.im = NewIdentityMap().(*IdentityMap)
	s.people = &domain.Shape{Name: "Person"}
	s.orders = &domain.Shape{Name: "Order"}
}

// registered instances should be found by shape and key.
func (s *IdentityMapTestSuite) TestFindAndRegister() {
	alice := &person{ID: 1, Name: "Alice"}

	_, ok, err := s.im.Find(s.people, int64(1))
	s.NoError(err)
	s.False(ok)

	s.NoError(s.im.Register(s.people, int64(1), alice, domain.StateUnchanged))

	found, ok, err := s.im.Find(s.people, int64(1))
	s.NoError(err)
	s.True(ok)
	s.Same(alice, found)

	// same key, other shape
	_, ok, err = s.im.Find(s.orders, int64(1))
	s.NoError(err)
	s.False(ok)

	state, err := s.im.State(s.people, int64(1))
	s.NoError(err)
	s.Equal(domain.StateUnchanged, state)
	s.Equal(1, s.im.Len())
}

// registering again should replace the state, detaching should forget.
func (s *IdentityMapTestSuite) TestStates() {
	alice := &person{ID: 1, Name: "Alice"}
	s.NoError(s.im.Register(s.people, int64(1), alice, domain.StateAdded))
	s.NoError(s.im.Register(s.people, int64(1), alice, domain.StateModified))

	state, err := s.im.State(s.people, int64(1))
	s.NoError(err)
	s.Equal(domain.StateModified, state)

	s.NoError(s.im.Register(s.people, int64(1), nil, domain.StateDetached))
	_, ok, err := s.im.Find(s.people, int64(1))
	s.NoError(err)
	s.False(ok)

	state, err = s.im.State(s.orders, int64(1))
	s.NoError(err)
	s.Equal(domain.StateDetached, state)
	s.Equal(0, s.im.Len())
}

// uncomparable keys should go through the hasher.
func (s *IdentityMapTestSuite) TestUncomparableKeys() {
	h := new(hasherMock)
	h.On("Hash", mock.Anything).Return(uint64(1), nil).Once()
	h.On("Hash", mock.Anything).Return(uint64(0), errors.New("no hash"))
	im := NewIdentityMap(domain.WithIdentityMapHasher(h))

	s.NoError(im.Register(s.people, []byte{1}, &person{}, domain.StateUnchanged))
	_, _, err := im.Find(s.people, []byte{1})
	s.ErrorContains(err, "no hash")
	s.ErrorContains(im.Register(s.people, []byte{2}, &person{}, domain.StateUnchanged), "no hash")
}

func TestIdentityMapTestSuite(t *testing.T) {
	suite.Run(t, new(IdentityMapTestSuite))
}
