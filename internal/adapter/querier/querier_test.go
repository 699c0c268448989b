package querier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/expression"
)

type comparerMock struct{ mock.Mock }

// Comparable implements domain.Comparer.
func (c *comparerMock) Comparable(a any, b any) bool {
	return c.Called(a, b).Bool(0)
}

// Compare implements domain.Comparer.
func (c *comparerMock) Compare(a any, b any) (int, error) {
	call := c.Called(a, b)
	return call.Int(0), call.Error(1)
}

type hasherMock struct{ mock.Mock }

// Hash implements domain.Hasher.
func (h *hasherMock) Hash(v any) (uint64, error) {
	call := h.Called(v)
	return call.Get(0).(uint64), call.Error(1)
}

type person struct {
	Name string
	Age  int
	City string
}

func name(v any) any { return v.(person).Name }
func age(v any) any  { return v.(person).Age }
func city(v any) any { return v.(person).City }

type QuerierTestSuite struct {
	suite.Suite
	q      *Querier
	people []any
}

func (s *QuerierTestSuite) SetupTest() {
	s.q = NewQuerier()
	s.people = []any{
		person{Name: "Alice", Age: 30, City: "Rome"},
		person{Name: "Bob", Age: 25, City: "Oslo"},
		person{Name: "Charlie", Age: 35, City: "Rome"},
		person{Name: "Dan", Age: 25, City: "Lima"},
	}
}

func (s *QuerierTestSuite) names(items []any) []string {
	res := make([]string, len(items))
	for n, itm := range items {
		res[n] = itm.(person).Name
	}
	return res
}

// every predicate must hold.
func (s *QuerierTestSuite) TestFilter() {
	res := s.q.Filter(s.people,
		func(v any) bool { return v.(person).Age >= 25 },
		func(v any) bool { return v.(person).City != "Oslo" },
	)
	s.Equal([]string{"Alice", "Charlie", "Dan"}, s.names(res))
	s.Equal(s.people, s.q.Filter(s.people))
}

// sorting should be stable and lexicographic over keys.
func (s *QuerierTestSuite) TestSort() {
	res, err := s.q.Sort(s.people, expression.Ordering{Key: age, Ascending: true})
	s.NoError(err)
	s.Equal([]string{"Bob", "Dan", "Alice", "Charlie"}, s.names(res))

	res, err = s.q.Sort(s.people,
		expression.Ordering{Key: city, Ascending: false},
		expression.Ordering{Key: name, Ascending: false},
	)
	s.NoError(err)
	s.Equal([]string{"Charlie", "Alice", "Bob", "Dan"}, s.names(res))

	// the source is left untouched
	s.Equal("Alice", s.people[0].(person).Name)

	res, err = s.q.Sort(s.people)
	s.NoError(err)
	s.Equal(s.people, res)
}

// comparison errors should stop the sort.
func (s *QuerierTestSuite) TestSortError() {
	c := new(comparerMock)
	c.On("Compare", mock.Anything, mock.Anything).Return(0, errors.New("boom"))
	q := NewQuerier(WithComparer(c))

	_, err := q.Sort(s.people, expression.Ordering{Key: age, Ascending: true})
	s.ErrorContains(err, "boom")
	s.Same(c, q.Comparer())
}

// groups should follow first key occurrence and keep member order.
func (s *QuerierTestSuite) TestGroup() {
	res, err := s.q.Group(s.people, expression.Grouping{Key: age})
	s.NoError(err)
	s.Len(res, 3)

	first := res[0].(domain.Group)
	s.Equal(30, first.Key)
	second := res[1].(domain.Group)
	s.Equal(25, second.Key)
	s.Equal([]string{"Bob", "Dan"}, s.names(second.Members))

	res, err = s.q.Group(s.people, expression.Grouping{
		Key:     city,
		Element: name,
		Result:  func(key any, members []any) any { return len(members) },
	})
	s.NoError(err)
	s.Equal([]any{2, 1, 1}, res)
}

// uncomparable keys should be bucketed by the hasher.
func (s *QuerierTestSuite) TestGroupUncomparable() {
	res, err := s.q.Group(s.people, expression.Grouping{
		Key: func(v any) any { return []any{v.(person).City} },
	})
	s.NoError(err)
	s.Len(res, 3)
	s.Equal([]any{"Rome"}, res[0].(domain.Group).Key)

	h := new(hasherMock)
	h.On("Hash", mock.Anything).Return(uint64(0), errors.New("no hash"))
	q := NewQuerier(WithHasher(h), WithComparer(comparer.NewComparer()))
	_, err = q.Group(s.people, expression.Grouping{Key: func(v any) any { return []any{v} }})
	s.ErrorContains(err, "no hash")
}

// projections map every element.
func (s *QuerierTestSuite) TestProject() {
	s.Equal([]any{"Alice", "Bob", "Charlie", "Dan"}, s.q.Project(s.people, name))
	s.Equal(s.people, s.q.Project(s.people, nil))
}

// windows should be clamped to the sequence.
func (s *QuerierTestSuite) TestSkipAndTake() {
	s.Equal([]string{"Bob", "Charlie"}, s.names(s.q.SkipAndTake(s.people, 1, 2)))
	s.Equal([]string{"Charlie", "Dan"}, s.names(s.q.SkipAndTake(s.people, 2, -1)))
	s.Empty(s.q.SkipAndTake(s.people, 10, 1))
	s.Empty(s.q.SkipAndTake(s.people, 0, 0))
	s.Len(s.q.SkipAndTake(s.people, -3, 100), 4)
}

// element operators should honor their cardinality rules.
func (s *QuerierTestSuite) TestElement() {
	v, found, err := s.q.Element(s.people, domain.ElementFirst)
	s.NoError(err)
	s.True(found)
	s.Equal("Alice", v.(person).Name)

	v, _, err = s.q.Element(s.people, domain.ElementLast)
	s.NoError(err)
	s.Equal("Dan", v.(person).Name)

	v, _, err = s.q.Element(s.people[:1], domain.ElementSingle)
	s.NoError(err)
	s.Equal("Alice", v.(person).Name)

	_, _, err = s.q.Element(s.people, domain.ElementSingleOrDefault)
	s.ErrorIs(err, domain.ErrMoreThanOneElement)
	s.ErrorAs(err, new(domain.ErrInvalidOperation))

	for _, op := range []domain.ElementOperator{domain.ElementFirst, domain.ElementLast, domain.ElementSingle} {
		_, _, err = s.q.Element(nil, op)
		s.ErrorIs(err, domain.ErrNoElements, op.String())
	}
	for _, op := range []domain.ElementOperator{domain.ElementFirstOrDefault, domain.ElementLastOrDefault, domain.ElementSingleOrDefault} {
		v, found, err = s.q.Element(nil, op)
		s.NoError(err, op.String())
		s.False(found, op.String())
		s.Nil(v)
	}

	// a nil element is still an element
	v, found, err = s.q.Element([]any{nil}, domain.ElementSingleOrDefault)
	s.NoError(err)
	s.True(found)
	s.Nil(v)

	_, _, err = s.q.Element(s.people, domain.ElementNone)
	s.Error(err)
}

func TestQuerierTestSuite(t *testing.T) {
	suite.Run(t, new(QuerierTestSuite))
}
