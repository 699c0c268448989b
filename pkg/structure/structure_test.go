package structure

import (
	"math"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type base struct {
	Hidden string
}

type Audit struct {
	CreatedAt time.Time
	Name      string
}

type Person struct {
	ID   int64 `gedbq:"_id,key"`
	Name string
	Age  int `gedbq:"age"`
	Audit
	base
	secret  string
	Skipped string `gedbq:"-"`
	Nested  Audit  `gedbq:"nested"`
}

type StructureTestSuite struct {
	suite.Suite
}

func (s *StructureTestSuite) names(fields []Field) []string {
	res := make([]string, len(fields))
	for n, f := range fields {
		res[n] = f.Name
	}
	return res
}

// fields should follow declaration order, tags and embedding rules.
func (s *StructureTestSuite) TestFields() {
	fields := Fields(reflect.TypeFor[Person]())
	s.Equal([]string{"_id", "Name", "age", "CreatedAt", "nested"}, s.names(fields))

	s.True(fields[0].Key)
	s.Equal("ID", fields[0].GoName)
	s.Equal(reflect.TypeFor[int64](), fields[0].Type)
	s.False(fields[1].Key)

	// promoted fields carry the full index path
	s.Equal([]int{3, 0}, fields[3].Index)
	s.Equal(reflect.TypeFor[Audit](), fields[4].Type)

	p := Person{Audit: Audit{CreatedAt: time.UnixMilli(5)}}
	s.Equal(time.UnixMilli(5), reflect.ValueOf(p).FieldByIndex(fields[3].Index).Interface())
}

// results should be cached per type.
func (s *StructureTestSuite) TestFieldsCached() {
	a := Fields(reflect.TypeFor[Audit]())
	b := Fields(reflect.TypeFor[Audit]())
	s.Equal(a, b)
	s.Empty(Fields(reflect.TypeFor[int]()))
}

// tags should split into a name and options.
func (s *StructureTestSuite) TestParseTag() {
	name, opts := ParseTag("_id,key")
	s.Equal("_id", name)
	s.Equal([]string{"key"}, opts)

	name, opts = ParseTag(",key,other")
	s.Equal("", name)
	s.Equal([]string{"key", "other"}, opts)

	name, opts = ParseTag("plain")
	s.Equal("plain", name)
	s.Nil(opts)
}

// integral numbers should convert, others should not.
func (s *StructureTestSuite) TestAsInteger() {
	for _, v := range []any{int(3), int8(3), int16(3), int32(3), int64(3), uint(3), uint8(3), uint16(3), uint32(3), uint64(3), float32(3), float64(3), big.NewInt(3)} {
		n, ok := AsInteger(v)
		s.True(ok, "%T", v)
		s.Equal(int64(3), n)
	}

	for _, v := range []any{3.5, uint64(math.MaxUint64), math.Inf(1), "3", nil, new(big.Int).Lsh(big.NewInt(1), 80)} {
		_, ok := AsInteger(v)
		s.False(ok, "%v", v)
	}
}

func TestStructureTestSuite(t *testing.T) {
	suite.Run(t, new(StructureTestSuite))
}
