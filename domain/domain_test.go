package domain_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"go.uber.org/zap"
)

type DomainTestSuite struct {
	suite.Suite
}

func (s *DomainTestSuite) TestOptions() {
	var pos domain.PersistenceOptions
	logger := zap.NewNop().Sugar()
	po := []domain.PersistenceOption{
		domain.WithPersistenceFilename("a.db"),
		domain.WithPersistenceInMemoryOnly(true),
		domain.WithPersistenceCorruptAlertThreshold(0.3),
		domain.WithPersistenceFileMode(0o600),
		domain.WithPersistenceDirMode(0o700),
		domain.WithPersistenceLogger(logger),
	}
	for _, opt := range po {
		opt(&pos)
	}
	s.Equal(domain.PersistenceOptions{
		Filename:              "a.db",
		InMemoryOnly:          true,
		CorruptAlertThreshold: 0.3,
		FileMode:              0o600,
		DirMode:               0o700,
		Logger:                logger,
	}, pos)

	var cos domain.CollectionOptions
	s.Nil(cos.AutoID)
	domain.WithAutoID(domain.AutoIDGUID)(&cos)
	s.Equal(domain.AutoIDGUID, *cos.AutoID)

	var sos domain.SerializerOptions
	domain.WithSerializerCompression(true)(&sos)
	domain.WithSerializerMinCompressSize(32)(&sos)
	s.Equal(domain.SerializerOptions{Compression: true, MinCompressSize: 32}, sos)

	var ros domain.RunnerOptions
	domain.WithRunnerSize(3)(&ros)
	s.Equal(3, ros.Size)

	var codecOpts domain.CodecOptions
	domain.WithCodecType(domain.CodecType{Tag: domain.TypeCustom})(&codecOpts)
	domain.WithCodecType(domain.CodecType{Tag: domain.TypeCustom + 1})(&codecOpts)
	s.Len(codecOpts.Types, 2)
}

func (s *DomainTestSuite) TestErrorMessages() {
	var e error

	e = domain.ErrDatafileName{Name: "b", Reason: "nope!"}
	s.Equal(`invalid datafile name "b": nope!`, e.Error())

	e = domain.ErrCannotCompare{A: "a", B: 2}
	s.Equal(`cannot compare a and 2`, e.Error())

	e = domain.ErrCorruptFiles{
		CorruptionRate:        1,
		CorruptItems:          10,
		DataLength:            10,
		CorruptAlertThreshold: 0.5,
	}
	s.Equal("corrupted 100.00% (10 of 10) exceeded threshold 50.00%", e.Error())

	e = domain.ErrMissingKey{Shape: "Customer"}
	s.Contains(e.Error(), `entity "Customer" has no key field`)

	e = domain.ErrDuplicateKey{Collection: "Customer", Key: 3}
	s.Equal(`duplicate key 3 in collection "Customer"`, e.Error())

	e = domain.ErrUnsupportedOperation{Operator: "Join"}
	s.Contains(e.Error(), "Join is not supported")
	s.Contains(e.Error(), "call ToList before Join")

	e = domain.ErrUnsupportedValue{Value: "x", Target: "int", Reason: "nope"}
	s.Equal("cannot convert x (string) to int: nope", e.Error())
}

// cardinality errors should stay reachable through errors.Is.
func (s *DomainTestSuite) TestInvalidOperationUnwraps() {
	e := domain.ErrInvalidOperation{Operator: "Single", Err: domain.ErrMoreThanOneElement}
	s.ErrorIs(e, domain.ErrMoreThanOneElement)
	s.Equal("invalid operation Single: sequence contains more than one element", e.Error())

	flush := domain.ErrFlushToStorage{ErrorOnClose: domain.ErrStoreClosed}
	s.True(errors.Is(flush, domain.ErrStoreClosed))
}

func (s *DomainTestSuite) TestNames() {
	s.Equal("OrderByDescending", domain.OperatorOrderByDescending.String())
	s.Equal("SelectMany", domain.OperatorSelectMany.String())
	s.Equal("Unknown", domain.OperatorKind(250).String())
	s.Equal("SingleOrDefault", domain.ElementSingleOrDefault.String())
	s.Equal("GUID", domain.TypeGUID.String())
	s.Equal("Custom", (domain.TypeCustom + 3).String())
	s.Equal("deferred", domain.Deferred.String())
	s.Equal("Unchanged", domain.StateUnchanged.String())
	s.Equal("update", domain.ChangeUpdate.String())

	s.True(domain.ElementLastOrDefault.OrDefault())
	s.False(domain.ElementSingle.OrDefault())
}

func (s *DomainTestSuite) TestShapeKeyField() {
	type customer struct {
		ID   int
		Name string
	}
	shape := &domain.Shape{
		Name: "customer",
		Type: reflect.TypeFor[customer](),
		Fields: []domain.Field{
			{Name: "ID", Key: true},
			{Name: "Name"},
		},
		KeyIndex: 0,
	}
	f, ok := shape.KeyField()
	s.True(ok)
	s.Equal("ID", f.Name)
	s.Equal(reflect.TypeFor[*customer](), shape.New().Type())

	shape.KeyIndex = -1
	_, ok = shape.KeyField()
	s.False(ok)
}

func TestDomainTestSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}
