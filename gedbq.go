// Package gedbq provides typed, chainable queries over an embedded document
// store.
//
// A [DB] owns the store file and the query pipeline. Entities are plain
// structs: every exported field is persisted, the key field is detected by
// the "key" tag option or by its name (ID or <Type>ID) and stored as _id.
// Queries start at [Query], which returns a [Sequence] over pointers to the
// entity type:
//
//	adults, err := gedbq.Query[Person](session).
//		Where(func(p *Person) bool { return p.Age >= 18 }).
//		OrderBy(func(p *Person) any { return p.Name }).
//		ToList(ctx)
//
// Operators the store can absorb (filters, orderings, projections, counts,
// element selection and grouping) run while scanning; every other operator
// runs over the materialized results, in order. Joins and flattening are
// refused: materialize both sequences with ToList first.
//
// Changes are recorded explicitly on a [Session] with Add, Update and
// Remove and written by [Session.SaveChanges].
package gedbq

import (
	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

var (
	// ErrNoElements is returned by element operators and aggregates that
	// need at least one element.
	ErrNoElements = domain.ErrNoElements
	// ErrMoreThanOneElement is returned by Single and SingleOrDefault when
	// more than one element matches.
	ErrMoreThanOneElement = domain.ErrMoreThanOneElement
	// ErrIndexOutOfRange is returned by [Sequence.ElementAt].
	ErrIndexOutOfRange = domain.ErrIndexOutOfRange
	// ErrNotOrdered is returned by [Sequence.ThenBy] and
	// [Sequence.ThenByDescending] when the previous operator is not an
	// ordering.
	ErrNotOrdered = domain.ErrNotOrdered
	// ErrStoreClosed is returned when using a closed [DB].
	ErrStoreClosed = domain.ErrStoreClosed
	// ErrMissingConnection is returned when no store is configured.
	ErrMissingConnection = domain.ErrMissingConnection
	// ErrInvalidHeader is returned when the datafile was not written by
	// this package.
	ErrInvalidHeader = domain.ErrInvalidHeader
)

// ErrInvalidOperation wraps [ErrNoElements], [ErrMoreThanOneElement] and
// [ErrIndexOutOfRange] with the name of the failing operator.
type ErrInvalidOperation = domain.ErrInvalidOperation

// ErrUnsupportedOperation is returned when an operator can be neither run by
// the store nor by the client, such as Join or SelectMany.
type ErrUnsupportedOperation = domain.ErrUnsupportedOperation

// ErrMissingKey is returned when saving an entity with no key field.
type ErrMissingKey = domain.ErrMissingKey

// ErrEntityType is returned when a type cannot be used as an entity.
type ErrEntityType = domain.ErrEntityType

// ErrDuplicateKey is returned when adding an entity whose key is taken.
type ErrDuplicateKey = domain.ErrDuplicateKey

// ErrUnsupportedValue is returned when a field value cannot be stored or
// read back as its declared type.
type ErrUnsupportedValue = domain.ErrUnsupportedValue

// ErrCannotCompare is returned when ordering by keys of unrelated types.
type ErrCannotCompare = domain.ErrCannotCompare

// ErrInvalidCast is returned by [Cast] when an element has another type.
type ErrInvalidCast = domain.ErrInvalidCast

// ErrDatafileName is returned when the datafile name is reserved.
type ErrDatafileName = domain.ErrDatafileName

// ErrCorruptFiles is returned when opening a datafile with more unreadable
// records than the corruption threshold allows.
type ErrCorruptFiles = domain.ErrCorruptFiles

// ErrFlushToStorage is returned when the datafile cannot be synced.
type ErrFlushToStorage = domain.ErrFlushToStorage

// Store is the document store a [DB] reads from and writes to.
type Store = domain.Store

// Codec converts field values to store values and back.
type Codec = domain.Codec

// CodecType registers a custom semantic type with [WithCodecType].
type CodecType = domain.CodecType

// Comparer orders values for sorting, Min and Max.
type Comparer = domain.Comparer

// Hasher hashes values for grouping and the set operators.
type Hasher = domain.Hasher

// Translator turns operator chains into query expressions.
type Translator = domain.Translator

// Compiler turns query expressions into executables.
type Compiler = domain.Compiler

// IdentityMap resolves tracked entities by key.
type IdentityMap = domain.IdentityMap

// Metrics receives engine counters.
type Metrics = domain.Metrics
