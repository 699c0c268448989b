package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoElements is returned by element operators and aggregates that
	// require at least one element when the sequence is empty.
	ErrNoElements = errors.New("sequence contains no elements")
	// ErrMoreThanOneElement is returned by Single and SingleOrDefault when
	// more than one element matches.
	ErrMoreThanOneElement = errors.New("sequence contains more than one element")
	// ErrIndexOutOfRange is returned by ElementAt when the index is outside
	// the sequence.
	ErrIndexOutOfRange = errors.New("index was out of range")
	// ErrNotOrdered is returned by ThenBy and ThenByDescending when they do
	// not directly follow an ordering.
	ErrNotOrdered = errors.New("sequence is not ordered")
	// ErrStoreClosed is returned when a closed store is used.
	ErrStoreClosed = errors.New("store is closed")
	// ErrMissingConnection is returned when a query or save is attempted
	// with no store configured.
	ErrMissingConnection = errors.New("no store connection configured")
	// ErrInvalidHeader is returned when a datafile does not start with a
	// valid header.
	ErrInvalidHeader = errors.New("invalid datafile header")
	// ErrTruncatedFrame is returned when a datafile ends in the middle of a
	// frame, usually after a crash during an append.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrForeignExpression is returned by a compiler given an expression
	// built by another translator.
	ErrForeignExpression = errors.New("expression was not built by this translator")
)

// ErrInvalidOperation wraps sequence cardinality errors, naming the
// operator that failed.
type ErrInvalidOperation struct {
	Operator string
	Err      error
}

func (e ErrInvalidOperation) Error() string {
	return fmt.Sprintf("invalid operation %s: %s", e.Operator, e.Err.Error())
}

func (e ErrInvalidOperation) Unwrap() error { return e.Err }

// ErrUnsupportedOperation is returned when an operator cannot be translated
// nor evaluated on the client without an explicit materialization.
type ErrUnsupportedOperation struct {
	Operator string
}

func (e ErrUnsupportedOperation) Error() string {
	return fmt.Sprintf("%s is not supported by the document store: the collections must be materialized first, call ToList before %s and apply it to the returned slices", e.Operator, e.Operator)
}

// ErrMissingKey is returned when saving an entity whose shape has no key
// field.
type ErrMissingKey struct {
	Shape string
}

func (e ErrMissingKey) Error() string {
	return fmt.Sprintf("entity %q has no key field: tag one field with `gedbq:\",key\"` or name it ID", e.Shape)
}

// ErrEntityType is returned when a type cannot be described as an entity.
type ErrEntityType struct {
	Type   string
	Reason string
}

func (e ErrEntityType) Error() string {
	return fmt.Sprintf("invalid entity type %s: %s", e.Type, e.Reason)
}

// ErrDuplicateKey is returned when inserting a document whose key already
// exists in the collection.
type ErrDuplicateKey struct {
	Collection string
	Key        any
}

func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key %v in collection %q", e.Key, e.Collection)
}

// ErrUnsupportedValue is returned by the codec when a value cannot be
// converted to or from the requested type.
type ErrUnsupportedValue struct {
	Value  any
	Target string
	Reason string
}

func (e ErrUnsupportedValue) Error() string {
	msg := fmt.Sprintf("cannot convert %v (%T) to %s", e.Value, e.Value, e.Target)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ErrCannotCompare is returned when [Comparer.Compare] is called with two
// values that cannot be compared.
type ErrCannotCompare struct {
	A, B any
}

func (e ErrCannotCompare) Error() string {
	return fmt.Sprintf("cannot compare %v and %v", e.A, e.B)
}

// ErrInvalidCast is returned by Cast when an element cannot be converted.
type ErrInvalidCast struct {
	Value  any
	Target string
}

func (e ErrInvalidCast) Error() string {
	return fmt.Sprintf("cannot cast %T to %s", e.Value, e.Target)
}

// ErrDatafileName is returned when the datafile name is reserved.
type ErrDatafileName struct {
	Name   string
	Reason string
}

func (e ErrDatafileName) Error() string {
	return fmt.Sprintf("invalid datafile name %q: %s", e.Name, e.Reason)
}

// ErrCorruptFiles is returned when loading a datafile with more unreadable
// records than the configured threshold allows.
type ErrCorruptFiles struct {
	CorruptionRate        float64
	CorruptItems          int
	DataLength            int
	CorruptAlertThreshold float64
}

func (e ErrCorruptFiles) Error() string {
	return fmt.Sprintf("corrupted %.2f%% (%d of %d) exceeded threshold %.2f%%",
		e.CorruptionRate*100, e.CorruptItems, e.DataLength, e.CorruptAlertThreshold*100)
}

// ErrFlushToStorage is returned when syncing a file to disk fails.
type ErrFlushToStorage struct {
	ErrorOnFsync error
	ErrorOnClose error
}

func (e ErrFlushToStorage) Error() string {
	var err error
	if e.ErrorOnFsync != nil {
		err = e.ErrorOnFsync
	} else {
		err = e.ErrorOnClose
	}
	return fmt.Sprint("storage flush error: ", err.Error())
}

func (e ErrFlushToStorage) Unwrap() error {
	if e.ErrorOnFsync != nil {
		return e.ErrorOnFsync
	}
	return e.ErrorOnClose
}

// ErrDecode wraps third party decoding errors.
type ErrDecode struct {
	Source any
	Target any
	Err    error
}

func (e ErrDecode) Error() string {
	msg := fmt.Sprintf("cannot decode %T into %T", e.Source, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ErrDecode) Unwrap() error { return e.Err }
