package domain

import (
	"reflect"
)

// KeyField is the reserved document field holding the primary key.
const KeyField = "_id"

// TagName is the struct tag read when describing entity shapes and decoding
// configuration.
const TagName = "gedbq"

// Type is a semantic type tag. The codec keeps one encode/decode pair per
// tag.
type Type uint8

// Semantic type tags known by the default codec. Custom registrations
// should use values starting at [TypeCustom].
const (
	TypeUnknown Type = iota
	TypeInt32
	TypeInt64
	TypeUInt64
	TypeDouble
	TypeDecimal
	TypeString
	TypeBoolean
	TypeBytes
	TypeDateTime
	TypeGUID
	TypeDuration
	TypeEnum
	TypeArray
	TypeDocument
	TypeCustom Type = 64
)

var typeNames = map[Type]string{
	TypeUnknown:  "Unknown",
	TypeInt32:    "Int32",
	TypeInt64:    "Int64",
	TypeUInt64:   "UInt64",
	TypeDouble:   "Double",
	TypeDecimal:  "Decimal",
	TypeString:   "String",
	TypeBoolean:  "Boolean",
	TypeBytes:    "Bytes",
	TypeDateTime: "DateTime",
	TypeGUID:     "GUID",
	TypeDuration: "Duration",
	TypeEnum:     "Enum",
	TypeArray:    "Array",
	TypeDocument: "Document",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Custom"
}

// Field describes a single persisted field of an entity shape.
type Field struct {
	// Name is the document field name. The key field is stored under
	// [KeyField] regardless of its name.
	Name string
	// GoName is the struct field name.
	GoName string
	// Index is the struct field index path, as used by
	// [reflect.Value.FieldByIndex].
	Index []int
	// Type is the Go type of the struct field.
	Type reflect.Type
	// Tag is the semantic type used by the codec.
	Tag Type
	// Key is set for the primary key field.
	Key bool
}

// Shape maps a struct type to its persisted fields. Shapes are immutable
// and shared by reference.
type Shape struct {
	// Name is the collection name.
	Name string
	// Type is the struct type, never a pointer.
	Type reflect.Type
	// Fields are the persisted fields in declaration order.
	Fields []Field
	// KeyIndex is the position of the key field in Fields, or -1.
	KeyIndex int
}

// KeyField returns the key field of the shape, if any.
func (s *Shape) KeyField() (Field, bool) {
	if s.KeyIndex < 0 || s.KeyIndex >= len(s.Fields) {
		return Field{}, false
	}
	return s.Fields[s.KeyIndex], true
}

// New allocates a new zeroed instance, returned as a pointer.
func (s *Shape) New() reflect.Value {
	return reflect.New(s.Type)
}

// AutoID is the strategy used by a collection to create keys for documents
// inserted without one.
type AutoID uint8

// Supported key generation strategies.
const (
	AutoIDObjectID AutoID = iota
	AutoIDInt64
	AutoIDGUID
	AutoIDString
)

// Record is a single entry in the store log.
type Record struct {
	// Collection is the collection the record applies to.
	Collection string
	// Doc is the full stored document, for inserts and updates.
	Doc Document
	// Deleted marks a tombstone for the document with key Key.
	Deleted bool
	// Key is the key of a deleted document.
	Key any
	// Dropped marks the removal of a whole collection.
	Dropped bool
}

// OperatorKind identifies a query operator.
type OperatorKind uint8

// Query operators accepted by the pipeline.
const (
	OperatorWhere OperatorKind = iota
	OperatorOrderBy
	OperatorOrderByDescending
	OperatorThenBy
	OperatorThenByDescending
	OperatorSelect
	OperatorGroupBy
	OperatorCount
	OperatorLongCount
	OperatorFirst
	OperatorFirstOrDefault
	OperatorLast
	OperatorLastOrDefault
	OperatorSingle
	OperatorSingleOrDefault
	OperatorDistinct
	OperatorSkip
	OperatorTake
	OperatorSkipWhile
	OperatorTakeWhile
	OperatorUnion
	OperatorConcat
	OperatorIntersect
	OperatorExcept
	OperatorCast
	OperatorOfType
	OperatorReverse
	OperatorContains
	OperatorAny
	OperatorAll
	OperatorMin
	OperatorMax
	OperatorSum
	OperatorAverage
	OperatorDefaultIfEmpty
	OperatorElementAt
	OperatorElementAtOrDefault
	OperatorJoin
	OperatorGroupJoin
	OperatorSelectMany
)

var operatorNames = [...]string{
	OperatorWhere:              "Where",
	OperatorOrderBy:            "OrderBy",
	OperatorOrderByDescending:  "OrderByDescending",
	OperatorThenBy:             "ThenBy",
	OperatorThenByDescending:   "ThenByDescending",
	OperatorSelect:             "Select",
	OperatorGroupBy:            "GroupBy",
	OperatorCount:              "Count",
	OperatorLongCount:          "LongCount",
	OperatorFirst:              "First",
	OperatorFirstOrDefault:     "FirstOrDefault",
	OperatorLast:               "Last",
	OperatorLastOrDefault:      "LastOrDefault",
	OperatorSingle:             "Single",
	OperatorSingleOrDefault:    "SingleOrDefault",
	OperatorDistinct:           "Distinct",
	OperatorSkip:               "Skip",
	OperatorTake:               "Take",
	OperatorSkipWhile:          "SkipWhile",
	OperatorTakeWhile:          "TakeWhile",
	OperatorUnion:              "Union",
	OperatorConcat:             "Concat",
	OperatorIntersect:          "Intersect",
	OperatorExcept:             "Except",
	OperatorCast:               "Cast",
	OperatorOfType:             "OfType",
	OperatorReverse:            "Reverse",
	OperatorContains:           "Contains",
	OperatorAny:                "Any",
	OperatorAll:                "All",
	OperatorMin:                "Min",
	OperatorMax:                "Max",
	OperatorSum:                "Sum",
	OperatorAverage:            "Average",
	OperatorDefaultIfEmpty:     "DefaultIfEmpty",
	OperatorElementAt:          "ElementAt",
	OperatorElementAtOrDefault: "ElementAtOrDefault",
	OperatorJoin:               "Join",
	OperatorGroupJoin:          "GroupJoin",
	OperatorSelectMany:         "SelectMany",
}

func (k OperatorKind) String() string {
	if int(k) < len(operatorNames) {
		return operatorNames[k]
	}
	return "Unknown"
}

// Operator is a single step of a query chain. Lambdas act on untyped
// elements; the typed API adapts user functions to these signatures.
type Operator struct {
	// Kind identifies the operator.
	Kind OperatorKind
	// Predicate filters elements. Used by Where, the element operators,
	// Count, LongCount, Any, All, SkipWhile, TakeWhile and OfType.
	Predicate func(any) bool
	// Selector maps an element to an ordering key, a projection, a group
	// key or an aggregated value.
	Selector func(any) any
	// Element maps a group member before it is added to its group.
	Element func(any) any
	// Group builds a group value from its key and members. When nil,
	// groups are produced as [Group].
	Group func(key any, members []any) any
	// Convert changes the element type for Cast.
	Convert func(any) (any, error)
	// Count is the argument of Skip, Take and ElementAt.
	Count int
	// Value is the argument of Contains and DefaultIfEmpty.
	Value any
	// Other is the second sequence of the set operators.
	Other []any
}

// ElementOperator reduces a sequence to at most one element.
type ElementOperator uint8

// Element operators absorbed by the query expression.
const (
	ElementNone ElementOperator = iota
	ElementFirst
	ElementFirstOrDefault
	ElementLast
	ElementLastOrDefault
	ElementSingle
	ElementSingleOrDefault
)

var elementNames = [...]string{
	ElementNone:            "None",
	ElementFirst:           "First",
	ElementFirstOrDefault:  "FirstOrDefault",
	ElementLast:            "Last",
	ElementLastOrDefault:   "LastOrDefault",
	ElementSingle:          "Single",
	ElementSingleOrDefault: "SingleOrDefault",
}

func (e ElementOperator) String() string {
	if int(e) < len(elementNames) {
		return elementNames[e]
	}
	return "Unknown"
}

// OrDefault reports whether the operator returns the absence value for an
// empty sequence.
func (e ElementOperator) OrDefault() bool {
	return e == ElementFirstOrDefault || e == ElementLastOrDefault || e == ElementSingleOrDefault
}

// TranslationStatus is the outcome of translating a single operator.
type TranslationStatus uint8

// Translation outcomes.
const (
	Translated TranslationStatus = iota
	Deferred
	Unsupported
)

func (t TranslationStatus) String() string {
	switch t {
	case Translated:
		return "translated"
	case Deferred:
		return "deferred"
	default:
		return "unsupported"
	}
}

// Translation is the result of translating an operator chain.
type Translation struct {
	// Expression is the part of the chain applied while scanning.
	Expression Expression
	// Deferred are the operators left for the [Evaluator], in order.
	Deferred []Operator
}

// Group is an untyped group produced by GroupBy.
type Group struct {
	Key     any
	Members []any
}

// Result is the outcome of a query execution: either a sequence or a
// scalar.
type Result struct {
	// Items holds the sequence elements.
	Items []any
	// Scalar is set for element operators, counts and aggregates.
	Scalar any
	// IsScalar tells which of Items and Scalar is meaningful.
	IsScalar bool
	// Found reports whether an element operator matched an element. A
	// matched element may itself be nil.
	Found bool
}

// QueryContext is the runtime context of a single query execution.
type QueryContext struct {
	// Store is the document store to scan.
	Store Store
	// IdentityMap is consulted and fed when Tracking is set.
	IdentityMap IdentityMap
	// Tracking enables identity resolution against IdentityMap.
	Tracking bool
}

// EntryState is the tracking state of an entity.
type EntryState uint8

// Entity tracking states.
const (
	StateDetached EntryState = iota
	StateUnchanged
	StateAdded
	StateModified
	StateDeleted
)

func (s EntryState) String() string {
	switch s {
	case StateUnchanged:
		return "Unchanged"
	case StateAdded:
		return "Added"
	case StateModified:
		return "Modified"
	case StateDeleted:
		return "Deleted"
	default:
		return "Detached"
	}
}

// ChangeKind is the kind of a pending change.
type ChangeKind uint8

// Pending change kinds.
const (
	ChangeInsert ChangeKind = iota
	ChangeUpdate
	ChangeDelete
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	default:
		return "delete"
	}
}

// Entry is a pending change of a single entity.
type Entry struct {
	// Kind is the change to apply.
	Kind ChangeKind
	// Shape describes the entity.
	Shape *Shape
	// Entity is a pointer to the entity holding its current values.
	Entity any
	// TemporaryKey marks a placeholder key that the store must replace.
	TemporaryKey bool
	// OriginalKey is the key the entity had when it was last read, used to
	// address updates and deletes when set.
	OriginalKey any
}
