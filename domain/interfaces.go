// Package domain contains domain-specific interfaces and option types for
// GEDBQ.
//
// This package defines the core interfaces that must be implemented by
// adapters, the value types that flow between them (shapes, operators,
// change entries, query results) and functional options for configuring
// components like the store, the codec and the query pipeline.
package domain

import (
	"context"
	"io"
	"iter"
	"os"
	"reflect"
)

// Serializer converts store records to framed bytes.
type Serializer interface {
	// Serialize converts a record to a frame ready to be appended to the
	// datafile.
	Serialize(context.Context, Record) ([]byte, error)
}

// Deserializer converts framed bytes back to store records.
type Deserializer interface {
	// Deserialize reads a single frame produced by a [Serializer].
	Deserialize(context.Context, []byte) (Record, error)
}

// Storage provides low-level file operations with crash-safety guarantees.
type Storage interface {
	// AppendFile appends data to a file, creating it if necessary.
	AppendFile(string, os.FileMode, []byte) (int, error)
	// Exists checks if a file exists.
	Exists(string) (bool, error)
	// EnsureParentDirectoryExists creates parent directories if needed.
	EnsureParentDirectoryExists(string, os.FileMode) error
	// EnsureDatafileIntegrity verifies or repairs file integrity. It
	// reports whether a new, empty datafile had to be created.
	EnsureDatafileIntegrity(string, os.FileMode) (bool, error)
	// CrashSafeWriteFrames atomically replaces a datafile with a header
	// followed by the given frames.
	CrashSafeWriteFrames(string, [][]byte, os.FileMode, os.FileMode) error
	// ReadFileStream opens a file for streaming reads.
	ReadFileStream(string, os.FileMode) (io.ReadCloser, error)
	// Remove deletes a file.
	Remove(string) error
}

// Persistence replays and writes the append-only record log of a store.
type Persistence interface {
	// Load reads the whole datafile, returning the live documents of
	// every collection and whether the datafile was just created.
	Load(context.Context) (map[string][]Document, bool, error)
	// Append persists new records at the end of the datafile.
	Append(context.Context, ...Record) error
	// Rewrite replaces the datafile with only the given live documents.
	Rewrite(context.Context, map[string][]Document) error
	// Drop removes the datafile.
	Drop(context.Context) error
}

// Store owns the lifetime of the underlying store handle. It is opened on
// first access and closed once.
type Store interface {
	// Open loads the store if it is not open yet, reporting whether the
	// datafile was created by this call.
	Open(context.Context) (bool, error)
	// Collection returns a handle to the named collection. Collections
	// that do not exist yet are created on first write.
	Collection(context.Context, string, ...CollectionOption) (Collection, error)
	// CollectionNames lists every collection holding at least one
	// document.
	CollectionNames(context.Context) ([]string, error)
	// DropCollection removes every document of a collection, reporting
	// whether it held any.
	DropCollection(context.Context, string) (bool, error)
	// Drop removes every collection, reporting whether anything existed.
	Drop(context.Context) (bool, error)
	// Compact rewrites the datafile keeping only live documents.
	Compact(context.Context) error
	// CanConnect reports whether the store can be opened.
	CanConnect(context.Context) bool
	// Close releases the store. Calling it more than once is a no-op.
	Close() error
}

// Collection is a named set of documents addressed by their [KeyField].
type Collection interface {
	// Name returns the collection name.
	Name() string
	// Scan reads every document of the collection in the store native
	// order, which is ascending key order.
	Scan(context.Context) ([]Document, error)
	// Insert adds a document. A document without a key receives one from
	// the collection [AutoID] strategy. The stored key is returned.
	Insert(context.Context, Document) (any, error)
	// Update replaces the document with the same key, reporting whether
	// it existed.
	Update(context.Context, Document) (bool, error)
	// Delete removes the document with the given key, reporting whether it
	// existed.
	Delete(context.Context, any) (bool, error)
}

// Decoder converts between different data representations.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(any, any) error
}

// Comparer provides ordering and comparison operations for different data
// types.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(any, any) (int, error)
	// Comparable returns true if two values can be compared.
	Comparable(any, any) bool
}

// Hasher generates hash values for uncomparable keys.
type Hasher interface {
	// Hash generates a hash value for the given data.
	Hash(any) (uint64, error)
}

// IDGenerator creates keys for documents inserted without one.
type IDGenerator interface {
	// GenerateID returns a new key for the given strategy. last is the
	// greatest integer key seen so far, used by [AutoIDInt64].
	GenerateID(strategy AutoID, last int64) (any, error)
}

// Document represents a record in the store: an ordered mapping of field
// names to store-native values. Documents are transient and read by one
// goroutine at a time.
type Document interface {
	// ID returns the value under [KeyField], or nil.
	ID() any
	// Get returns the value under the given key, or nil if unset.
	Get(string) any
	// Has reports whether the given key is set, even if set to nil.
	Has(string) bool
	// Set sets a value, keeping the position of existing keys.
	Set(string, any)
	// Unset removes a key.
	Unset(string)
	// Keys iterates over the keys in insertion order.
	Keys() iter.Seq[string]
	// Iter iterates over key-value pairs in insertion order.
	Iter() iter.Seq2[string, any]
	// Len returns the number of keys.
	Len() int
	// Copy returns a shallow copy of the document.
	Copy() Document
}

// Codec converts between Go values and store-native document values.
type Codec interface {
	// TypeOf returns the semantic type tag used for values of the given
	// type.
	TypeOf(reflect.Type) Type
	// Encode converts a Go value to a store value. [TypeUnknown] makes the
	// codec pick the tag from the value type.
	Encode(any, Type) (any, error)
	// Decode converts a store value to a value of the given Go type.
	Decode(any, reflect.Type) (any, error)
}

// ShapeBuilder describes Go struct types as entity shapes.
type ShapeBuilder interface {
	// Shape returns the descriptor for the given struct or struct pointer
	// type.
	Shape(reflect.Type) (*Shape, error)
}

// IdentityMap keeps a single live instance per entity shape and key. It is
// owned by a unit of work and reached through the [QueryContext].
type IdentityMap interface {
	// Find returns the tracked instance for the given shape and key.
	Find(shape *Shape, key any) (any, bool, error)
	// Register tracks an instance under the given shape and key.
	Register(shape *Shape, key any, entity any, state EntryState) error
}

// Expression is a translated query in a representation only the
// [Compiler] understands.
type Expression interface {
	// CollectionName returns the collection the query scans.
	CollectionName() string
	// String returns a deterministic description of the plan.
	String() string
}

// Translator turns operator chains into expressions.
type Translator interface {
	// Translate builds the expression for the given shape and operator
	// chain. Operators the expression cannot absorb are returned in
	// [Translation.Deferred].
	Translate(*Shape, ...Operator) (*Translation, error)
}

// Compiler turns expressions into executables.
type Compiler interface {
	// Compile prepares an expression for execution.
	Compile(Expression) (Executable, error)
}

// Executable runs a compiled query.
type Executable interface {
	// Execute scans the store and materializes the result.
	Execute(context.Context, *QueryContext) (*Result, error)
}

// Evaluator applies deferred operators to a materialized result.
type Evaluator interface {
	// Evaluate applies the operators in order.
	Evaluate(context.Context, *Result, ...Operator) (*Result, error)
}

// QueryContextFactory creates the runtime context of a query.
type QueryContextFactory interface {
	// NewQueryContext returns a context for a single query execution.
	NewQueryContext(tracking bool) *QueryContext
}

// ChangeWriter persists pending entity changes.
type ChangeWriter interface {
	// Save applies the entries in order and returns the number of
	// affected rows.
	Save(context.Context, ...Entry) (int, error)
}

// Runner runs functions away from the calling goroutine.
type Runner interface {
	// Submit schedules fn for execution.
	Submit(fn func()) error
	// Release stops accepting work and waits for running tasks.
	Release()
}

// Metrics receives engine counters.
type Metrics interface {
	// DocumentsScanned counts documents read by a scan.
	DocumentsScanned(collection string, n int)
	// QueryExecuted counts a finished query by outcome.
	QueryExecuted(outcome string)
	// RowsAffected counts rows written by the change writer.
	RowsAffected(kind ChangeKind, n int)
}
