// Package expression contains the query expression built by the translator
// and consumed by the compiler.
//
// An [Expression] is created at the query root and only grows: predicates and
// orderings are appended, and the projection, element operator, count flags
// and group-by are set at most once. The translator checks [Expression.Terminal]
// and [Expression.Grouped] before mutating it, so an expression never holds
// more than one of count, element operator and group-by.
package expression

import (
	"fmt"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Ordering is a single sort key.
type Ordering struct {
	Key       func(any) any
	Ascending bool
}

// Grouping partitions the sequence by Key. Element maps members and Result
// builds the group value, both optional.
type Grouping struct {
	Key     func(any) any
	Element func(any) any
	Result  func(key any, members []any) any
}

// Expression implements domain.Expression.
type Expression struct {
	shape      *domain.Shape
	predicates []func(any) bool
	orderings  []Ordering
	projection func(any) any
	element    domain.ElementOperator
	count      bool
	longCount  bool
	group      *Grouping
}

// New returns an empty expression scanning the collection of shape.
func New(shape *domain.Shape) *Expression {
	return &Expression{shape: shape}
}

// CollectionName implements domain.Expression.
func (e *Expression) CollectionName() string {
	return e.shape.Name
}

// Shape returns the shape of the scanned entities.
func (e *Expression) Shape() *domain.Shape { return e.shape }

// Predicates returns the filters, all of which must hold.
func (e *Expression) Predicates() []func(any) bool { return e.predicates }

// Orderings returns the sort keys, primary first.
func (e *Expression) Orderings() []Ordering { return e.orderings }

// Projection returns the final projection, or nil.
func (e *Expression) Projection() func(any) any { return e.projection }

// ElementOperator returns the element operator.
func (e *Expression) ElementOperator() domain.ElementOperator { return e.element }

// IsCount reports whether the query counts elements.
func (e *Expression) IsCount() bool { return e.count }

// IsLongCount reports whether the query counts elements as int64.
func (e *Expression) IsLongCount() bool { return e.longCount }

// Grouping returns the group-by, or nil.
func (e *Expression) Grouping() *Grouping { return e.group }

// Terminal reports whether a count or element operator is set.
func (e *Expression) Terminal() bool {
	return e.count || e.longCount || e.element != domain.ElementNone
}

// Projected reports whether a projection is set.
func (e *Expression) Projected() bool { return e.projection != nil }

// Grouped reports whether a group-by is set.
func (e *Expression) Grouped() bool { return e.group != nil }

// AddPredicate appends a filter.
func (e *Expression) AddPredicate(p func(any) bool) {
	e.predicates = append(e.predicates, p)
}

// AddOrdering appends a sort key. When clear is set, previous keys are
// dropped first, as OrderBy does.
func (e *Expression) AddOrdering(key func(any) any, ascending, clear bool) {
	if clear {
		e.orderings = nil
	}
	e.orderings = append(e.orderings, Ordering{Key: key, Ascending: ascending})
}

// SetProjection sets the projection applied last.
func (e *Expression) SetProjection(p func(any) any) {
	e.projection = p
}

// SetElementOperator sets the element operator.
func (e *Expression) SetElementOperator(op domain.ElementOperator) {
	e.element = op
}

// SetCount makes the query return the number of matching elements.
func (e *Expression) SetCount() {
	e.count = true
}

// SetLongCount makes the query return the number of matching elements as
// int64.
func (e *Expression) SetLongCount() {
	e.longCount = true
}

// SetGroupBy partitions the sequence.
func (e *Expression) SetGroupBy(g Grouping) {
	e.group = &g
}

// String implements domain.Expression. Lambdas are described by their
// position, so equal chains render equally.
func (e *Expression) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scan %s\n", e.shape.Name)
	for n := range e.predicates {
		fmt.Fprintf(&sb, "  where #%d\n", n+1)
	}
	if len(e.orderings) > 0 {
		dirs := make([]string, len(e.orderings))
		for n, o := range e.orderings {
			dirs[n] = "desc"
			if o.Ascending {
				dirs[n] = "asc"
			}
		}
		fmt.Fprintf(&sb, "  order by %s\n", strings.Join(dirs, ", "))
	}
	if e.group != nil {
		sb.WriteString("  group by key")
		if e.group.Element != nil {
			sb.WriteString(" element")
		}
		if e.group.Result != nil {
			sb.WriteString(" result")
		}
		sb.WriteString("\n")
	}
	switch {
	case e.longCount:
		sb.WriteString("  long count\n")
	case e.count:
		sb.WriteString("  count\n")
	case e.element != domain.ElementNone:
		fmt.Fprintf(&sb, "  element %s\n", e.element)
	}
	if e.projection != nil && !e.count && !e.longCount {
		sb.WriteString("  select\n")
	}
	return sb.String()
}
