// Package translator contains the default [domain.Translator]
// implementation.
//
// Operators are absorbed into an [expression.Expression] while the
// expression can still apply them during the scan. The first operator it
// cannot absorb, and every operator after it, is deferred to the client
// evaluator in order.
package translator

import (
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/expression"
)

// Translator implements domain.Translator.
type Translator struct {
	log *zap.SugaredLogger
}

// NewTranslator returns a new implementation of domain.Translator.
func NewTranslator(opts ...domain.TranslatorOption) domain.Translator {
	options := domain.TranslatorOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop().Sugar()
	}
	return &Translator{log: options.Logger}
}

// Translate implements domain.Translator.
func (t *Translator) Translate(shape *domain.Shape, ops ...domain.Operator) (*domain.Translation, error) {
	if shape == nil {
		return nil, domain.ErrEntityType{Type: "<nil>", Reason: "query has no shape"}
	}
	expr := expression.New(shape)
	res := &domain.Translation{Expression: expr}

	ordered := false
	for n, op := range ops {
		if unsupported(op.Kind) {
			return nil, domain.ErrUnsupportedOperation{Operator: op.Kind.String()}
		}
		switch op.Kind {
		case domain.OperatorOrderBy, domain.OperatorOrderByDescending:
			ordered = true
		case domain.OperatorThenBy, domain.OperatorThenByDescending:
			if !ordered {
				return nil, domain.ErrInvalidOperation{Operator: op.Kind.String(), Err: domain.ErrNotOrdered}
			}
		default:
			ordered = false
		}
		if len(res.Deferred) > 0 {
			res.Deferred = append(res.Deferred, op)
			continue
		}
		status := t.apply(expr, op)
		if status == domain.Deferred {
			t.log.Debugw("deferring operator to the client",
				"collection", shape.Name,
				"operator", op.Kind.String(),
				"position", n,
			)
			res.Deferred = append(res.Deferred, op)
		}
	}
	return res, nil
}

func unsupported(k domain.OperatorKind) bool {
	switch k {
	case domain.OperatorJoin, domain.OperatorGroupJoin, domain.OperatorSelectMany:
		return true
	}
	return false
}

// Status reports how an operator would be handled by expr, without
// changing it.
func Status(expr *expression.Expression, op domain.Operator) domain.TranslationStatus {
	if unsupported(op.Kind) {
		return domain.Unsupported
	}
	if expr.Terminal() {
		return domain.Deferred
	}
	reshaped := expr.Projected() || expr.Grouped()

	switch op.Kind {
	case domain.OperatorWhere, domain.OperatorOrderBy, domain.OperatorOrderByDescending,
		domain.OperatorThenBy, domain.OperatorThenByDescending, domain.OperatorGroupBy,
		domain.OperatorCount, domain.OperatorLongCount:
		if reshaped {
			return domain.Deferred
		}
		return domain.Translated
	case domain.OperatorSelect:
		if expr.Projected() {
			return domain.Deferred
		}
		return domain.Translated
	}

	if element(op.Kind) != domain.ElementNone {
		if expr.Grouped() || (op.Predicate != nil && expr.Projected()) {
			return domain.Deferred
		}
		return domain.Translated
	}
	return domain.Deferred
}

func (t *Translator) apply(expr *expression.Expression, op domain.Operator) domain.TranslationStatus {
	status := Status(expr, op)
	if status != domain.Translated {
		return status
	}

	switch op.Kind {
	case domain.OperatorWhere:
		expr.AddPredicate(op.Predicate)
	case domain.OperatorOrderBy:
		expr.AddOrdering(op.Selector, true, true)
	case domain.OperatorOrderByDescending:
		expr.AddOrdering(op.Selector, false, true)
	case domain.OperatorThenBy:
		expr.AddOrdering(op.Selector, true, false)
	case domain.OperatorThenByDescending:
		expr.AddOrdering(op.Selector, false, false)
	case domain.OperatorSelect:
		expr.SetProjection(op.Selector)
	case domain.OperatorGroupBy:
		expr.SetGroupBy(expression.Grouping{Key: op.Selector, Element: op.Element, Result: op.Group})
	case domain.OperatorCount:
		if op.Predicate != nil {
			expr.AddPredicate(op.Predicate)
		}
		expr.SetCount()
	case domain.OperatorLongCount:
		if op.Predicate != nil {
			expr.AddPredicate(op.Predicate)
		}
		expr.SetLongCount()
	default:
		if op.Predicate != nil {
			expr.AddPredicate(op.Predicate)
		}
		expr.SetElementOperator(element(op.Kind))
	}
	return domain.Translated
}

func element(k domain.OperatorKind) domain.ElementOperator {
	switch k {
	case domain.OperatorFirst:
		return domain.ElementFirst
	case domain.OperatorFirstOrDefault:
		return domain.ElementFirstOrDefault
	case domain.OperatorLast:
		return domain.ElementLast
	case domain.OperatorLastOrDefault:
		return domain.ElementLastOrDefault
	case domain.OperatorSingle:
		return domain.ElementSingle
	case domain.OperatorSingleOrDefault:
		return domain.ElementSingleOrDefault
	}
	return domain.ElementNone
}
