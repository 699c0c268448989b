package docstore

import (
	"github.com/vinicius-lino-figueiredo/bst"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

type bstComparer struct {
	comparer domain.Comparer
}

func newBSTComparer(comparer domain.Comparer) bst.Comparer[any, domain.Document] {
	return &bstComparer{comparer: comparer}
}

// CompareKeys implements bst.Comparer.
func (bc *bstComparer) CompareKeys(a any, b any) (int, error) {
	return bc.comparer.Compare(a, b)
}

// CompareValues implements bst.Comparer. Stored documents are matched by
// identity.
func (bc *bstComparer) CompareValues(a domain.Document, b domain.Document) (bool, error) {
	return a == b, nil
}
