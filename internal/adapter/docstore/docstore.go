// Package docstore contains the default [domain.Store] implementation: an
// embedded store keeping every collection in memory, indexed by key, and
// backed by a [domain.Persistence] log.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/ctxsync"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/structure"
)

// treeDegree is the node size hint passed to the AVL tree.
const treeDegree = 8

// Store implements domain.Store.
type Store struct {
	mu          *ctxsync.Mutex
	persistence domain.Persistence
	bstComparer bst.Comparer[any, domain.Document]
	idGenerator domain.IDGenerator
	log         *zap.SugaredLogger

	opened      bool
	closed      bool
	collections map[string]*collection
	autoIDs     map[string]domain.AutoID
}

type collection struct {
	tree bst.BST[any, domain.Document]
	// seq is the greatest integer key seen, used by domain.AutoIDInt64.
	seq int64
}

// NewStore returns a new implementation of domain.Store.
func NewStore(opts ...domain.StoreOption) (domain.Store, error) {
	options := domain.StoreOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Persistence == nil {
		return nil, domain.ErrMissingConnection
	}
	if options.Comparer == nil {
		options.Comparer = comparer.NewComparer()
	}
	if options.IDGenerator == nil {
		options.IDGenerator = idgenerator.NewIDGenerator()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop().Sugar()
	}
	return &Store{
		mu:          ctxsync.NewMutex(),
		persistence: options.Persistence,
		bstComparer: newBSTComparer(options.Comparer),
		idGenerator: options.IDGenerator,
		log:         options.Logger,
		collections: make(map[string]*collection),
		autoIDs:     make(map[string]domain.AutoID),
	}, nil
}

// Open implements domain.Store.
func (s *Store) Open(ctx context.Context) (bool, error) {
	var created bool
	err := s.mu.Do(ctx, func() error {
		var err error
		created, err = s.open(ctx)
		return err
	})
	return created, err
}

// open loads the store if needed. Must be called with the lock held.
func (s *Store) open(ctx context.Context) (bool, error) {
	if s.closed {
		return false, domain.ErrStoreClosed
	}
	if s.opened {
		return false, nil
	}
	loaded, created, err := s.persistence.Load(ctx)
	if err != nil {
		return false, err
	}

	collections := make(map[string]*collection, len(loaded))
	for name, docs := range loaded {
		coll := s.newCollection()
		for _, doc := range docs {
			if err := coll.tree.Insert(doc.ID(), doc); err != nil {
				return false, s.insertErr(name, doc.ID(), err)
			}
			coll.track(doc.ID())
		}
		collections[name] = coll
	}
	s.collections = collections
	s.opened = true
	s.log.Infow("store opened", "created", created, "collections", len(collections))
	return created, nil
}

func (s *Store) newCollection() *collection {
	return &collection{tree: avl.NewBST(true, treeDegree, s.bstComparer)}
}

func (s *Store) insertErr(name string, key any, err error) error {
	if e := new(bst.ErrUniqueViolated); errors.As(err, e) {
		return domain.ErrDuplicateKey{Collection: name, Key: key}
	}
	return err
}

// Collection implements domain.Store.
func (s *Store) Collection(ctx context.Context, name string, opts ...domain.CollectionOption) (domain.Collection, error) {
	options := domain.CollectionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	err := s.mu.Do(ctx, func() error {
		if _, err := s.open(ctx); err != nil {
			return err
		}
		if options.AutoID != nil {
			s.autoIDs[name] = *options.AutoID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Collection{store: s, name: name}, nil
}

// CollectionNames implements domain.Store.
func (s *Store) CollectionNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.mu.Do(ctx, func() error {
		if _, err := s.open(ctx); err != nil {
			return err
		}
		for name, coll := range s.collections {
			if coll.tree.GetNumberOfKeys() > 0 {
				names = append(names, name)
			}
		}
		return nil
	})
	slices.Sort(names)
	return names, err
}

// DropCollection implements domain.Store.
func (s *Store) DropCollection(ctx context.Context, name string) (bool, error) {
	var dropped bool
	err := s.mu.Do(ctx, func() error {
		if _, err := s.open(ctx); err != nil {
			return err
		}
		coll, ok := s.collections[name]
		if !ok {
			return nil
		}
		if coll.tree.GetNumberOfKeys() > 0 {
			rec := domain.Record{Collection: name, Dropped: true}
			if err := s.persistence.Append(ctx, rec); err != nil {
				return err
			}
			dropped = true
		}
		delete(s.collections, name)
		return nil
	})
	return dropped, err
}

// Drop implements domain.Store.
func (s *Store) Drop(ctx context.Context) (bool, error) {
	var existed bool
	err := s.mu.Do(ctx, func() error {
		if _, err := s.open(ctx); err != nil {
			return err
		}
		for _, coll := range s.collections {
			if coll.tree.GetNumberOfKeys() > 0 {
				existed = true
				break
			}
		}
		if err := s.persistence.Drop(ctx); err != nil {
			return err
		}
		s.collections = make(map[string]*collection)
		// the next access recreates the datafile
		s.opened = false
		s.log.Infow("store dropped", "existed", existed)
		return nil
	})
	return existed, err
}

// Compact implements domain.Store.
func (s *Store) Compact(ctx context.Context) error {
	return s.mu.Do(ctx, func() error {
		if _, err := s.open(ctx); err != nil {
			return err
		}
		all := make(map[string][]domain.Document, len(s.collections))
		for name, coll := range s.collections {
			docs := slices.Collect(coll.tree.GetAll())
			if len(docs) > 0 {
				all[name] = docs
			}
		}
		if err := s.persistence.Rewrite(ctx, all); err != nil {
			return err
		}
		s.log.Infow("store compacted", "collections", len(all))
		return nil
	})
}

// CanConnect implements domain.Store.
func (s *Store) CanConnect(ctx context.Context) bool {
	_, err := s.Open(ctx)
	return err == nil
}

// Close implements domain.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.collections = nil
	s.log.Infow("store closed")
	return nil
}

func (c *collection) track(key any) {
	var n int64
	var ok bool
	if d, isDecimal := key.(primitive.Decimal128); isDecimal {
		n, ok = decimalInteger(d)
	} else {
		n, ok = structure.AsInteger(key)
	}
	if ok {
		c.seq = max(c.seq, n)
	}
}

// decimalInteger returns the value of d when it is an integer that fits in an
// int64. Unsigned 64-bit keys are stored as Decimal128.
func decimalInteger(d primitive.Decimal128) (int64, bool) {
	bi, exp, err := d.BigInt()
	if err != nil {
		return 0, false
	}
	ten := big.NewInt(10)
	for ; exp > 0; exp-- {
		bi.Mul(bi, ten)
	}
	for ; exp < 0; exp++ {
		var rem big.Int
		bi.QuoRem(bi, ten, &rem)
		if rem.Sign() != 0 {
			return 0, false
		}
	}
	return bi.Int64(), bi.IsInt64()
}

// Collection implements domain.Collection.
type Collection struct {
	store *Store
	name  string
}

// Name implements domain.Collection.
func (c *Collection) Name() string {
	return c.name
}

// Scan implements domain.Collection.
func (c *Collection) Scan(ctx context.Context) ([]domain.Document, error) {
	var res []domain.Document
	err := c.store.mu.Do(ctx, func() error {
		if _, err := c.store.open(ctx); err != nil {
			return err
		}
		coll, ok := c.store.collections[c.name]
		if !ok {
			return nil
		}
		res = make([]domain.Document, 0, coll.tree.GetNumberOfKeys())
		for doc := range coll.tree.GetAll() {
			res = append(res, doc.Copy())
		}
		return nil
	})
	return res, err
}

// Insert implements domain.Collection.
func (c *Collection) Insert(ctx context.Context, doc domain.Document) (any, error) {
	var key any
	err := c.store.mu.Do(ctx, func() error {
		if _, err := c.store.open(ctx); err != nil {
			return err
		}
		coll, ok := c.store.collections[c.name]
		if !ok {
			coll = c.store.newCollection()
		}

		key = doc.ID()
		if key == nil {
			var err error
			key, err = c.store.idGenerator.GenerateID(c.store.autoIDs[c.name], coll.seq)
			if err != nil {
				return err
			}
		}

		found, err := coll.tree.Search(key)
		if err != nil {
			return err
		}
		if found != nil && len(found.Values()) > 0 {
			return domain.ErrDuplicateKey{Collection: c.name, Key: key}
		}

		stored := withKey(doc, key)
		if err := c.store.persistence.Append(ctx, domain.Record{Collection: c.name, Doc: stored}); err != nil {
			return err
		}
		if err := coll.tree.Insert(key, stored); err != nil {
			return c.store.insertErr(c.name, key, err)
		}
		coll.track(key)
		c.store.collections[c.name] = coll
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// Update implements domain.Collection.
func (c *Collection) Update(ctx context.Context, doc domain.Document) (bool, error) {
	key := doc.ID()
	if key == nil {
		return false, fmt.Errorf("cannot update a document without %s", domain.KeyField)
	}
	var updated bool
	err := c.store.mu.Do(ctx, func() error {
		if _, err := c.store.open(ctx); err != nil {
			return err
		}
		coll, ok := c.store.collections[c.name]
		if !ok {
			return nil
		}
		old, ok, err := coll.find(key)
		if err != nil || !ok {
			return err
		}

		stored := withKey(doc, key)
		if err := c.store.persistence.Append(ctx, domain.Record{Collection: c.name, Doc: stored}); err != nil {
			return err
		}
		if err := coll.tree.Delete(key, &old); err != nil {
			return err
		}
		if err := coll.tree.Insert(key, stored); err != nil {
			return c.store.insertErr(c.name, key, err)
		}
		updated = true
		return nil
	})
	return updated, err
}

// Delete implements domain.Collection.
func (c *Collection) Delete(ctx context.Context, key any) (bool, error) {
	var deleted bool
	err := c.store.mu.Do(ctx, func() error {
		if _, err := c.store.open(ctx); err != nil {
			return err
		}
		coll, ok := c.store.collections[c.name]
		if !ok {
			return nil
		}
		old, ok, err := coll.find(key)
		if err != nil || !ok {
			return err
		}
		// tombstones carry the stored key so replay matches its type
		rec := domain.Record{Collection: c.name, Deleted: true, Key: old.ID()}
		if err := c.store.persistence.Append(ctx, rec); err != nil {
			return err
		}
		if err := coll.tree.Delete(key, &old); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (c *collection) find(key any) (domain.Document, bool, error) {
	found, err := c.tree.Search(key)
	if err != nil {
		return nil, false, err
	}
	if found == nil {
		return nil, false, nil
	}
	values := found.Values()
	if len(values) == 0 {
		return nil, false, nil
	}
	return values[0], true, nil
}

// withKey returns a copy of doc with key stored first.
func withKey(doc domain.Document, key any) domain.Document {
	elems := make([]data.E, 0, doc.Len()+1)
	elems = append(elems, data.E{Key: domain.KeyField, Value: key})
	for k, v := range doc.Iter() {
		if k == domain.KeyField {
			continue
		}
		elems = append(elems, data.E{Key: k, Value: v})
	}
	res, _ := data.NewDocument(elems)
	return res
}
