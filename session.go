package gedbq

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/identitymap"
)

// EntryState is the tracking state of an entity in a [Session].
type EntryState = domain.EntryState

// Entity tracking states.
const (
	StateDetached  = domain.StateDetached
	StateUnchanged = domain.StateUnchanged
	StateAdded     = domain.StateAdded
	StateModified  = domain.StateModified
	StateDeleted   = domain.StateDeleted
)

var uuidType = reflect.TypeFor[uuid.UUID]()

// Session is a unit of work. It resolves entities read by tracking queries
// to a single instance per key and records the changes declared with Add,
// Update and Remove until [Session.SaveChanges]. Values are never diffed: a
// changed entity must be passed to Update.
//
// A Session must not be used concurrently.
type Session struct {
	db       *DB
	identity *identitymap.IdentityMap
	pending  []domain.Entry
	// tempKey is the last placeholder handed to an integer key.
	tempKey int64
}

func newSession(db *DB) *Session {
	im := identitymap.NewIdentityMap(
		domain.WithIdentityMapHasher(db.hasher),
		domain.WithIdentityMapComparer(db.comparer),
	)
	return &Session{db: db, identity: im.(*identitymap.IdentityMap)}
}

// NewQueryContext implements domain.QueryContextFactory.
func (s *Session) NewQueryContext(tracking bool) *domain.QueryContext {
	return &domain.QueryContext{
		Store:       s.db.store,
		IdentityMap: s.identity,
		Tracking:    tracking,
	}
}

// tracked is an entity checked by a session method.
type tracked struct {
	shape *domain.Shape
	value reflect.Value
	key   any
}

func (s *Session) inspect(entity any) (tracked, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return tracked{}, domain.ErrEntityType{
			Type:   fmt.Sprintf("%T", entity),
			Reason: "entities must be non-nil pointers to structs",
		}
	}
	sh, err := s.db.shape(rv.Type())
	if err != nil {
		return tracked{}, err
	}
	t := tracked{shape: sh, value: rv.Elem()}
	if kf, ok := sh.KeyField(); ok {
		if f := t.value.FieldByIndex(kf.Index); !f.IsZero() {
			t.key = f.Interface()
		}
	}
	return t, nil
}

// Add marks new entities for insertion. Integer keys left at zero receive a
// temporary negative key, replaced on save by the one the store generates.
// Zero GUID keys are generated right away.
func (s *Session) Add(entities ...any) error {
	for _, entity := range entities {
		t, err := s.inspect(entity)
		if err != nil {
			return err
		}
		entry := domain.Entry{Kind: domain.ChangeInsert, Shape: t.shape, Entity: entity}
		if kf, ok := t.shape.KeyField(); ok && t.key == nil {
			f := t.value.FieldByIndex(kf.Index)
			switch {
			case f.Type() == uuidType:
				f.Set(reflect.ValueOf(uuid.New()))
			case f.CanInt():
				s.tempKey--
				f.SetInt(s.tempKey)
				entry.TemporaryKey = true
			default:
				entry.TemporaryKey = true
			}
			if !f.IsZero() {
				t.key = f.Interface()
			}
		}
		if t.key != nil {
			if err := s.identity.Register(t.shape, t.key, entity, domain.StateAdded); err != nil {
				return err
			}
		}
		s.pending = append(s.pending, entry)
	}
	return nil
}

// Update marks entities as modified. Entities added in this session are
// inserted with their current values instead.
func (s *Session) Update(entities ...any) error {
	for _, entity := range entities {
		t, err := s.inspect(entity)
		if err != nil {
			return err
		}
		if s.has(entity, domain.ChangeInsert) || s.has(entity, domain.ChangeUpdate) {
			continue
		}
		if t.key != nil {
			if err := s.identity.Register(t.shape, t.key, entity, domain.StateModified); err != nil {
				return err
			}
		}
		s.pending = append(s.pending, domain.Entry{Kind: domain.ChangeUpdate, Shape: t.shape, Entity: entity})
	}
	return nil
}

// Remove marks entities for deletion. Removing an entity added in this
// session just forgets it.
func (s *Session) Remove(entities ...any) error {
	for _, entity := range entities {
		t, err := s.inspect(entity)
		if err != nil {
			return err
		}
		added := s.has(entity, domain.ChangeInsert)
		s.pending = slices.DeleteFunc(s.pending, func(e domain.Entry) bool { return e.Entity == entity })
		state := domain.StateDeleted
		if added {
			state = domain.StateDetached
		} else {
			s.pending = append(s.pending, domain.Entry{Kind: domain.ChangeDelete, Shape: t.shape, Entity: entity})
		}
		if t.key != nil {
			if err := s.identity.Register(t.shape, t.key, entity, state); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) has(entity any, kind domain.ChangeKind) bool {
	return slices.ContainsFunc(s.pending, func(e domain.Entry) bool {
		return e.Entity == entity && e.Kind == kind
	})
}

// Pending returns the number of changes waiting for [Session.SaveChanges].
func (s *Session) Pending() int {
	return len(s.pending)
}

// State returns the tracking state of entity.
func (s *Session) State(entity any) (EntryState, error) {
	t, err := s.inspect(entity)
	if err != nil || t.key == nil {
		return domain.StateDetached, err
	}
	found, ok, err := s.identity.Find(t.shape, t.key)
	if err != nil || !ok || found != entity {
		return domain.StateDetached, err
	}
	return s.identity.State(t.shape, t.key)
}

// SaveChanges writes the pending changes in the order they were declared
// and returns the number of affected documents. Updates and removals of
// documents that no longer exist count zero. Writing stops at the first
// error; changes written before it are kept and no longer pending.
func (s *Session) SaveChanges(ctx context.Context) (int, error) {
	total := 0
	for len(s.pending) > 0 {
		e := s.pending[0]
		before, err := s.inspect(e.Entity)
		if err != nil {
			return total, err
		}
		n, err := s.db.writer.Save(ctx, e)
		if err != nil {
			return total, err
		}
		s.pending = s.pending[1:]
		total += n
		if err := s.accept(e, before.key); err != nil {
			return total, err
		}
	}
	s.pending = nil
	return total, nil
}

// SaveChangesAsync runs [Session.SaveChanges] on the worker pool.
func (s *Session) SaveChangesAsync(ctx context.Context) *Future[int] {
	return submit(s.db.runner, func() (int, error) {
		return s.SaveChanges(ctx)
	})
}

// accept moves a saved entity to its post-save state.
func (s *Session) accept(e domain.Entry, before any) error {
	kf, ok := e.Shape.KeyField()
	if !ok {
		return nil
	}
	key := reflect.ValueOf(e.Entity).Elem().FieldByIndex(kf.Index).Interface()
	switch e.Kind {
	case domain.ChangeInsert:
		if before != nil && e.TemporaryKey {
			if err := s.identity.Register(e.Shape, before, nil, domain.StateDetached); err != nil {
				return err
			}
		}
		return s.identity.Register(e.Shape, key, e.Entity, domain.StateUnchanged)
	case domain.ChangeUpdate:
		return s.identity.Register(e.Shape, key, e.Entity, domain.StateUnchanged)
	default:
		return s.identity.Register(e.Shape, key, nil, domain.StateDetached)
	}
}

// Find returns the entity with the given key, preferring the instance
// tracked by s. Entities removed in s are not found.
func Find[T any](ctx context.Context, s *Session, key any) (*T, bool, error) {
	sh, err := s.db.shape(reflect.TypeFor[T]())
	if err != nil {
		return nil, false, err
	}
	kf, ok := sh.KeyField()
	if !ok {
		return nil, false, domain.ErrMissingKey{Shape: sh.Name}
	}
	encoded, err := s.db.codec.Encode(key, kf.Tag)
	if err != nil {
		return nil, false, err
	}
	if key, err = s.db.codec.Decode(encoded, kf.Type); err != nil {
		return nil, false, err
	}

	found, ok, err := s.identity.Find(sh, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		state, err := s.identity.State(sh, key)
		if err != nil || state == domain.StateDeleted {
			return nil, false, err
		}
		return found.(*T), true, nil
	}

	cmp := s.db.comparer
	return Query[T](s).FirstOrDefault(ctx, func(e *T) bool {
		c, err := cmp.Compare(reflect.ValueOf(e).Elem().FieldByIndex(kf.Index).Interface(), key)
		return err == nil && c == 0
	})
}
