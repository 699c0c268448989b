// Package identitymap contains the default [domain.IdentityMap]
// implementation.
package identitymap

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/uncomparable"
)

type entry struct {
	entity any
	state  domain.EntryState
}

// IdentityMap implements domain.IdentityMap. Instances are kept per shape,
// so equal keys of different entity types never collide.
type IdentityMap struct {
	hasher   domain.Hasher
	comparer domain.Comparer
	shapes   map[*domain.Shape]*uncomparable.Map[entry]
}

// NewIdentityMap returns a new implementation of domain.IdentityMap.
func NewIdentityMap(opts ...domain.IdentityMapOption) domain.IdentityMap {
	options := domain.IdentityMapOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Hasher == nil {
		options.Hasher = hasher.NewHasher()
	}
	if options.Comparer == nil {
		options.Comparer = comparer.NewComparer()
	}
	return &IdentityMap{
		hasher:   options.Hasher,
		comparer: options.Comparer,
		shapes:   make(map[*domain.Shape]*uncomparable.Map[entry]),
	}
}

// Find implements domain.IdentityMap.
func (m *IdentityMap) Find(shape *domain.Shape, key any) (any, bool, error) {
	entries, ok := m.shapes[shape]
	if !ok {
		return nil, false, nil
	}
	e, ok, err := entries.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("finding %s key %v: %w", shape.Name, key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return e.entity, true, nil
}

// Register implements domain.IdentityMap. Registering a key again replaces
// its instance and state. Detached entities are forgotten.
func (m *IdentityMap) Register(shape *domain.Shape, key any, entity any, state domain.EntryState) error {
	entries, ok := m.shapes[shape]
	if !ok {
		entries = uncomparable.New[entry](m.hasher, m.comparer)
		m.shapes[shape] = entries
	}
	var err error
	if state == domain.StateDetached {
		err = entries.Delete(key)
	} else {
		err = entries.Set(key, entry{entity: entity, state: state})
	}
	if err != nil {
		return fmt.Errorf("registering %s key %v: %w", shape.Name, key, err)
	}
	return nil
}

// State returns the tracking state of a key.
func (m *IdentityMap) State(shape *domain.Shape, key any) (domain.EntryState, error) {
	entries, ok := m.shapes[shape]
	if !ok {
		return domain.StateDetached, nil
	}
	e, ok, err := entries.Get(key)
	if err != nil || !ok {
		return domain.StateDetached, err
	}
	return e.state, nil
}

// Len returns the number of tracked instances.
func (m *IdentityMap) Len() int {
	n := 0
	for _, entries := range m.shapes {
		n += entries.Len()
	}
	return n
}
