package referencedata

import (
	"errors"
	"strings"
	"sync"
)

var ErrMissingUnknownType = errors.New("reference data has no \"Unknown id\" type")

// Registry resolves attribute and identifier types in memory. Lookups never
// fail: unresolved names and keys map to the "Unknown id" entries, which a
// registry is guaranteed to hold.
type Registry struct {
	mu sync.RWMutex

	attributesByKey   map[AttributeKey]AttributeType
	attributesByName  map[string]AttributeType
	identifiersByKey  map[IdentifierKey]IdentifierType
	identifiersByName map[string]IdentifierType
}

func NewRegistry(attributes []AttributeType, identifiers []IdentifierType) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(attributes, identifiers); err != nil {
		return nil, err
	}
	return r, nil
}

// FromSeed builds a registry without storage, numbering types in seed order.
func FromSeed(seed Seed) *Registry {
	seed = seed.withUnknown()
	attributes := make([]AttributeType, len(seed.AttributeTypes))
	for i, t := range seed.AttributeTypes {
		t.ID = uint(i + 1)
		attributes[i] = t
	}
	identifiers := make([]IdentifierType, len(seed.IdentifierTypes))
	for i, t := range seed.IdentifierTypes {
		t.ID = uint(i + 1)
		identifiers[i] = t
	}
	r, _ := NewRegistry(attributes, identifiers)
	return r
}

// Replace swaps the registry contents, e.g. after reloading from storage.
func (r *Registry) Replace(attributes []AttributeType, identifiers []IdentifierType) error {
	attrByKey := make(map[AttributeKey]AttributeType, len(attributes))
	attrByName := make(map[string]AttributeType, len(attributes))
	for _, t := range attributes {
		if t.Key != "" {
			attrByKey[t.Key] = t
		}
		attrByName[normalize(t.Name)] = t
	}
	idByKey := make(map[IdentifierKey]IdentifierType, len(identifiers))
	idByName := make(map[string]IdentifierType, len(identifiers))
	for _, t := range identifiers {
		if t.Key != "" {
			idByKey[t.Key] = t
		}
		idByName[normalize(t.Name)] = t
	}

	if _, ok := attrByName[normalize(UnknownName)]; !ok {
		return ErrMissingUnknownType
	}
	if _, ok := idByName[normalize(UnknownName)]; !ok {
		return ErrMissingUnknownType
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.attributesByKey = attrByKey
	r.attributesByName = attrByName
	r.identifiersByKey = idByKey
	r.identifiersByName = idByName
	return nil
}

// AttributeType resolves by display name, case-insensitively.
func (r *Registry) AttributeType(name string) AttributeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.attributesByName[normalize(name)]; ok {
		return t
	}
	return r.attributesByName[normalize(UnknownName)]
}

func (r *Registry) AttributeTypeByKey(key AttributeKey) AttributeType {
	r.mu.RLock()
	t, ok := r.attributesByKey[key]
	r.mu.RUnlock()
	if ok {
		return t
	}
	return r.AttributeType(UnknownName)
}

// LookupAttributeType is AttributeType without the fallback.
func (r *Registry) LookupAttributeType(name string) (AttributeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.attributesByName[normalize(name)]
	return t, ok
}

func (r *Registry) IdentifierType(name string) IdentifierType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.identifiersByName[normalize(name)]; ok {
		return t
	}
	return r.identifiersByName[normalize(UnknownName)]
}

func (r *Registry) IdentifierTypeByKey(key IdentifierKey) IdentifierType {
	r.mu.RLock()
	t, ok := r.identifiersByKey[key]
	r.mu.RUnlock()
	if ok {
		return t
	}
	return r.IdentifierType(UnknownName)
}

// IdentifierTypeByID is used when exporting stored identifiers.
func (r *Registry) IdentifierTypeByID(id uint) (IdentifierType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.identifiersByName {
		if t.ID == id {
			return t, true
		}
	}
	return IdentifierType{}, false
}

func (r *Registry) AttributeTypeByID(id uint) (AttributeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.attributesByName {
		if t.ID == id {
			return t, true
		}
	}
	return AttributeType{}, false
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
