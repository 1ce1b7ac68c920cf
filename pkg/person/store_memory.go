package person

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/synaptica-ai/registry/pkg/phonetic"
)

type memoryState struct {
	seq         uint
	persons     map[uint]Person
	names       map[uint]PersonName
	codes       map[uint]PersonNameCode
	addresses   map[uint]PersonAddress
	attributes  map[uint]PersonAttribute
	patients    map[uint]Patient
	identifiers map[uint]PatientIdentifier
}

func newMemoryState() memoryState {
	return memoryState{
		persons:     map[uint]Person{},
		names:       map[uint]PersonName{},
		codes:       map[uint]PersonNameCode{},
		addresses:   map[uint]PersonAddress{},
		attributes:  map[uint]PersonAttribute{},
		patients:    map[uint]Patient{},
		identifiers: map[uint]PatientIdentifier{},
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	out.seq = s.seq
	for k, v := range s.persons {
		out.persons[k] = v
	}
	for k, v := range s.names {
		out.names[k] = v
	}
	for k, v := range s.codes {
		out.codes[k] = v
	}
	for k, v := range s.addresses {
		out.addresses[k] = v
	}
	for k, v := range s.attributes {
		out.attributes[k] = v
	}
	for k, v := range s.patients {
		out.patients[k] = v
	}
	for k, v := range s.identifiers {
		out.identifiers[k] = v
	}
	return out
}

// MemoryStore keeps the person graph in process. Used by tests and the
// "memory" storage driver.
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// WithinTx holds the store lock for the whole of fn and restores the
// previous state when fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memoryTx{state: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) write(fn func(tx *memoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryTx{state: &s.state})
}

func (s *MemoryStore) tx() *memoryTx {
	return &memoryTx{state: &s.state}
}

func (s *MemoryStore) CreatePerson(ctx context.Context, p *Person) error {
	return s.write(func(tx *memoryTx) error { return tx.CreatePerson(ctx, p) })
}

func (s *MemoryStore) SavePerson(ctx context.Context, p *Person) error {
	return s.write(func(tx *memoryTx) error { return tx.SavePerson(ctx, p) })
}

func (s *MemoryStore) CreateName(ctx context.Context, n *PersonName) error {
	return s.write(func(tx *memoryTx) error { return tx.CreateName(ctx, n) })
}

func (s *MemoryStore) SaveName(ctx context.Context, n *PersonName) error {
	return s.write(func(tx *memoryTx) error { return tx.SaveName(ctx, n) })
}

func (s *MemoryStore) CreateAddress(ctx context.Context, a *PersonAddress) error {
	return s.write(func(tx *memoryTx) error { return tx.CreateAddress(ctx, a) })
}

func (s *MemoryStore) SaveAddress(ctx context.Context, a *PersonAddress) error {
	return s.write(func(tx *memoryTx) error { return tx.SaveAddress(ctx, a) })
}

func (s *MemoryStore) CreateAttribute(ctx context.Context, a *PersonAttribute) error {
	return s.write(func(tx *memoryTx) error { return tx.CreateAttribute(ctx, a) })
}

func (s *MemoryStore) SaveAttribute(ctx context.Context, a *PersonAttribute) error {
	return s.write(func(tx *memoryTx) error { return tx.SaveAttribute(ctx, a) })
}

func (s *MemoryStore) CreatePatient(ctx context.Context, p *Patient) error {
	return s.write(func(tx *memoryTx) error { return tx.CreatePatient(ctx, p) })
}

func (s *MemoryStore) CreateIdentifier(ctx context.Context, id *PatientIdentifier) error {
	return s.write(func(tx *memoryTx) error { return tx.CreateIdentifier(ctx, id) })
}

func (s *MemoryStore) Get(ctx context.Context, id uint) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().Get(ctx, id)
}

func (s *MemoryStore) FindByIdentifier(ctx context.Context, identifier string) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().FindByIdentifier(ctx, identifier)
}

func (s *MemoryStore) FindCandidates(ctx context.Context, f CandidateFilter) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().FindCandidates(ctx, f)
}

// memoryTx operates on the state without locking; callers hold the lock.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memoryTx) nextID() uint {
	t.state.seq++
	return t.state.seq
}

func (t *memoryTx) CreatePerson(_ context.Context, p *Person) error {
	p.ID = t.nextID()
	now := time.Now().UTC()
	if p.DateCreated.IsZero() {
		p.DateCreated = now
	}
	if p.DateChanged.IsZero() {
		p.DateChanged = p.DateCreated
	}
	row := *p
	row.Names, row.Addresses, row.Attributes, row.Patient = nil, nil, nil, nil
	t.state.persons[p.ID] = row
	return nil
}

func (t *memoryTx) SavePerson(_ context.Context, p *Person) error {
	if _, ok := t.state.persons[p.ID]; !ok {
		return fmt.Errorf("saving person %d: %w", p.ID, ErrNotFound)
	}
	p.DateChanged = time.Now().UTC()
	row := *p
	row.Names, row.Addresses, row.Attributes, row.Patient = nil, nil, nil, nil
	t.state.persons[p.ID] = row
	return nil
}

func (t *memoryTx) CreateName(_ context.Context, n *PersonName) error {
	if _, ok := t.state.persons[n.PersonID]; !ok {
		return fmt.Errorf("creating name: %w", ErrNotFound)
	}
	n.ID = t.nextID()
	if n.DateCreated.IsZero() {
		n.DateCreated = time.Now().UTC()
	}
	t.putName(n)
	return nil
}

func (t *memoryTx) SaveName(_ context.Context, n *PersonName) error {
	if _, ok := t.state.names[n.ID]; !ok {
		return fmt.Errorf("saving name %d: %w", n.ID, ErrNotFound)
	}
	t.putName(n)
	return nil
}

func (t *memoryTx) putName(n *PersonName) {
	code := nameCode(n)
	if existing, ok := t.state.codes[n.ID]; ok {
		code.ID = existing.ID
	} else {
		code.ID = t.nextID()
	}
	n.Code = &code
	row := *n
	row.Code = nil
	t.state.names[n.ID] = row
	t.state.codes[n.ID] = code
}

func (t *memoryTx) CreateAddress(_ context.Context, a *PersonAddress) error {
	if _, ok := t.state.persons[a.PersonID]; !ok {
		return fmt.Errorf("creating address: %w", ErrNotFound)
	}
	a.ID = t.nextID()
	if a.DateCreated.IsZero() {
		a.DateCreated = time.Now().UTC()
	}
	t.state.addresses[a.ID] = *a
	return nil
}

func (t *memoryTx) SaveAddress(_ context.Context, a *PersonAddress) error {
	if _, ok := t.state.addresses[a.ID]; !ok {
		return fmt.Errorf("saving address %d: %w", a.ID, ErrNotFound)
	}
	t.state.addresses[a.ID] = *a
	return nil
}

func (t *memoryTx) CreateAttribute(_ context.Context, a *PersonAttribute) error {
	if _, ok := t.state.persons[a.PersonID]; !ok {
		return fmt.Errorf("creating attribute: %w", ErrNotFound)
	}
	a.ID = t.nextID()
	if a.DateCreated.IsZero() {
		a.DateCreated = time.Now().UTC()
	}
	t.state.attributes[a.ID] = *a
	return nil
}

func (t *memoryTx) SaveAttribute(_ context.Context, a *PersonAttribute) error {
	if _, ok := t.state.attributes[a.ID]; !ok {
		return fmt.Errorf("saving attribute %d: %w", a.ID, ErrNotFound)
	}
	t.state.attributes[a.ID] = *a
	return nil
}

func (t *memoryTx) CreatePatient(_ context.Context, p *Patient) error {
	if _, ok := t.state.persons[p.ID]; !ok {
		return fmt.Errorf("creating patient: %w", ErrNotFound)
	}
	if _, ok := t.state.patients[p.ID]; ok {
		return fmt.Errorf("patient %d already exists", p.ID)
	}
	if p.DateCreated.IsZero() {
		p.DateCreated = time.Now().UTC()
	}
	row := *p
	row.Identifiers = nil
	t.state.patients[p.ID] = row
	return nil
}

func (t *memoryTx) CreateIdentifier(_ context.Context, id *PatientIdentifier) error {
	if _, ok := t.state.patients[id.PatientID]; !ok {
		return fmt.Errorf("creating identifier: patient %d: %w", id.PatientID, ErrNotFound)
	}
	id.ID = t.nextID()
	if id.DateCreated.IsZero() {
		id.DateCreated = time.Now().UTC()
	}
	t.state.identifiers[id.ID] = *id
	return nil
}

func (t *memoryTx) Get(_ context.Context, id uint) (*Person, error) {
	row, ok := t.state.persons[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := t.assemble(row)
	return &p, nil
}

func (t *memoryTx) assemble(p Person) Person {
	for _, n := range t.state.names {
		if n.PersonID == p.ID && !n.Voided {
			if code, ok := t.state.codes[n.ID]; ok {
				c := code
				n.Code = &c
			}
			p.Names = append(p.Names, n)
		}
	}
	sort.Slice(p.Names, func(i, j int) bool {
		return preferredFirst(p.Names[i].Preferred, p.Names[j].Preferred, p.Names[i].ID, p.Names[j].ID)
	})

	for _, a := range t.state.addresses {
		if a.PersonID == p.ID && !a.Voided {
			p.Addresses = append(p.Addresses, a)
		}
	}
	sort.Slice(p.Addresses, func(i, j int) bool {
		return preferredFirst(p.Addresses[i].Preferred, p.Addresses[j].Preferred, p.Addresses[i].ID, p.Addresses[j].ID)
	})

	for _, a := range t.state.attributes {
		if a.PersonID == p.ID {
			p.Attributes = append(p.Attributes, a)
		}
	}
	sort.Slice(p.Attributes, func(i, j int) bool { return p.Attributes[i].ID < p.Attributes[j].ID })

	if patient, ok := t.state.patients[p.ID]; ok {
		for _, ident := range t.state.identifiers {
			if ident.PatientID == patient.ID && !ident.Voided {
				patient.Identifiers = append(patient.Identifiers, ident)
			}
		}
		sort.Slice(patient.Identifiers, func(i, j int) bool {
			return patient.Identifiers[i].ID < patient.Identifiers[j].ID
		})
		p.Patient = &patient
	}
	return p
}

func (t *memoryTx) FindByIdentifier(_ context.Context, identifier string) ([]Person, error) {
	seen := map[uint]bool{}
	var ids []uint
	for _, ident := range t.state.identifiers {
		if ident.Voided || ident.Identifier != identifier || seen[ident.PatientID] {
			continue
		}
		if _, ok := t.state.persons[ident.PatientID]; !ok {
			continue
		}
		seen[ident.PatientID] = true
		ids = append(ids, ident.PatientID)
	}
	return t.load(ids), nil
}

func (t *memoryTx) FindCandidates(_ context.Context, f CandidateFilter) ([]Person, error) {
	var ids []uint
	for id, p := range t.state.persons {
		if p.Voided || p.Gender != f.Gender {
			continue
		}
		if patient, ok := t.state.patients[id]; ok && patient.Voided {
			continue
		}
		if !t.anyNameMatches(id, f) {
			continue
		}
		ids = append(ids, id)
	}
	return t.load(ids), nil
}

func (t *memoryTx) anyNameMatches(personID uint, f CandidateFilter) bool {
	if strings.TrimSpace(f.GivenName) == "" && strings.TrimSpace(f.FamilyName) == "" {
		return true
	}
	for _, n := range t.state.names {
		if n.PersonID != personID || n.Voided {
			continue
		}
		code := t.state.codes[n.ID]
		if fieldMatches(f.GivenName, f.GivenNameCode, n.GivenName, code.GivenNameCode) &&
			fieldMatches(f.FamilyName, f.FamilyNameCode, n.FamilyName, code.FamilyNameCode) {
			return true
		}
	}
	return false
}

func fieldMatches(query, queryCode, stored, storedCode string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(query), strings.TrimSpace(stored)) ||
		(queryCode != "" && queryCode == storedCode)
}

func (t *memoryTx) load(ids []uint) []Person {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Person, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.assemble(t.state.persons[id]))
	}
	return out
}

func preferredFirst(pi, pj bool, idi, idj uint) bool {
	if pi != pj {
		return pi
	}
	return idi < idj
}

func nameCode(n *PersonName) PersonNameCode {
	return PersonNameCode{
		PersonNameID:    n.ID,
		GivenNameCode:   phonetic.Soundex(n.GivenName),
		FamilyNameCode:  phonetic.Soundex(n.FamilyName),
		FamilyName2Code: phonetic.Soundex(n.FamilyName2),
	}
}
