package person

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/observability/metrics"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/translator"
)

const (
	EventPersonCreated = "person.created"
	EventPersonSynced  = "person.synced"
	EventLookup        = "lookup"

	eventSource = "demographics-registry"

	defaultFetchTimeout = 30 * time.Second
)

var ErrSyncInProgress = errors.New("remote sync already in progress for identifier")

// RemoteRegistry is the peer registry as seen by the service.
type RemoteRegistry interface {
	Fetch(ctx context.Context, identifier string) (*Person, error)
	Push(ctx context.Context, d models.Demographics) (models.PushResult, error)
}

// Locker serializes remote fetches of one identifier across instances.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Form is a parsed create request: either demographics or a failure outcome
// handed over from an earlier remote step.
type Form struct {
	Outcome      models.Outcome
	Demographics models.Demographics
}

// CreateResult carries the created person, or the outcome passed through
// instead of creating one.
type CreateResult struct {
	Person  *Person        `json:"person,omitempty"`
	Outcome models.Outcome `json:"outcome,omitempty"`
}

type Service struct {
	store    Store
	types    *referencedata.Registry
	resolver *Resolver
	builder  *Builder
	remote   RemoteRegistry
	locker   Locker
	events   EventPublisher
	flight   singleflight.Group

	fetchTimeout time.Duration
}

// NewService wires the person operations. remote, locker and events are
// optional.
func NewService(store Store, types *referencedata.Registry, builder *Builder, remote RemoteRegistry, locker Locker, events EventPublisher) *Service {
	if builder == nil {
		builder = NewBuilder(store, types)
	}
	return &Service{
		store:    store,
		types:    types,
		resolver: NewResolver(store),
		builder:  builder,
		remote:   remote,
		locker:   locker,
		events:   events,

		fetchTimeout: defaultFetchTimeout,
	}
}

// SetFetchTimeout bounds a shared remote fetch. The fetch outlives the
// caller that started it, so it cannot rely on that caller's context.
func (s *Service) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		s.fetchTimeout = d
	}
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) Types() *referencedata.Registry {
	return s.types
}

// ParseForm accepts the failure literals "timeout" and "creationfailed"
// (bare or as a JSON string) and demographics either at the top level or
// wrapped in "person".
func ParseForm(body []byte) (Form, error) {
	trimmed := bytes.TrimSpace(body)
	if outcome, ok := models.ParseOutcome(string(trimmed)); ok {
		return Form{Outcome: outcome}, nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var literal string
		if err := json.Unmarshal(trimmed, &literal); err == nil {
			if outcome, ok := models.ParseOutcome(literal); ok {
				return Form{Outcome: outcome}, nil
			}
		}
		return Form{}, invalid("unexpected form literal %s: %w", trimmed, errMalformedForm)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Form{}, invalid("decoding form: %v: %w", err, errMalformedForm)
	}
	if inner, ok := probe["person"]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '{' {
		trimmed = inner
	}

	var d models.Demographics
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return Form{}, invalid("decoding demographics: %v: %w", err, errMalformedForm)
	}
	// the person_id of an update may sit next to the wrapped record
	if d.PersonID == 0 {
		if raw, ok := probe["person_id"]; ok {
			var id models.FlexString
			if err := json.Unmarshal(raw, &id); err == nil {
				if n, err := strconv.ParseUint(id.String(), 10, 64); err == nil {
					d.PersonID = uint(n)
				}
			}
		}
	}
	return Form{Demographics: d}, nil
}

// CreateFromForm passes failure outcomes through and materializes anything
// else.
func (s *Service) CreateFromForm(ctx context.Context, form Form) (CreateResult, error) {
	if form.Outcome != "" {
		metrics.ObserveRegistration(string(form.Outcome))
		return CreateResult{Outcome: form.Outcome}, nil
	}

	p, err := s.builder.Materialize(ctx, form.Demographics)
	if err != nil {
		metrics.ObserveRegistration("failed")
		return CreateResult{}, err
	}
	metrics.ObserveRegistration("created")
	s.publish(ctx, EventPersonCreated, p, nil)

	logger.Log.WithFields(map[string]interface{}{
		"person_id": p.ID,
		"uuid":      p.UUID,
	}).Info("person created")
	return CreateResult{Person: p}, nil
}

// Register pushes a new record to the peer and creates the local copy from
// what the peer answered. Without a peer the record is created locally.
func (s *Service) Register(ctx context.Context, d models.Demographics) (CreateResult, error) {
	if s.remote == nil {
		return s.CreateFromForm(ctx, Form{Demographics: d})
	}

	res, err := s.remote.Push(ctx, d)
	if err != nil {
		return CreateResult{}, err
	}
	switch {
	case res.Failed():
		return s.CreateFromForm(ctx, Form{Outcome: res.Outcome})
	case res.Empty():
		logger.Log.Warn("peer accepted registration without returning a person, creating locally")
		return s.CreateFromForm(ctx, Form{Demographics: d})
	}

	var envelope models.WireEnvelope
	if err := json.Unmarshal(res.Payload, &envelope); err != nil {
		logger.Log.WithError(err).Warn("unreadable peer registration response")
		return s.CreateFromForm(ctx, Form{Outcome: models.OutcomeCreationFailed})
	}
	return s.CreateFromForm(ctx, Form{Demographics: translator.FromWire(envelope.Person)})
}

// UpdateDemographics recomputes the birthdate when birth fields are given,
// updates gender and the first name and address, and upserts attributes by
// type.
func (s *Service) UpdateDemographics(ctx context.Context, d models.Demographics) (*Person, error) {
	if d.PersonID == 0 {
		return nil, ValidationError{reason: errMissingPerson}
	}

	err := s.store.WithinTx(ctx, func(tx Store) error {
		p, err := tx.Get(ctx, d.PersonID)
		if err != nil {
			return err
		}

		if d.HasBirthFields() {
			birth, err := resolveBirthdate(d, s.builder.now().UTC())
			if err != nil {
				return err
			}
			setBirthdate(p, birth)
		}
		if gender := strings.TrimSpace(d.Gender); gender != "" {
			p.Gender = translator.LocalGender(gender)
		}
		if err := tx.SavePerson(ctx, p); err != nil {
			return fmt.Errorf("saving person: %w", err)
		}

		if err := updateName(ctx, tx, p, d.Names); err != nil {
			return err
		}
		if err := updateAddress(ctx, tx, p, d.Addresses); err != nil {
			return err
		}
		return s.upsertAttributes(ctx, tx, p, d)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, d.PersonID)
}

func updateName(ctx context.Context, tx Store, p *Person, names models.Names) error {
	if strings.TrimSpace(names.GivenName) == "" && strings.TrimSpace(names.FamilyName) == "" && strings.TrimSpace(names.FamilyName2) == "" {
		return nil
	}
	current, ok := p.PreferredName()
	if !ok {
		current = PersonName{PersonID: p.ID, Preferred: true}
	}
	if v := strings.TrimSpace(names.GivenName); v != "" {
		current.GivenName = v
	}
	if v := strings.TrimSpace(names.FamilyName); v != "" {
		current.FamilyName = v
	}
	if v := strings.TrimSpace(names.FamilyName2); v != "" {
		current.FamilyName2 = v
	}
	if !ok {
		return tx.CreateName(ctx, &current)
	}
	return tx.SaveName(ctx, &current)
}

func updateAddress(ctx context.Context, tx Store, p *Person, address models.Address) error {
	if address.IsEmpty() {
		return nil
	}
	var current PersonAddress
	found := false
	for _, a := range p.Addresses {
		if !a.Voided {
			current, found = a, true
			break
		}
	}
	if !found {
		current = PersonAddress{PersonID: p.ID, Preferred: true}
	}
	if v := strings.TrimSpace(address.CityVillage); v != "" {
		current.CityVillage = v
	}
	if v := strings.TrimSpace(address.CountyDistrict); v != "" {
		current.CountyDistrict = v
	}
	if !found {
		return tx.CreateAddress(ctx, &current)
	}
	return tx.SaveAddress(ctx, &current)
}

// upsertAttributes resolves each attribute by its titleized name, falling back
// to "Unknown id", and overwrites the existing value of that type.
func (s *Service) upsertAttributes(ctx context.Context, tx Store, p *Person, d models.Demographics) error {
	values := map[string]string{}
	var order []string
	add := func(typeName, value string) {
		if _, seen := values[typeName]; !seen {
			order = append(order, typeName)
		}
		values[typeName] = value
	}
	for _, field := range translator.Fields {
		if v := field.Value(d); v != "" {
			add(field.Label, v)
		}
	}
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(referencedata.DisplayName(k), d.Attributes[k])
	}

	for _, typeName := range order {
		typeID := s.types.AttributeType(typeName).ID
		existing := -1
		for i, a := range p.Attributes {
			if !a.Voided && a.TypeID == typeID {
				existing = i
				break
			}
		}
		if existing >= 0 {
			attr := p.Attributes[existing]
			attr.Value = values[typeName]
			if err := tx.SaveAttribute(ctx, &attr); err != nil {
				return fmt.Errorf("updating %s: %w", typeName, err)
			}
			p.Attributes[existing] = attr
			continue
		}
		attr := PersonAttribute{PersonID: p.ID, TypeID: typeID, Value: values[typeName]}
		if err := tx.CreateAttribute(ctx, &attr); err != nil {
			return fmt.Errorf("creating %s: %w", typeName, err)
		}
		p.Attributes = append(p.Attributes, attr)
	}
	return nil
}

// FindOrFetch returns local matches for an identifier and otherwise pulls the
// record from the peer. Concurrent calls for one identifier share a single
// fetch in process and hold a lock across instances; the local search is
// repeated once the lock is held.
func (s *Service) FindOrFetch(ctx context.Context, identifier string) ([]Person, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ValidationError{reason: errors.New("identifier required")}
	}

	people, err := s.resolver.SearchByIdentifier(ctx, identifier)
	if err != nil || len(people) > 0 || s.remote == nil {
		return people, err
	}

	v, err, _ := s.flight.Do(identifier, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetchLocked(fetchCtx, identifier)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Person), nil
}

func (s *Service) fetchLocked(ctx context.Context, identifier string) ([]Person, error) {
	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, "registry:sync:"+identifier)
		if err != nil {
			return nil, fmt.Errorf("acquiring sync lock: %w", err)
		}
		if !acquired {
			return nil, ErrSyncInProgress
		}
		defer release()
	}

	people, err := s.resolver.SearchByIdentifier(ctx, identifier)
	if err != nil || len(people) > 0 {
		return people, err
	}

	p, err := s.remote.Fetch(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return []Person{}, nil
	}
	s.publish(ctx, EventPersonSynced, p, map[string]interface{}{"identifier": identifier})
	return []Person{*p}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, p *Person, extra map[string]interface{}) {
	if s.events == nil {
		return
	}
	data := map[string]interface{}{
		"person_id": p.ID,
		"uuid":      p.UUID,
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.events.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish person event")
	}
}
