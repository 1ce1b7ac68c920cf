package person

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/registry/pkg/birthdate"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/translator"
)

// Builder writes a normalized demographics payload into the person graph.
type Builder struct {
	store Store
	types *referencedata.Registry
	now   func() time.Time
}

func NewBuilder(store Store, types *referencedata.Registry) *Builder {
	return &Builder{store: store, types: types, now: time.Now}
}

// Materialize creates, in this order: the person with its birthdate, one
// name, the address when given, the non-blank attribute fields and the
// patient with its non-blank identifiers. Unresolved type names fall back to
// "Unknown id". Nothing is kept when a step fails.
func (b *Builder) Materialize(ctx context.Context, d models.Demographics) (*Person, error) {
	var id uint
	err := b.store.WithinTx(ctx, func(tx Store) error {
		p, err := b.build(ctx, tx, d)
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.store.Get(ctx, id)
}

func (b *Builder) build(ctx context.Context, tx Store, d models.Demographics) (*Person, error) {
	now := b.now().UTC()
	p := &Person{
		UUID:        uuid.New().String(),
		Gender:      translator.LocalGender(strings.TrimSpace(d.Gender)),
		DateCreated: now,
		DateChanged: now,
	}
	if err := tx.CreatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}

	birth, err := resolveBirthdate(d, now)
	if err != nil {
		return nil, err
	}
	setBirthdate(p, birth)
	if err := tx.SavePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("saving birthdate: %w", err)
	}

	name := &PersonName{
		PersonID:    p.ID,
		Preferred:   true,
		GivenName:   strings.TrimSpace(d.Names.GivenName),
		FamilyName:  strings.TrimSpace(d.Names.FamilyName),
		FamilyName2: strings.TrimSpace(d.Names.FamilyName2),
	}
	if err := tx.CreateName(ctx, name); err != nil {
		return nil, fmt.Errorf("creating name: %w", err)
	}

	if !d.Addresses.IsEmpty() {
		address := &PersonAddress{
			PersonID:       p.ID,
			Preferred:      true,
			CityVillage:    strings.TrimSpace(d.Addresses.CityVillage),
			CountyDistrict: strings.TrimSpace(d.Addresses.CountyDistrict),
		}
		if err := tx.CreateAddress(ctx, address); err != nil {
			return nil, fmt.Errorf("creating address: %w", err)
		}
	}

	for _, field := range translator.Fields {
		value := fieldValue(d, field)
		if value == "" {
			continue
		}
		attr := &PersonAttribute{
			PersonID: p.ID,
			TypeID:   b.types.AttributeType(field.Label).ID,
			Value:    value,
		}
		if err := tx.CreateAttribute(ctx, attr); err != nil {
			return nil, fmt.Errorf("creating %s attribute: %w", field.Key, err)
		}
	}

	if d.Patient != nil {
		if err := tx.CreatePatient(ctx, &Patient{ID: p.ID}); err != nil {
			return nil, fmt.Errorf("creating patient: %w", err)
		}
		for _, typeName := range sortedKeys(d.Patient.Identifiers) {
			value := strings.TrimSpace(d.Patient.Identifiers[typeName])
			if value == "" {
				continue
			}
			ident := &PatientIdentifier{
				PatientID:  p.ID,
				Identifier: value,
				TypeID:     b.types.IdentifierType(typeName).ID,
			}
			if err := tx.CreateIdentifier(ctx, ident); err != nil {
				return nil, fmt.Errorf("creating %s identifier: %w", typeName, err)
			}
		}
	}
	return p, nil
}

// resolveBirthdate estimates from age_estimate when the year is "Unknown" or
// only an age was given, and normalizes the date parts otherwise.
func resolveBirthdate(d models.Demographics, now time.Time) (birthdate.Birthdate, error) {
	var (
		birth birthdate.Birthdate
		err   error
	)
	year := d.BirthYear.String()
	if year == birthdate.Unknown || (year == "" && !d.AgeEstimate.Blank()) {
		birth, err = estimateFromAge(d.AgeEstimate, now)
	} else {
		birth, err = birthdate.Normalize(year, d.BirthMonth.String(), d.BirthDay.String())
	}
	if err != nil {
		return birthdate.Birthdate{}, err
	}
	if d.ForcesEstimate() {
		birth.Estimated = true
	}
	return birth, nil
}

func estimateFromAge(age models.FlexString, now time.Time) (birthdate.Birthdate, error) {
	n, err := strconv.Atoi(age.String())
	if err != nil || n < 0 {
		return birthdate.Birthdate{}, fmt.Errorf("age estimate %q: %w", age.String(), birthdate.ErrInvalidInput)
	}
	return birthdate.FromAge(n, now), nil
}

func setBirthdate(p *Person, b birthdate.Birthdate) {
	date := b.Date
	p.Birthdate = &date
	p.BirthdateEstimated = b.Estimated
}

// fieldValue prefers the top-level field and falls back to the attributes
// bucket, where peers may leave fields they do not promote.
func fieldValue(d models.Demographics, field translator.AttributeField) string {
	if v := field.Value(d); v != "" {
		return v
	}
	for _, k := range []string{field.Key, field.Label} {
		if v := strings.TrimSpace(d.Attributes[k]); v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m models.StringMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
