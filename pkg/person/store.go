package person

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("person not found")

// CandidateFilter narrows the fuzzy search before names are compared on the
// preferred name. Blank name fields are not applied.
type CandidateFilter struct {
	Gender         string
	GivenName      string
	FamilyName     string
	GivenNameCode  string
	FamilyNameCode string
}

// Store persists the person graph. Rows are written one at a time so the
// builder controls creation order; WithinTx makes a sequence atomic.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	CreatePerson(ctx context.Context, p *Person) error
	SavePerson(ctx context.Context, p *Person) error
	CreateName(ctx context.Context, n *PersonName) error
	SaveName(ctx context.Context, n *PersonName) error
	CreateAddress(ctx context.Context, a *PersonAddress) error
	SaveAddress(ctx context.Context, a *PersonAddress) error
	CreateAttribute(ctx context.Context, a *PersonAttribute) error
	SaveAttribute(ctx context.Context, a *PersonAttribute) error
	CreatePatient(ctx context.Context, p *Patient) error
	CreateIdentifier(ctx context.Context, id *PatientIdentifier) error

	// Get loads a person with non-voided names and addresses (preferred
	// first), attributes and the patient with its non-voided identifiers.
	Get(ctx context.Context, id uint) (*Person, error)
	FindByIdentifier(ctx context.Context, identifier string) ([]Person, error)
	// FindCandidates returns non-voided persons whose patient is non-voided or
	// absent, ordered by id.
	FindCandidates(ctx context.Context, f CandidateFilter) ([]Person, error)
}
