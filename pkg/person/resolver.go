package person

import (
	"context"
	"strings"

	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/phonetic"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/translator"
)

// Resolver finds local persons by exact identifier, then by gender and
// phonetically matched preferred name.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Search returns the single identifier match when there is exactly one.
// Otherwise it falls through to the fuzzy search, which with no names given
// filters on gender alone. Results keep store order.
func (r *Resolver) Search(ctx context.Context, criteria models.SearchCriteria) ([]Person, error) {
	identifier := strings.TrimSpace(criteria.Identifier)
	if identifier != "" {
		people, err := r.store.FindByIdentifier(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if len(people) == 1 {
			return people, nil
		}
		logger.Log.WithFields(map[string]interface{}{
			"identifier": identifier,
			"matches":    len(people),
		}).Debug("identifier not unique, falling back to name search")
	}
	return r.fuzzy(ctx, criteria)
}

func (r *Resolver) SearchByIdentifier(ctx context.Context, identifier string) ([]Person, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	return r.store.FindByIdentifier(ctx, identifier)
}

// FindByDemographics looks up the national id first and only searches by
// name and gender when nothing carries it. Without names there is nothing to
// match on, so an identifier miss returns no one.
func (r *Resolver) FindByDemographics(ctx context.Context, d models.Demographics) ([]Person, error) {
	if nationalID := d.Identifier(referencedata.NationalIDName); nationalID != "" {
		people, err := r.SearchByIdentifier(ctx, nationalID)
		if err != nil {
			return nil, err
		}
		if len(people) > 0 {
			return people, nil
		}
	}
	criteria := models.SearchCriteria{
		Gender:     d.Gender,
		GivenName:  d.Names.GivenName,
		FamilyName: d.Names.FamilyName,
	}
	if !criteria.HasNames() {
		return nil, nil
	}
	return r.Search(ctx, criteria)
}

func (r *Resolver) fuzzy(ctx context.Context, criteria models.SearchCriteria) ([]Person, error) {
	filter := CandidateFilter{
		Gender:         translator.LocalGender(strings.TrimSpace(criteria.Gender)),
		GivenName:      strings.TrimSpace(criteria.GivenName),
		FamilyName:     strings.TrimSpace(criteria.FamilyName),
		GivenNameCode:  phonetic.Soundex(criteria.GivenName),
		FamilyNameCode: phonetic.Soundex(criteria.FamilyName),
	}
	candidates, err := r.store.FindCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]Person, 0, len(candidates))
	for _, p := range candidates {
		if preferredNameMatches(p, filter) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func preferredNameMatches(p Person, f CandidateFilter) bool {
	if f.GivenName == "" && f.FamilyName == "" {
		return true
	}
	name, ok := p.PreferredName()
	if !ok {
		return false
	}
	return nameMatches(f.GivenName, name.GivenName) && nameMatches(f.FamilyName, name.FamilyName)
}

func nameMatches(query, stored string) bool {
	if query == "" {
		return true
	}
	return phonetic.Match(query, strings.TrimSpace(stored))
}
