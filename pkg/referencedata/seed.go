package referencedata

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Seed struct {
	AttributeTypes  []AttributeType  `yaml:"attribute_types"`
	IdentifierTypes []IdentifierType `yaml:"identifier_types"`
}

// LoadSeed reads a YAML seed file. An empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultSeed(), err
	}

	var seed Seed
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return Seed{}, err
	}
	if len(seed.AttributeTypes) == 0 && len(seed.IdentifierTypes) == 0 {
		return Seed{}, errors.New("reference data seed is empty")
	}
	return seed.withUnknown(), nil
}

func DefaultSeed() Seed {
	return Seed{
		AttributeTypes: []AttributeType{
			{Key: AttributePlaceOfBirth, Name: "Place Of Birth"},
			{Key: AttributeLandmarkOrPlotNumber, Name: "Landmark Or Plot Number"},
			{Key: AttributeOccupation, Name: "Occupation"},
			{Key: AttributeCellPhoneNumber, Name: "Cell Phone Number"},
			{Key: AttributeOfficePhoneNumber, Name: "Office Phone Number"},
			{Key: AttributeHomePhoneNumber, Name: "Home Phone Number"},
			{Key: AttributeCitizenship, Name: "Citizenship"},
			{Key: AttributeRace, Name: "Race"},
			{Key: AttributeUnknown, Name: UnknownName},
		},
		IdentifierTypes: []IdentifierType{
			{Key: IdentifierNationalID, Name: NationalIDName},
			{Key: IdentifierUnknown, Name: UnknownName},
		},
	}
}

// withUnknown appends the sentinel entries when a seed file leaves them out.
func (s Seed) withUnknown() Seed {
	hasAttr, hasID := false, false
	for _, t := range s.AttributeTypes {
		if t.Key == AttributeUnknown {
			hasAttr = true
		}
	}
	for _, t := range s.IdentifierTypes {
		if t.Key == IdentifierUnknown {
			hasID = true
		}
	}
	if !hasAttr {
		s.AttributeTypes = append(s.AttributeTypes, AttributeType{Key: AttributeUnknown, Name: UnknownName})
	}
	if !hasID {
		s.IdentifierTypes = append(s.IdentifierTypes, IdentifierType{Key: IdentifierUnknown, Name: UnknownName})
	}
	return s
}
