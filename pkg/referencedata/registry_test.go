package referencedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesByNameAndKey(t *testing.T) {
	r := FromSeed(DefaultSeed())

	occupation := r.AttributeType("Occupation")
	assert.Equal(t, AttributeOccupation, occupation.Key)
	assert.NotZero(t, occupation.ID)
	assert.Equal(t, occupation, r.AttributeType("  occupation "))
	assert.Equal(t, occupation, r.AttributeTypeByKey(AttributeOccupation))

	national := r.IdentifierType(NationalIDName)
	assert.Equal(t, IdentifierNationalID, national.Key)
	byID, ok := r.IdentifierTypeByID(national.ID)
	require.True(t, ok)
	assert.Equal(t, national, byID)
}

func TestRegistryFallsBackToUnknown(t *testing.T) {
	r := FromSeed(DefaultSeed())

	unknownAttr := r.AttributeType(UnknownName)
	assert.Equal(t, AttributeUnknown, unknownAttr.Key)
	assert.Equal(t, unknownAttr, r.AttributeType("Favourite Colour"))
	assert.Equal(t, unknownAttr, r.AttributeTypeByKey("favourite_colour"))

	unknownID := r.IdentifierType(UnknownName)
	assert.Equal(t, unknownID, r.IdentifierType("ARV Number"))
	assert.Equal(t, unknownID, r.IdentifierTypeByKey("arv_number"))

	_, ok := r.LookupAttributeType("Favourite Colour")
	assert.False(t, ok)
}

func TestNewRegistryRequiresUnknownTypes(t *testing.T) {
	_, err := NewRegistry(
		[]AttributeType{{ID: 1, Key: AttributeRace, Name: "Race"}},
		[]IdentifierType{{ID: 1, Key: IdentifierUnknown, Name: UnknownName}},
	)
	assert.ErrorIs(t, err, ErrMissingUnknownType)

	_, err = NewRegistry(
		[]AttributeType{{ID: 1, Key: AttributeUnknown, Name: UnknownName}},
		nil,
	)
	assert.ErrorIs(t, err, ErrMissingUnknownType)
}

func TestFromSeedAddsMissingSentinels(t *testing.T) {
	r := FromSeed(Seed{
		AttributeTypes: []AttributeType{{Key: AttributeRace, Name: "Race"}},
	})
	assert.Equal(t, AttributeUnknown, r.AttributeType("Occupation").Key)
	assert.Equal(t, IdentifierUnknown, r.IdentifierType(NationalIDName).Key)
}

func TestLoadSeedFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	content := `
attribute_types:
  - key: occupation
    name: Occupation
  - key: religion
    name: Religion
identifier_types:
  - key: national_id
    name: National id
  - key: arv_number
    name: ARV Number
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.AttributeTypes, 3)
	assert.Len(t, seed.IdentifierTypes, 3)

	r := FromSeed(seed)
	assert.Equal(t, AttributeKey("religion"), r.AttributeType("Religion").Key)
	assert.Equal(t, IdentifierKey("arv_number"), r.IdentifierType("ARV Number").Key)
}

func TestLoadSeedDefaultsAndErrors(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSeed(), seed)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("{}\n"), 0o600))
	_, err = LoadSeed(empty)
	assert.Error(t, err)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Cell Phone Number", DisplayName("cell_phone_number"))
	assert.Equal(t, "Landmark Or Plot Number", DisplayName("landmark_or_plot_number"))
	assert.Equal(t, "Occupation", DisplayName("occupation"))
}
