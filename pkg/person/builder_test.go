package person

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/registry/pkg/birthdate"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/referencedata"
)

func TestMaterializeCreatesGraphInOrder(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	d := models.Demographics{
		Gender:     "Female",
		BirthYear:  "1990",
		BirthMonth: "March",
		BirthDay:   "Unknown",
		Names:      models.Names{GivenName: "Mary", FamilyName: "Banda"},
		Addresses:  models.Address{CityVillage: "Area 25", CountyDistrict: "Lilongwe"},

		PlaceOfBirth:    "Zomba",
		Occupation:      "Clerk",
		CellPhoneNumber: "0999123456",
		HomePhoneNumber: "  ",
		Race:            "African",
		Patient: &models.PatientSection{Identifiers: models.StringMap{
			"National id": "P170000000013",
			"ARV Number":  "ARV-1",
			"Legacy":      "",
		}},
	}

	p := env.create(t, d)

	assert.Equal(t, GenderFemale, p.Gender)
	assert.NotEmpty(t, p.UUID)
	require.NotNil(t, p.Birthdate)
	assert.Equal(t, time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC), *p.Birthdate)
	assert.True(t, p.BirthdateEstimated)

	require.Len(t, p.Names, 1)
	assert.Equal(t, "Mary", p.Names[0].GivenName)
	assert.True(t, p.Names[0].Preferred)
	require.Len(t, p.Addresses, 1)
	assert.Equal(t, "Area 25", p.Addresses[0].CityVillage)

	wantTypes := []uint{
		env.types.AttributeType("Place Of Birth").ID,
		env.types.AttributeType("Occupation").ID,
		env.types.AttributeType("Cell Phone Number").ID,
		env.types.AttributeType("Race").ID,
	}
	var gotTypes []uint
	var gotValues []string
	for _, a := range p.Attributes {
		gotTypes = append(gotTypes, a.TypeID)
		gotValues = append(gotValues, a.Value)
	}
	assert.Equal(t, wantTypes, gotTypes)
	assert.Equal(t, []string{"Zomba", "Clerk", "0999123456", "African"}, gotValues)

	require.NotNil(t, p.Patient)
	assert.Equal(t, p.ID, p.Patient.ID)
	require.Len(t, p.Patient.Identifiers, 2)
	assert.Equal(t, "ARV-1", p.Patient.Identifiers[0].Identifier)
	assert.Equal(t, env.types.IdentifierType(referencedata.UnknownName).ID, p.Patient.Identifiers[0].TypeID)
	assert.Equal(t, "P170000000013", p.Patient.Identifiers[1].Identifier)
	assert.Equal(t, env.types.IdentifierType(referencedata.NationalIDName).ID, p.Patient.Identifiers[1].TypeID)
}

func TestMaterializeSkipsEmptySections(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	p := env.create(t, demographics("M", "John", "Phiri", ""))

	assert.Len(t, p.Names, 1)
	assert.Empty(t, p.Addresses)
	assert.Empty(t, p.Attributes)
	assert.Nil(t, p.Patient)
	assert.False(t, p.BirthdateEstimated)
}

func TestMaterializeFallsBackToUnknownAttributeType(t *testing.T) {
	store := NewMemoryStore()
	types := referencedata.FromSeed(referencedata.Seed{
		AttributeTypes: []referencedata.AttributeType{
			{Key: referencedata.AttributeOccupation, Name: "Occupation"},
		},
	})
	b := newTestBuilder(store, types)

	d := demographics("M", "John", "Phiri", "")
	d.Occupation = "Driver"
	d.Race = "African"
	p, err := b.Materialize(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, p.Attributes, 2)
	assert.Equal(t, types.AttributeType("Occupation").ID, p.Attributes[0].TypeID)
	assert.Equal(t, types.AttributeType(referencedata.UnknownName).ID, p.Attributes[1].TypeID)
	assert.Equal(t, "African", p.Attributes[1].Value)
}

func TestMaterializeEstimatesFromAge(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	d := demographics("F", "Grace", "Mbewe", "")
	d.BirthYear = birthdate.Unknown
	d.BirthMonth, d.BirthDay = "", ""
	d.AgeEstimate = "25"

	p := env.create(t, d)

	require.NotNil(t, p.Birthdate)
	assert.Equal(t, time.Date(1999, time.July, 1, 0, 0, 0, 0, time.UTC), *p.Birthdate)
	assert.True(t, p.BirthdateEstimated)
	age, ok := p.Age(fixedNow)
	require.True(t, ok)
	assert.Equal(t, 25, age)
	assert.Equal(t, "??/???/1999", p.BirthdateFormatted())
}

func TestMaterializeAgeOnly(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	d := demographics("F", "Grace", "Mbewe", "")
	d.BirthYear, d.BirthMonth, d.BirthDay = "", "", ""
	d.AgeEstimate = "40"

	p := env.create(t, d)
	assert.Equal(t, 1984, p.Birthdate.Year())
}

func TestMaterializeForcedEstimate(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	d := demographics("F", "Grace", "Mbewe", "")
	d.BirthdateEstimated = "true"

	p := env.create(t, d)
	assert.True(t, p.BirthdateEstimated)
	assert.Equal(t, 12, p.Birthdate.Day())
}

func TestMaterializeReadsUnpromotedFieldsFromBucket(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	d := demographics("M", "John", "Phiri", "")
	d.Attributes = models.StringMap{"Place Of Birth": "Blantyre", "religion": "None"}

	p := env.create(t, d)
	require.Len(t, p.Attributes, 1)
	assert.Equal(t, env.types.AttributeType("Place Of Birth").ID, p.Attributes[0].TypeID)
	assert.Equal(t, "Blantyre", p.Attributes[0].Value)
}

func TestMaterializeInvalidBirthdateRollsBack(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	cases := []models.Demographics{
		{Gender: "M", Names: models.Names{GivenName: "No", FamilyName: "Year"}},
		{Gender: "M", BirthYear: "1990", BirthMonth: "2", BirthDay: "30"},
		{Gender: "M", BirthYear: birthdate.Unknown, AgeEstimate: "about forty"},
	}
	for _, d := range cases {
		_, err := env.builder.Materialize(context.Background(), d)
		assert.ErrorIs(t, err, birthdate.ErrInvalidInput)
		assert.True(t, IsValidationError(err))
	}

	people, err := env.store.FindCandidates(context.Background(), CandidateFilter{Gender: "M"})
	require.NoError(t, err)
	assert.Empty(t, people)
}
