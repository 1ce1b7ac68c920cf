package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/registry/pkg/common/models"
)

func sample() models.Demographics {
	return models.Demographics{
		Gender:     "F",
		BirthYear:  "1990",
		BirthMonth: "3",
		BirthDay:   "Unknown",
		Names:      models.Names{GivenName: "Mary", FamilyName: "Banda"},
		Addresses:  models.Address{CityVillage: "Area 25"},
		Patient: &models.PatientSection{Identifiers: models.StringMap{
			"National id": "P170000000013",
			"ARV Number":  "",
			"Legacy Lab#": "L-9",
		}},
		Occupation:        "Clerk",
		CellPhoneNumber:   "0999123456",
		HomePhoneNumber:   "01234567",
		OfficePhoneNumber: "01765432",
		PlaceOfBirth:      "Zomba",
		Race:              "African",
	}
}

func TestToWireNestsAttributesByLabel(t *testing.T) {
	w := ToWire(sample())

	assert.Equal(t, "Female", w.Gender)
	assert.Equal(t, models.StringMap{
		"Place Of Birth":      "Zomba",
		"Occupation":          "Clerk",
		"Cell Phone Number":   "0999123456",
		"Office Phone Number": "01765432",
		"Home Phone Number":   "01234567",
		"Race":                "African",
	}, w.Attributes)
	assert.NotContains(t, w.Attributes, "Citizenship")
	assert.Equal(t, sample().Patient.Identifiers, w.Patient.Identifiers)
}

func TestToWireGenderDefaultsToMale(t *testing.T) {
	for _, g := range []string{"M", "Male", "", "U", "Other"} {
		assert.Equal(t, "Male", WireGender(g), g)
	}
	assert.Equal(t, "Female", WireGender("F"))
	assert.Equal(t, "Female", WireGender("Female"))
}

func TestLocalGenderPassesUnknownThrough(t *testing.T) {
	assert.Equal(t, "F", LocalGender("Female"))
	assert.Equal(t, "M", LocalGender("Male"))
	assert.Equal(t, "U", LocalGender("U"))
	assert.Equal(t, "F", LocalGender("F"))
}

func TestFromWirePromotesAttributes(t *testing.T) {
	body := `{
		"gender": "Male",
		"birth_year": 1980,
		"birth_month": "Unknown",
		"birth_day": "Unknown",
		"names": {"given_name": "John", "family_name": "Phiri"},
		"addresses": {"city_village": "Ndirande"},
		"attributes": {
			"occupation": "Driver",
			"cell_phone_number": "0888",
			"home_phone_number": "",
			"office_phone_number": "0111",
			"religion": "None"
		},
		"patient": {"identifiers": {"National id": "ABC123"}}
	}`
	var w models.WireRecord
	require.NoError(t, json.Unmarshal([]byte(body), &w))

	d := FromWire(w)

	assert.Equal(t, "M", d.Gender)
	assert.Equal(t, models.FlexString("1980"), d.BirthYear)
	assert.Equal(t, "Driver", d.Occupation)
	assert.Equal(t, "0888", d.CellPhoneNumber)
	assert.Equal(t, "", d.HomePhoneNumber)
	assert.Equal(t, "0111", d.OfficePhoneNumber)
	assert.Equal(t, models.StringMap{"religion": "None"}, d.Attributes)
	assert.Equal(t, "ABC123", d.Identifier("National id"))

	// the wire record itself is left untouched
	assert.Contains(t, w.Attributes, "occupation")
}

func TestFromWireWithoutAttributes(t *testing.T) {
	d := FromWire(models.WireRecord{Gender: "Female"})
	assert.Equal(t, "F", d.Gender)
	assert.Nil(t, d.Attributes)
	assert.Empty(t, d.Occupation)
	assert.Nil(t, d.Patient)
}

func TestRoundTripPromotedFieldsAndGender(t *testing.T) {
	inputs := []models.Demographics{
		sample(),
		{Gender: "M", Occupation: "Farmer"},
		{Gender: "F", CellPhoneNumber: "1", HomePhoneNumber: "2", OfficePhoneNumber: "3"},
		{Gender: "M"},
	}
	for _, x := range inputs {
		got := FromWire(ToWire(x))
		assert.Equal(t, x.Gender, got.Gender)
		assert.Equal(t, x.Occupation, got.Occupation)
		assert.Equal(t, x.CellPhoneNumber, got.CellPhoneNumber)
		assert.Equal(t, x.HomePhoneNumber, got.HomePhoneNumber)
		assert.Equal(t, x.OfficePhoneNumber, got.OfficePhoneNumber)
		assert.Equal(t, x.Names, got.Names)
		assert.Equal(t, x.Patient, got.Patient)
	}
}
