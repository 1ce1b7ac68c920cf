package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemographicsAcceptsMixedScalarTypes(t *testing.T) {
	body := `{
		"gender": "Female",
		"birth_year": 1990,
		"birth_month": "March",
		"birth_day": null,
		"names": {"given_name": "Mary", "family_name": "Banda"},
		"attributes": {"occupation": "Clerk", "plot": 42},
		"patient": {"identifiers": {"National id": "P1234", "Old id": ""}}
	}`

	var d Demographics
	require.NoError(t, json.Unmarshal([]byte(body), &d))

	assert.Equal(t, FlexString("1990"), d.BirthYear)
	assert.Equal(t, FlexString("March"), d.BirthMonth)
	assert.True(t, d.BirthDay.Blank())
	assert.Equal(t, "42", d.Attributes["plot"])
	assert.Equal(t, "P1234", d.Identifier("National id"))
	assert.Equal(t, "", d.Identifier("Old id"))
	assert.True(t, d.HasBirthFields())
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var f FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &f))
}

func TestParseOutcome(t *testing.T) {
	o, ok := ParseOutcome("timeout")
	assert.True(t, ok)
	assert.Equal(t, OutcomeTimeout, o)

	o, ok = ParseOutcome(" creationfailed ")
	assert.True(t, ok)
	assert.Equal(t, OutcomeCreationFailed, o)

	_, ok = ParseOutcome("person")
	assert.False(t, ok)
}

func TestForcesEstimate(t *testing.T) {
	var d Demographics
	require.NoError(t, json.Unmarshal([]byte(`{"birthdate_estimated": true}`), &d))
	assert.True(t, d.ForcesEstimate())

	require.NoError(t, json.Unmarshal([]byte(`{"birthdate_estimated": "false"}`), &d))
	assert.False(t, d.ForcesEstimate())
}
