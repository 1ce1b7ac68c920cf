package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // person.created, person.synced, lookup
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// FlexString accepts JSON strings, numbers and null. Registry peers send
// birth_year as 1990 or "1990" and birth_day as 12 or "Unknown".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(trimmed, &b); err == nil {
		*f = FlexString(fmt.Sprintf("%t", b))
		return nil
	}
	return fmt.Errorf("unsupported value %s", string(trimmed))
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

func (f FlexString) Blank() bool {
	return f.String() == ""
}

// StringMap is a flat string bag tolerant of non-string JSON values.
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(data []byte) error {
	var raw map[string]FlexString
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		out[k] = string(v)
	}
	*m = out
	return nil
}

func (m StringMap) Clone() StringMap {
	if m == nil {
		return nil
	}
	out := make(StringMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type Names struct {
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	FamilyName2 string `json:"family_name2,omitempty"`
}

type Address struct {
	CityVillage    string `json:"city_village,omitempty"`
	CountyDistrict string `json:"county_district,omitempty"`
}

func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.CityVillage) == "" && strings.TrimSpace(a.CountyDistrict) == ""
}

type PatientSection struct {
	Identifiers StringMap `json:"identifiers,omitempty"`
}

// Demographics is the normalized payload accepted by registration, update
// and materialization of remote records.
type Demographics struct {
	PersonID           uint       `json:"person_id,omitempty"`
	Gender             string     `json:"gender"`
	BirthYear          FlexString `json:"birth_year,omitempty"`
	BirthMonth         FlexString `json:"birth_month,omitempty"`
	BirthDay           FlexString `json:"birth_day,omitempty"`
	AgeEstimate        FlexString `json:"age_estimate,omitempty"`
	BirthdateEstimated FlexString `json:"birthdate_estimated,omitempty"`

	Names      Names           `json:"names"`
	Addresses  Address         `json:"addresses"`
	Attributes StringMap       `json:"attributes,omitempty"`
	Patient    *PatientSection `json:"patient,omitempty"`

	PlaceOfBirth         string `json:"place_of_birth,omitempty"`
	LandmarkOrPlotNumber string `json:"landmark_or_plot_number,omitempty"`
	Occupation           string `json:"occupation,omitempty"`
	CellPhoneNumber      string `json:"cell_phone_number,omitempty"`
	OfficePhoneNumber    string `json:"office_phone_number,omitempty"`
	HomePhoneNumber      string `json:"home_phone_number,omitempty"`
	Citizenship          string `json:"citizenship,omitempty"`
	Race                 string `json:"race,omitempty"`
}

// HasBirthFields reports whether any birthdate input was supplied.
func (d Demographics) HasBirthFields() bool {
	return !d.BirthYear.Blank() || !d.BirthMonth.Blank() || !d.BirthDay.Blank() || !d.AgeEstimate.Blank()
}

// ForcesEstimate mirrors the form checkbox that marks any birthdate as estimated.
func (d Demographics) ForcesEstimate() bool {
	return d.BirthdateEstimated.String() == "true"
}

// Identifier returns the identifier of the given type, or "".
func (d Demographics) Identifier(typeName string) string {
	if d.Patient == nil {
		return ""
	}
	return strings.TrimSpace(d.Patient.Identifiers[typeName])
}

// WireRecord is the shape exchanged with peer registries: full gender words
// and phone numbers/occupation nested under attributes.
type WireRecord struct {
	DateChanged string          `json:"date_changed,omitempty"`
	Gender      string          `json:"gender"`
	BirthYear   FlexString      `json:"birth_year,omitempty"`
	BirthMonth  FlexString      `json:"birth_month,omitempty"`
	BirthDay    FlexString      `json:"birth_day,omitempty"`
	AgeEstimate FlexString      `json:"age_estimate,omitempty"`
	Names       Names           `json:"names"`
	Addresses   Address         `json:"addresses"`
	Attributes  StringMap       `json:"attributes,omitempty"`
	Patient     *PatientSection `json:"patient,omitempty"`

	// BirthdateEstimated marks an estimate the date parts cannot express.
	BirthdateEstimated FlexString `json:"birthdate_estimated,omitempty"`
}

type WireEnvelope struct {
	Person WireRecord `json:"person"`
}

type SearchCriteria struct {
	Identifier string `json:"identifier,omitempty"`
	Gender     string `json:"gender,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// HasNames reports whether any name criterion was supplied.
func (c SearchCriteria) HasNames() bool {
	return strings.TrimSpace(c.GivenName) != "" || strings.TrimSpace(c.FamilyName) != ""
}

// Outcome is the literal failure marker a peer exchange hands back instead
// of a payload.
type Outcome string

const (
	OutcomeTimeout        Outcome = "timeout"
	OutcomeCreationFailed Outcome = "creationfailed"
)

// ParseOutcome recognizes the two failure literals.
func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(strings.TrimSpace(s)) {
	case OutcomeTimeout:
		return OutcomeTimeout, true
	case OutcomeCreationFailed:
		return OutcomeCreationFailed, true
	}
	return "", false
}

// PushResult is what a push to the peer produced: a failure outcome, a JSON
// payload, or neither when the peer answered without a person.
type PushResult struct {
	Outcome Outcome         `json:"outcome,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (r PushResult) Failed() bool {
	return r.Outcome != ""
}

func (r PushResult) Empty() bool {
	return r.Outcome == "" && len(r.Payload) == 0
}
