// Package translator maps between the locally normalized demographics and
// the peer wire shape. It performs no I/O.
package translator

import (
	"strings"

	"github.com/synaptica-ai/registry/pkg/common/models"
)

const (
	GenderFemale = "Female"
	GenderMale   = "Male"
	CodeFemale   = "F"
	CodeMale     = "M"
)

// AttributeField is a top-level demographics field that peers carry inside
// the attributes bucket.
type AttributeField struct {
	Key   string
	Label string
	get   func(*models.Demographics) string
	set   func(*models.Demographics, string)
}

// Fields lists the attribute fields in materialization order.
var Fields = []AttributeField{
	{"place_of_birth", "Place Of Birth",
		func(d *models.Demographics) string { return d.PlaceOfBirth },
		func(d *models.Demographics, v string) { d.PlaceOfBirth = v }},
	{"landmark_or_plot_number", "Landmark Or Plot Number",
		func(d *models.Demographics) string { return d.LandmarkOrPlotNumber },
		func(d *models.Demographics, v string) { d.LandmarkOrPlotNumber = v }},
	{"occupation", "Occupation",
		func(d *models.Demographics) string { return d.Occupation },
		func(d *models.Demographics, v string) { d.Occupation = v }},
	{"cell_phone_number", "Cell Phone Number",
		func(d *models.Demographics) string { return d.CellPhoneNumber },
		func(d *models.Demographics, v string) { d.CellPhoneNumber = v }},
	{"office_phone_number", "Office Phone Number",
		func(d *models.Demographics) string { return d.OfficePhoneNumber },
		func(d *models.Demographics, v string) { d.OfficePhoneNumber = v }},
	{"home_phone_number", "Home Phone Number",
		func(d *models.Demographics) string { return d.HomePhoneNumber },
		func(d *models.Demographics, v string) { d.HomePhoneNumber = v }},
	{"citizenship", "Citizenship",
		func(d *models.Demographics) string { return d.Citizenship },
		func(d *models.Demographics, v string) { d.Citizenship = v }},
	{"race", "Race",
		func(d *models.Demographics) string { return d.Race },
		func(d *models.Demographics, v string) { d.Race = v }},
}

// promoted are the keys lifted out of the wire attributes bucket.
var promoted = map[string]bool{
	"occupation":          true,
	"cell_phone_number":   true,
	"home_phone_number":   true,
	"office_phone_number": true,
}

func (f AttributeField) Value(d models.Demographics) string {
	return strings.TrimSpace(f.get(&d))
}

func (f AttributeField) Set(d *models.Demographics, value string) {
	f.set(d, value)
}

// ToWire builds the payload pushed to a peer.
func ToWire(d models.Demographics) models.WireRecord {
	attrs := d.Attributes.Clone()
	for _, f := range Fields {
		if v := f.Value(d); v != "" {
			if attrs == nil {
				attrs = models.StringMap{}
			}
			attrs[f.Label] = v
		}
	}

	return models.WireRecord{
		Gender:      WireGender(d.Gender),
		BirthYear:   d.BirthYear,
		BirthMonth:  d.BirthMonth,
		BirthDay:    d.BirthDay,
		AgeEstimate: d.AgeEstimate,
		Names:       d.Names,
		Addresses:   d.Addresses,
		Attributes:  attrs,
		Patient:     clonePatient(d.Patient),

		BirthdateEstimated: d.BirthdateEstimated,
	}
}

// FromWire normalizes a peer payload. The promoted attributes are read by
// snake_case key or display label and removed from the bucket.
func FromWire(w models.WireRecord) models.Demographics {
	d := models.Demographics{
		Gender:      LocalGender(w.Gender),
		BirthYear:   w.BirthYear,
		BirthMonth:  w.BirthMonth,
		BirthDay:    w.BirthDay,
		AgeEstimate: w.AgeEstimate,
		Names:       w.Names,
		Addresses:   w.Addresses,
		Patient:     clonePatient(w.Patient),

		BirthdateEstimated: w.BirthdateEstimated,
	}

	attrs := w.Attributes.Clone()
	for _, f := range Fields {
		if !promoted[f.Key] {
			continue
		}
		f.Set(&d, take(attrs, f.Key, f.Label))
	}
	if len(attrs) > 0 {
		d.Attributes = attrs
	}
	return d
}

// WireGender maps the local letter code to the word peers use. Anything that
// is not female is sent as Male.
func WireGender(gender string) string {
	switch strings.TrimSpace(gender) {
	case CodeFemale, GenderFemale:
		return GenderFemale
	default:
		return GenderMale
	}
}

// LocalGender maps peer gender words to letter codes; other values pass
// through unchanged.
func LocalGender(gender string) string {
	switch strings.TrimSpace(gender) {
	case GenderFemale:
		return CodeFemale
	case GenderMale:
		return CodeMale
	default:
		return gender
	}
}

func take(attrs models.StringMap, keys ...string) string {
	var value string
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			if value == "" {
				value = v
			}
			delete(attrs, k)
		}
	}
	return value
}

func clonePatient(p *models.PatientSection) *models.PatientSection {
	if p == nil {
		return nil
	}
	return &models.PatientSection{Identifiers: p.Identifiers.Clone()}
}
