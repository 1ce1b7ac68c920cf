package person

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/synaptica-ai/registry/pkg/birthdate"
	"github.com/synaptica-ai/registry/pkg/referencedata"
)

// Accessors below never fail. A missing piece of the record yields "",
// false, or the documented default.

const unknownValue = "Unknown"

var phoneTypes = []referencedata.AttributeKey{
	referencedata.AttributeCellPhoneNumber,
	referencedata.AttributeHomePhoneNumber,
	referencedata.AttributeOfficePhoneNumber,
}

// PreferredName is the first non-voided name, preferred ones first.
func (p Person) PreferredName() (PersonName, bool) {
	for _, n := range p.Names {
		if !n.Voided {
			return n, true
		}
	}
	return PersonName{}, false
}

func (p Person) Name() string {
	n, ok := p.PreferredName()
	if !ok {
		return ""
	}
	return strings.TrimSpace(n.GivenName + " " + n.FamilyName)
}

// ShortName fits small labels: "J. Banda".
func (p Person) ShortName() string {
	n, ok := p.PreferredName()
	if !ok {
		return ""
	}
	initial, _ := utf8.DecodeRuneInString(strings.TrimSpace(n.GivenName))
	if initial == utf8.RuneError {
		return strings.TrimSpace(n.FamilyName)
	}
	return string(initial) + ". " + strings.TrimSpace(n.FamilyName)
}

func (p Person) Address() string {
	for _, a := range p.Addresses {
		if !a.Voided {
			return a.CityVillage
		}
	}
	return ""
}

// CurrentResidence is the village of the last listed address.
func (p Person) CurrentResidence() string {
	for i := len(p.Addresses) - 1; i >= 0; i-- {
		if !p.Addresses[i].Voided && p.Addresses[i].CityVillage != "" {
			return p.Addresses[i].CityVillage
		}
	}
	return unknownValue
}

// AttributeValue returns the authoritative value of an attribute type: the
// first non-voided one.
func (p Person) AttributeValue(typeID uint) (string, bool) {
	if typeID == 0 {
		return "", false
	}
	for _, a := range p.Attributes {
		if !a.Voided && a.TypeID == typeID {
			return a.Value, true
		}
	}
	return "", false
}

// PhoneNumbers maps phone type names to non-blank numbers.
func (p Person) PhoneNumbers(types *referencedata.Registry) map[string]string {
	numbers := map[string]string{}
	if types == nil {
		return numbers
	}
	for _, key := range phoneTypes {
		t := types.AttributeTypeByKey(key)
		if t.Key != key {
			continue
		}
		if v, ok := p.AttributeValue(t.ID); ok && strings.TrimSpace(v) != "" {
			numbers[t.Name] = v
		}
	}
	return numbers
}

func (p Person) Occupation(types *referencedata.Registry) string {
	if types == nil {
		return unknownValue
	}
	t := types.AttributeTypeByKey(referencedata.AttributeOccupation)
	if t.Key != referencedata.AttributeOccupation {
		return unknownValue
	}
	if v, ok := p.AttributeValue(t.ID); ok {
		return v
	}
	return unknownValue
}

// Sex is "Male" or "Female", or "" when the gender is neither.
func (p Person) Sex() string {
	switch p.Gender {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	}
	return ""
}

func (p Person) FormattedGender() string {
	if sex := p.Sex(); sex != "" {
		return sex
	}
	return unknownValue
}

func (p Person) Birth() (birthdate.Birthdate, bool) {
	if p.Birthdate == nil || p.Birthdate.IsZero() {
		return birthdate.Birthdate{}, false
	}
	return birthdate.Birthdate{Date: p.Birthdate.UTC(), Estimated: p.BirthdateEstimated}, true
}

func (p Person) Age(ref time.Time) (int, bool) {
	b, ok := p.Birth()
	if !ok {
		return 0, false
	}
	return b.Age(ref, p.DateCreated), true
}

func (p Person) AgeInMonths(ref time.Time) (int, bool) {
	b, ok := p.Birth()
	if !ok {
		return 0, false
	}
	return b.AgeInMonths(ref), true
}

func (p Person) BirthdateFormatted() string {
	b, ok := p.Birth()
	if !ok {
		return ""
	}
	return b.Format()
}
