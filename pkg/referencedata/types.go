package referencedata

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownName is the sentinel type used whenever a requested type name does
// not resolve.
const UnknownName = "Unknown id"

// AttributeKey is the stable identifier of a person attribute type.
type AttributeKey string

const (
	AttributePlaceOfBirth         AttributeKey = "place_of_birth"
	AttributeLandmarkOrPlotNumber AttributeKey = "landmark_or_plot_number"
	AttributeOccupation           AttributeKey = "occupation"
	AttributeCellPhoneNumber      AttributeKey = "cell_phone_number"
	AttributeOfficePhoneNumber    AttributeKey = "office_phone_number"
	AttributeHomePhoneNumber      AttributeKey = "home_phone_number"
	AttributeCitizenship          AttributeKey = "citizenship"
	AttributeRace                 AttributeKey = "race"
	AttributeUnknown              AttributeKey = "unknown_id"
)

// IdentifierKey is the stable identifier of a patient identifier type.
type IdentifierKey string

const (
	IdentifierNationalID IdentifierKey = "national_id"
	IdentifierUnknown    IdentifierKey = "unknown_id"
)

// NationalIDName is the identifier type peers look records up by.
const NationalIDName = "National id"

type AttributeType struct {
	ID          uint         `gorm:"primaryKey;column:person_attribute_type_id" json:"id" yaml:"-"`
	Key         AttributeKey `gorm:"column:type_key;uniqueIndex" json:"key" yaml:"key"`
	Name        string       `gorm:"column:name;uniqueIndex" json:"name" yaml:"name"`
	Description string       `gorm:"column:description" json:"description,omitempty" yaml:"description"`
}

func (AttributeType) TableName() string {
	return "person_attribute_type"
}

type IdentifierType struct {
	ID          uint          `gorm:"primaryKey;column:patient_identifier_type_id" json:"id" yaml:"-"`
	Key         IdentifierKey `gorm:"column:type_key;uniqueIndex" json:"key" yaml:"key"`
	Name        string        `gorm:"column:name;uniqueIndex" json:"name" yaml:"name"`
	Description string        `gorm:"column:description" json:"description,omitempty" yaml:"description"`
}

func (IdentifierType) TableName() string {
	return "patient_identifier_type"
}

// DisplayName turns a form key such as "cell_phone_number" into the type
// name "Cell Phone Number".
func DisplayName(key string) string {
	return cases.Title(language.English).String(strings.TrimSpace(strings.ReplaceAll(key, "_", " ")))
}
