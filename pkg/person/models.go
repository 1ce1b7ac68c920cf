package person

import (
	"time"
)

const (
	GenderMale   = "M"
	GenderFemale = "F"
)

type Person struct {
	ID                 uint       `gorm:"primaryKey;column:person_id" json:"person_id"`
	UUID               string     `gorm:"column:uuid;size:38;uniqueIndex" json:"uuid"`
	Gender             string     `gorm:"column:gender;size:50;index" json:"gender"`
	Birthdate          *time.Time `gorm:"column:birthdate;type:date" json:"birthdate,omitempty"`
	BirthdateEstimated bool       `gorm:"column:birthdate_estimated" json:"birthdate_estimated"`
	Voided             bool       `gorm:"column:voided;index" json:"voided"`
	DateCreated        time.Time  `gorm:"column:date_created" json:"date_created"`
	DateChanged        time.Time  `gorm:"column:date_changed" json:"date_changed"`

	Names      []PersonName      `gorm:"foreignKey:PersonID" json:"names,omitempty"`
	Addresses  []PersonAddress   `gorm:"foreignKey:PersonID" json:"addresses,omitempty"`
	Attributes []PersonAttribute `gorm:"foreignKey:PersonID" json:"attributes,omitempty"`
	Patient    *Patient          `gorm:"foreignKey:ID;references:ID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
}

func (Person) TableName() string { return "person" }

type PersonName struct {
	ID          uint      `gorm:"primaryKey;column:person_name_id" json:"id"`
	PersonID    uint      `gorm:"column:person_id;index" json:"person_id"`
	Preferred   bool      `gorm:"column:preferred" json:"preferred"`
	GivenName   string    `gorm:"column:given_name;size:50" json:"given_name"`
	FamilyName  string    `gorm:"column:family_name;size:50" json:"family_name"`
	FamilyName2 string    `gorm:"column:family_name2;size:50" json:"family_name2,omitempty"`
	Voided      bool      `gorm:"column:voided" json:"voided"`
	DateCreated time.Time `gorm:"column:date_created" json:"date_created"`

	Code *PersonNameCode `gorm:"foreignKey:PersonNameID" json:"-"`
}

func (PersonName) TableName() string { return "person_name" }

// PersonNameCode holds the phonetic codes of a name so fuzzy search can
// filter in SQL.
type PersonNameCode struct {
	ID              uint   `gorm:"primaryKey;column:person_name_code_id"`
	PersonNameID    uint   `gorm:"column:person_name_id;uniqueIndex"`
	GivenNameCode   string `gorm:"column:given_name_code;size:8;index"`
	FamilyNameCode  string `gorm:"column:family_name_code;size:8;index"`
	FamilyName2Code string `gorm:"column:family_name2_code;size:8"`
}

func (PersonNameCode) TableName() string { return "person_name_code" }

type PersonAddress struct {
	ID             uint      `gorm:"primaryKey;column:person_address_id" json:"id"`
	PersonID       uint      `gorm:"column:person_id;index" json:"person_id"`
	Preferred      bool      `gorm:"column:preferred" json:"preferred"`
	CityVillage    string    `gorm:"column:city_village;size:50" json:"city_village"`
	CountyDistrict string    `gorm:"column:county_district;size:50" json:"county_district"`
	Voided         bool      `gorm:"column:voided" json:"voided"`
	DateCreated    time.Time `gorm:"column:date_created" json:"date_created"`
}

func (PersonAddress) TableName() string { return "person_address" }

type PersonAttribute struct {
	ID          uint      `gorm:"primaryKey;column:person_attribute_id" json:"id"`
	PersonID    uint      `gorm:"column:person_id;index" json:"person_id"`
	TypeID      uint      `gorm:"column:person_attribute_type_id;index" json:"person_attribute_type_id"`
	Value       string    `gorm:"column:value;size:50" json:"value"`
	Voided      bool      `gorm:"column:voided" json:"voided"`
	DateCreated time.Time `gorm:"column:date_created" json:"date_created"`
}

func (PersonAttribute) TableName() string { return "person_attribute" }

// Patient shares its key with the owning person.
type Patient struct {
	ID          uint                `gorm:"primaryKey;autoIncrement:false;column:patient_id" json:"patient_id"`
	Voided      bool                `gorm:"column:voided" json:"voided"`
	DateCreated time.Time           `gorm:"column:date_created" json:"date_created"`
	Identifiers []PatientIdentifier `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"identifiers,omitempty"`
}

func (Patient) TableName() string { return "patient" }

type PatientIdentifier struct {
	ID          uint      `gorm:"primaryKey;column:patient_identifier_id" json:"id"`
	PatientID   uint      `gorm:"column:patient_id;index" json:"patient_id"`
	Identifier  string    `gorm:"column:identifier;size:50;index" json:"identifier"`
	TypeID      uint      `gorm:"column:identifier_type" json:"identifier_type"`
	Voided      bool      `gorm:"column:voided" json:"voided"`
	DateCreated time.Time `gorm:"column:date_created" json:"date_created"`
}

func (PatientIdentifier) TableName() string { return "patient_identifier" }
