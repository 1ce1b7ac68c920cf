package person

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the postgres-backed Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&Person{},
		&PersonName{},
		&PersonNameCode{},
		&PersonAddress{},
		&PersonAttribute{},
		&Patient{},
		&PatientIdentifier{},
	)
}

func (r *Repository) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) CreatePerson(ctx context.Context, p *Person) error {
	now := time.Now().UTC()
	if p.DateCreated.IsZero() {
		p.DateCreated = now
	}
	if p.DateChanged.IsZero() {
		p.DateChanged = p.DateCreated
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *Repository) SavePerson(ctx context.Context, p *Person) error {
	p.DateChanged = time.Now().UTC()
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (r *Repository) CreateName(ctx context.Context, n *PersonName) error {
	if n.DateCreated.IsZero() {
		n.DateCreated = time.Now().UTC()
	}
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(n).Error; err != nil {
		return err
	}
	return r.upsertCode(ctx, n)
}

func (r *Repository) SaveName(ctx context.Context, n *PersonName) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(n).Error; err != nil {
		return err
	}
	return r.upsertCode(ctx, n)
}

func (r *Repository) upsertCode(ctx context.Context, n *PersonName) error {
	code := nameCode(n)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "person_name_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"given_name_code", "family_name_code", "family_name2_code"}),
	}).Create(&code).Error
	if err != nil {
		return err
	}
	n.Code = &code
	return nil
}

func (r *Repository) CreateAddress(ctx context.Context, a *PersonAddress) error {
	if a.DateCreated.IsZero() {
		a.DateCreated = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repository) SaveAddress(ctx context.Context, a *PersonAddress) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *Repository) CreateAttribute(ctx context.Context, a *PersonAttribute) error {
	if a.DateCreated.IsZero() {
		a.DateCreated = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repository) SaveAttribute(ctx context.Context, a *PersonAttribute) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *Repository) CreatePatient(ctx context.Context, p *Patient) error {
	if p.DateCreated.IsZero() {
		p.DateCreated = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *Repository) CreateIdentifier(ctx context.Context, id *PatientIdentifier) error {
	if id.DateCreated.IsZero() {
		id.DateCreated = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(id).Error
}

func (r *Repository) Get(ctx context.Context, id uint) (*Person, error) {
	var p Person
	result := r.preloaded(ctx).First(&p, "person.person_id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &p, nil
}

func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) ([]Person, error) {
	owners := r.db.Model(&PatientIdentifier{}).
		Select("patient_id").
		Where("identifier = ? AND voided = ?", identifier, false)

	var people []Person
	result := r.preloaded(ctx).
		Where("person.person_id IN (?)", owners).
		Order("person.person_id").
		Find(&people)
	return people, result.Error
}

func (r *Repository) FindCandidates(ctx context.Context, f CandidateFilter) ([]Person, error) {
	q := r.preloaded(ctx).
		Joins("LEFT JOIN patient ON patient.patient_id = person.person_id").
		Where("person.gender = ? AND person.voided = ?", f.Gender, false).
		Where("(patient.voided = ? OR patient.voided IS NULL)", false)

	given, family := strings.TrimSpace(f.GivenName), strings.TrimSpace(f.FamilyName)
	if given != "" || family != "" {
		named := r.db.Model(&PersonName{}).
			Select("person_name.person_id").
			Joins("LEFT JOIN person_name_code ON person_name_code.person_name_id = person_name.person_name_id").
			Where("person_name.voided = ?", false)
		if given != "" {
			named = named.Where(nameCondition("given_name", given, f.GivenNameCode))
		}
		if family != "" {
			named = named.Where(nameCondition("family_name", family, f.FamilyNameCode))
		}
		q = q.Where("person.person_id IN (?)", named)
	}

	var people []Person
	result := q.Order("person.person_id").Find(&people)
	return people, result.Error
}

// nameCondition matches a name column case-insensitively or by its soundex
// column when a code is known.
func nameCondition(column, value, code string) clause.Expression {
	byName := clause.Expr{
		SQL:  "LOWER(person_name." + column + ") = LOWER(?)",
		Vars: []interface{}{value},
	}
	if code == "" {
		return byName
	}
	return clause.Or(byName, clause.Expr{
		SQL:  "person_name_code." + column + "_code = ?",
		Vars: []interface{}{code},
	})
}

func (r *Repository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Names", func(db *gorm.DB) *gorm.DB {
			return db.Where("voided = ?", false).Order("preferred DESC, person_name_id")
		}).
		Preload("Names.Code").
		Preload("Addresses", func(db *gorm.DB) *gorm.DB {
			return db.Where("voided = ?", false).Order("preferred DESC, person_address_id")
		}).
		Preload("Attributes", func(db *gorm.DB) *gorm.DB {
			return db.Order("person_attribute_id")
		}).
		Preload("Patient").
		Preload("Patient.Identifiers", func(db *gorm.DB) *gorm.DB {
			return db.Where("voided = ?", false).Order("patient_identifier_id")
		})
}
