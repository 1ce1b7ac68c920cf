package referencedata

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repository keeps the type tables in postgres.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&AttributeType{}, &IdentifierType{})
}

// EnsureSeed inserts the seed types that are missing, matching on key.
// Existing rows keep their ids and names.
func (r *Repository) EnsureSeed(ctx context.Context, seed Seed) error {
	seed = seed.withUnknown()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range seed.AttributeTypes {
			row := t
			if err := tx.Where(AttributeType{Key: t.Key}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seeding attribute type %q: %w", t.Name, err)
			}
		}
		for _, t := range seed.IdentifierTypes {
			row := t
			if err := tx.Where(IdentifierType{Key: t.Key}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seeding identifier type %q: %w", t.Name, err)
			}
		}
		return nil
	})
}

// Load builds a Registry from the stored types. It fails when the
// "Unknown id" types are missing.
func (r *Repository) Load(ctx context.Context) (*Registry, error) {
	var attributes []AttributeType
	if err := r.db.WithContext(ctx).Order("person_attribute_type_id").Find(&attributes).Error; err != nil {
		return nil, err
	}
	var identifiers []IdentifierType
	if err := r.db.WithContext(ctx).Order("patient_identifier_type_id").Find(&identifiers).Error; err != nil {
		return nil, err
	}
	return NewRegistry(attributes, identifiers)
}
