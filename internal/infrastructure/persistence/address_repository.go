package persistence

import (
	"context"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAddressRepository implements accounting.AddressRepository using GORM.
// Customer links live in address_links and are loaded with every address.
type GormAddressRepository struct {
	db *gorm.DB
}

// NewGormAddressRepository creates a new GormAddressRepository
func NewGormAddressRepository(db *gorm.DB) *GormAddressRepository {
	return &GormAddressRepository{db: db}
}

func (r *GormAddressRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Links", func(db *gorm.DB) *gorm.DB {
		return db.Order("customer_id")
	})
}

// FindByID finds an address by its ID
func (r *GormAddressRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Address, error) {
	var model models.AddressModel
	if err := r.query(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "address %s", id)
	}
	return model.ToDomain(), nil
}

// FindByMarketplaceID finds an address by its marketplace address id
func (r *GormAddressRepository) FindByMarketplaceID(ctx context.Context, marketplaceID string) (*accounting.Address, error) {
	if marketplaceID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.AddressModel
	if err := r.query(ctx).Where("marketplace_id = ?", marketplaceID).First(&model).Error; err != nil {
		return nil, translateError(err, "address %s", marketplaceID)
	}
	return model.ToDomain(), nil
}

// FindByKey finds addresses whose canonical key matches exactly
func (r *GormAddressRepository) FindByKey(ctx context.Context, key accounting.AddressKey) ([]accounting.Address, error) {
	var rows []models.AddressModel
	if err := r.query(ctx).
		Where("line1 = ? AND line2 = ? AND city = ? AND postcode = ?", key.Line1, key.Line2, key.City, key.Postcode).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	addresses := make([]accounting.Address, len(rows))
	for i := range rows {
		addresses[i] = *rows[i].ToDomain()
	}
	return addresses, nil
}

// ExistsByName checks if an address name is taken
func (r *GormAddressRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.AddressModel{}).Where("name = ?", name))
}

// Create inserts an address together with its customer links
func (r *GormAddressRepository) Create(ctx context.Context, a *accounting.Address) error {
	err := r.db.WithContext(ctx).Create(models.AddressModelFromDomain(a)).Error
	return translateError(err, "address %s", a.Name)
}

// Update overwrites an address and adds any new customer links. Links are
// never removed.
func (r *GormAddressRepository) Update(ctx context.Context, a *accounting.Address) error {
	model := models.AddressModelFromDomain(a)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AddressModel{}).
			Where("id = ?", a.ID).
			Select("name", "marketplace_id", "title", "address_type", "line1", "line2", "city",
				"state", "postcode", "country", "phone", "email", "updated_at").
			Updates(model)
		if result.Error != nil {
			return translateError(result.Error, "address %s", a.Name)
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if len(model.Links) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Links).Error
	})
}
