package persistence

import (
	"context"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormItemRepository implements accounting.ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByCode finds an item by its code
func (r *GormItemRepository) FindByCode(ctx context.Context, code string) (*accounting.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		return nil, translateError(err, "item %s", code)
	}
	return model.ToDomain(), nil
}

// FindByListingID finds the items listed under a marketplace listing
func (r *GormItemRepository) FindByListingID(ctx context.Context, listingID string) ([]accounting.Item, error) {
	var rows []models.ItemModel
	if err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]accounting.Item, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// GormAccountRepository implements accounting.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByName finds a ledger account by name
func (r *GormAccountRepository) FindByName(ctx context.Context, name string) (*accounting.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		return nil, translateError(err, "account %s", name)
	}
	return model.ToDomain(), nil
}
