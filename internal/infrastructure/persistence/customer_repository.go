package persistence

import (
	"context"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements accounting.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "customer %s", id)
	}
	return model.ToDomain(), nil
}

// FindByBuyerID finds the customer linked to a marketplace buyer
func (r *GormCustomerRepository) FindByBuyerID(ctx context.Context, buyerID string) (*accounting.Customer, error) {
	if buyerID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).First(&model).Error; err != nil {
		return nil, translateError(err, "buyer %s", buyerID)
	}
	return model.ToDomain(), nil
}

// ExistsByName checks if a customer name is taken
func (r *GormCustomerRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.CustomerModel{}).Where("name = ?", name))
}

// FindUnclaimed finds customers without a buyer id that carry the given name
// and are linked to an address with the given postcode
func (r *GormCustomerRepository) FindUnclaimed(ctx context.Context, name, postcode string) ([]accounting.Customer, error) {
	linked := r.db.Table("address_links").
		Select("1").
		Joins("JOIN addresses ON addresses.id = address_links.address_id").
		Where("address_links.customer_id = customers.id AND addresses.postcode = ?", postcode)

	var rows []models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("buyer_id IS NULL AND name = ?", name).
		Where("EXISTS (?)", linked).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	customers := make([]accounting.Customer, len(rows))
	for i := range rows {
		customers[i] = *rows[i].ToDomain()
	}
	return customers, nil
}

// Create inserts a new customer
func (r *GormCustomerRepository) Create(ctx context.Context, c *accounting.Customer) error {
	err := r.db.WithContext(ctx).Create(models.CustomerModelFromDomain(c)).Error
	return translateError(err, "customer %s", c.Name)
}

// Update overwrites a customer's mutable fields
func (r *GormCustomerRepository) Update(ctx context.Context, c *accounting.Customer) error {
	model := models.CustomerModelFromDomain(c)
	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("id = ?", c.ID).
		Select("name", "buyer_id", "territory", "tax_id", "details", "updated_at").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error, "customer %s", c.Name)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
