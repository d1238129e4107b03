package persistence

import (
	"context"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------
// Order records
// ---------------------------------------------------------------------------

// GormOrderRecordRepository implements accounting.OrderRecordRepository using GORM
type GormOrderRecordRepository struct {
	db *gorm.DB
}

// NewGormOrderRecordRepository creates a new GormOrderRecordRepository
func NewGormOrderRecordRepository(db *gorm.DB) *GormOrderRecordRepository {
	return &GormOrderRecordRepository{db: db}
}

// FindByMarketplaceOrderID finds the record of a marketplace order
func (r *GormOrderRecordRepository) FindByMarketplaceOrderID(ctx context.Context, orderID string) (*accounting.OrderRecord, error) {
	var model models.OrderRecordModel
	if err := r.db.WithContext(ctx).Where("marketplace_order_id = ?", orderID).First(&model).Error; err != nil {
		return nil, translateError(err, "order %s", orderID)
	}
	return model.ToDomain(), nil
}

// Create inserts an order record
func (r *GormOrderRecordRepository) Create(ctx context.Context, o *accounting.OrderRecord) error {
	err := r.db.WithContext(ctx).Create(models.OrderRecordModelFromDomain(o)).Error
	return translateError(err, "order %s", o.MarketplaceOrderID)
}

// ---------------------------------------------------------------------------
// Sales invoices
// ---------------------------------------------------------------------------

// GormSalesInvoiceRepository implements accounting.SalesInvoiceRepository using GORM
type GormSalesInvoiceRepository struct {
	db *gorm.DB
}

// NewGormSalesInvoiceRepository creates a new GormSalesInvoiceRepository
func NewGormSalesInvoiceRepository(db *gorm.DB) *GormSalesInvoiceRepository {
	return &GormSalesInvoiceRepository{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// query preloads the child rows in position order
func (r *GormSalesInvoiceRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", byPosition).
		Preload("Taxes", byPosition).
		Preload("Payments", byPosition)
}

func (r *GormSalesInvoiceRepository) findOne(query *gorm.DB, what string) (*accounting.SalesInvoice, error) {
	var model models.SalesInvoiceModel
	if err := query.First(&model).Error; err != nil {
		return nil, translateError(err, "invoice %s", what)
	}
	return model.ToDomain(), nil
}

func (r *GormSalesInvoiceRepository) findMany(query *gorm.DB) ([]accounting.SalesInvoice, error) {
	var rows []models.SalesInvoiceModel
	if err := query.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	invoices := make([]accounting.SalesInvoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, nil
}

// FindByID finds an invoice by its ID
func (r *GormSalesInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.SalesInvoice, error) {
	return r.findOne(r.query(ctx).Where("id = ?", id), id.String())
}

// FindByMarketplaceOrderID finds the original invoice of a marketplace order.
// Returns and amendments are excluded.
func (r *GormSalesInvoiceRepository) FindByMarketplaceOrderID(ctx context.Context, orderID string) (*accounting.SalesInvoice, error) {
	if orderID == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(r.query(ctx).
		Where("marketplace_order_id = ? AND is_return = ? AND amended_from IS NULL", orderID, false).
		Order("created_at"), orderID)
}

// CountByTitle counts invoices carrying a title
func (r *GormSalesInvoiceRepository) CountByTitle(ctx context.Context, title string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SalesInvoiceModel{}).Where("title = ?", title).Count(&count).Error
	return count, err
}

// FindAmendments finds invoices amended from the given invoice
func (r *GormSalesInvoiceRepository) FindAmendments(ctx context.Context, id uuid.UUID) ([]accounting.SalesInvoice, error) {
	return r.findMany(r.query(ctx).Where("amended_from = ?", id))
}

// FindLiveReturns finds the non-cancelled returns against an invoice
func (r *GormSalesInvoiceRepository) FindLiveReturns(ctx context.Context, againstID uuid.UUID) ([]accounting.SalesInvoice, error) {
	return r.findMany(r.query(ctx).
		Where("is_return = ? AND return_against = ? AND status <> ?", true, againstID, accounting.DocStatusCancelled.String()))
}

// FindItemCodes returns the distinct item codes invoiced for an order line.
// Lines match on line item id, or on listing id when lineItemID is empty.
func (r *GormSalesInvoiceRepository) FindItemCodes(ctx context.Context, orderID, lineItemID, listingID string) ([]string, error) {
	if lineItemID == "" && listingID == "" {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceItemModel{}).
		Joins("JOIN sales_invoices ON sales_invoices.id = sales_invoice_items.invoice_id").
		Where("sales_invoices.marketplace_order_id = ? AND sales_invoices.is_return = ? AND sales_invoices.status <> ?",
			orderID, false, accounting.DocStatusCancelled.String())
	if lineItemID != "" {
		query = query.Where("sales_invoice_items.line_item_id = ?", lineItemID)
	} else {
		query = query.Where("sales_invoice_items.listing_id = ?", listingID)
	}

	var codes []string
	if err := query.Distinct().Order("sales_invoice_items.item_code").
		Pluck("sales_invoice_items.item_code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// Create inserts an invoice with its items, taxes and payments
func (r *GormSalesInvoiceRepository) Create(ctx context.Context, inv *accounting.SalesInvoice) error {
	err := r.db.WithContext(ctx).Create(models.SalesInvoiceModelFromDomain(inv)).Error
	return translateError(err, "invoice %s", inv.Name)
}

// UpdateStatus persists the invoice's status
func (r *GormSalesInvoiceRepository) UpdateStatus(ctx context.Context, inv *accounting.SalesInvoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.SalesInvoiceModel{}).
		Where("id = ?", inv.ID).
		Updates(map[string]any{"status": inv.Status.String(), "updated_at": inv.UpdatedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
