package models

import (
	"time"

	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// nullable maps an empty string to NULL so unique indexes ignore it
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// All returns every persistence model in dependency order
func All() []any {
	return []any{
		&CustomerModel{},
		&AddressModel{},
		&AddressLinkModel{},
		&ItemModel{},
		&AccountModel{},
		&OrderRecordModel{},
		&SalesInvoiceModel{},
		&InvoiceItemModel{},
		&InvoiceTaxModel{},
		&InvoicePaymentModel{},
		&FeeDocumentModel{},
		&FeeItemModel{},
		&JournalEntryModel{},
		&JournalLineModel{},
		&SyncRunModel{},
		&SyncLogEntryModel{},
	}
}
