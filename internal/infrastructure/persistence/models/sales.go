package models

import (
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderRecordModel
// ---------------------------------------------------------------------------

// OrderRecordModel is the persistence model for the OrderRecord domain entity.
type OrderRecordModel struct {
	BaseModel
	MarketplaceOrderID string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	BuyerID            string    `gorm:"type:varchar(100);not null;index"`
	CustomerID         uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerName       string    `gorm:"type:varchar(140);not null"`
	AddressID          uuid.UUID `gorm:"type:uuid;not null"`
	PaymentStatus      string    `gorm:"type:varchar(50);not null"`
	OrderedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderRecordModel) TableName() string {
	return "order_records"
}

// ToDomain converts the persistence model to a domain OrderRecord entity.
func (m *OrderRecordModel) ToDomain() *accounting.OrderRecord {
	return &accounting.OrderRecord{
		BaseEntity:         m.BaseModel.ToDomain(),
		MarketplaceOrderID: m.MarketplaceOrderID,
		BuyerID:            m.BuyerID,
		CustomerID:         m.CustomerID,
		CustomerName:       m.CustomerName,
		AddressID:          m.AddressID,
		PaymentStatus:      m.PaymentStatus,
		OrderedAt:          m.OrderedAt,
	}
}

// OrderRecordModelFromDomain creates a new persistence model from a domain OrderRecord entity.
func OrderRecordModelFromDomain(o *accounting.OrderRecord) *OrderRecordModel {
	m := &OrderRecordModel{
		MarketplaceOrderID: o.MarketplaceOrderID,
		BuyerID:            o.BuyerID,
		CustomerID:         o.CustomerID,
		CustomerName:       o.CustomerName,
		AddressID:          o.AddressID,
		PaymentStatus:      o.PaymentStatus,
		OrderedAt:          o.OrderedAt,
	}
	m.FromDomainBaseEntity(o.BaseEntity)
	return m
}

// ---------------------------------------------------------------------------
// SalesInvoiceModel
// ---------------------------------------------------------------------------

// SalesInvoiceModel is the persistence model for sales invoices and returns.
type SalesInvoiceModel struct {
	BaseModel
	Name                string                `gorm:"type:varchar(140);not null;uniqueIndex"`
	Title               string                `gorm:"type:varchar(200);not null;index"`
	MarketplaceOrderID  string                `gorm:"type:varchar(100);index"`
	CustomerID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	CustomerName        string                `gorm:"type:varchar(140);not null"`
	AddressID           uuid.UUID             `gorm:"type:uuid"`
	ContactEmail        string                `gorm:"type:varchar(200)"`
	Territory           string                `gorm:"type:varchar(100)"`
	ListingSite         string                `gorm:"type:varchar(50)"`
	PurchaseSite        string                `gorm:"type:varchar(50)"`
	BuyerMessage        string                `gorm:"type:text"`
	CollectedTaxTotal   decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	CollectedTaxDetails string                `gorm:"type:text"`
	PostingDate         time.Time             `gorm:"type:date;not null"`
	Currency            string                `gorm:"type:varchar(3);not null"`
	ConversionRate      decimal.Decimal       `gorm:"type:decimal(18,9);not null;default:1"`
	Status              string                `gorm:"type:varchar(20);not null;index"`
	IsReturn            bool                  `gorm:"not null;default:false"`
	ReturnAgainst       *uuid.UUID            `gorm:"type:uuid;index"`
	AmendedFrom         *uuid.UUID            `gorm:"type:uuid;index"`
	Items               []InvoiceItemModel    `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
	Taxes               []InvoiceTaxModel     `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
	Payments            []InvoicePaymentModel `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SalesInvoiceModel) TableName() string {
	return "sales_invoices"
}

// InvoiceItemModel is one invoice line
type InvoiceItemModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position              int             `gorm:"not null"`
	ItemCode              string          `gorm:"type:varchar(140);not null;index"`
	Description           string          `gorm:"type:text"`
	Qty                   int             `gorm:"not null"`
	Rate                  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	IncomeAccount         string          `gorm:"type:varchar(140)"`
	IsShipping            bool            `gorm:"not null;default:false"`
	LineItemID            string          `gorm:"type:varchar(100);index"`
	ListingID             string          `gorm:"type:varchar(50);index"`
	FinalValueFee         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BaseFinalValueFee     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	FixedFee              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BaseFixedFee          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CollectedTax          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CollectedTaxReference string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "sales_invoice_items"
}

// InvoiceTaxModel is one document-level tax line
type InvoiceTaxModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	ChargeType  string          `gorm:"type:varchar(20);not null"`
	Description string          `gorm:"type:varchar(200)"`
	Account     string          `gorm:"type:varchar(140)"`
	Rate        decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceTaxModel) TableName() string {
	return "sales_invoice_taxes"
}

// InvoicePaymentModel is one payment recorded on an invoice
type InvoicePaymentModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position      int             `gorm:"not null"`
	ModeOfPayment string          `gorm:"type:varchar(140);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoicePaymentModel) TableName() string {
	return "sales_invoice_payments"
}

// ToDomain converts the persistence model to a domain SalesInvoice.
// Child rows must be loaded in position order.
func (m *SalesInvoiceModel) ToDomain() *accounting.SalesInvoice {
	inv := &accounting.SalesInvoice{
		BaseEntity:          m.BaseModel.ToDomain(),
		Name:                m.Name,
		Title:               m.Title,
		MarketplaceOrderID:  m.MarketplaceOrderID,
		CustomerID:          m.CustomerID,
		CustomerName:        m.CustomerName,
		AddressID:           m.AddressID,
		ContactEmail:        m.ContactEmail,
		Territory:           m.Territory,
		ListingSite:         m.ListingSite,
		PurchaseSite:        m.PurchaseSite,
		BuyerMessage:        m.BuyerMessage,
		CollectedTaxTotal:   m.CollectedTaxTotal,
		CollectedTaxDetails: m.CollectedTaxDetails,
		PostingDate:         m.PostingDate,
		Currency:            m.Currency,
		ConversionRate:      m.ConversionRate,
		Status:              accounting.DocStatus(m.Status),
		IsReturn:            m.IsReturn,
		ReturnAgainst:       m.ReturnAgainst,
		AmendedFrom:         m.AmendedFrom,
	}
	for _, it := range m.Items {
		inv.Items = append(inv.Items, accounting.InvoiceItem{
			Position:              it.Position,
			ItemCode:              it.ItemCode,
			Description:           it.Description,
			Qty:                   it.Qty,
			Rate:                  it.Rate,
			IncomeAccount:         it.IncomeAccount,
			IsShipping:            it.IsShipping,
			LineItemID:            it.LineItemID,
			ListingID:             it.ListingID,
			FinalValueFee:         it.FinalValueFee,
			BaseFinalValueFee:     it.BaseFinalValueFee,
			FixedFee:              it.FixedFee,
			BaseFixedFee:          it.BaseFixedFee,
			CollectedTax:          it.CollectedTax,
			CollectedTaxReference: it.CollectedTaxReference,
		})
	}
	for _, t := range m.Taxes {
		inv.Taxes = append(inv.Taxes, accounting.InvoiceTax{
			ChargeType:  t.ChargeType,
			Description: t.Description,
			Account:     t.Account,
			Rate:        t.Rate,
			TaxAmount:   t.TaxAmount,
		})
	}
	for _, p := range m.Payments {
		inv.Payments = append(inv.Payments, accounting.InvoicePayment{
			ModeOfPayment: p.ModeOfPayment,
			Amount:        p.Amount,
		})
	}
	return inv
}

// SalesInvoiceModelFromDomain creates a new persistence model, child rows
// included, from a domain SalesInvoice.
func SalesInvoiceModelFromDomain(inv *accounting.SalesInvoice) *SalesInvoiceModel {
	m := &SalesInvoiceModel{
		Name:                inv.Name,
		Title:               inv.Title,
		MarketplaceOrderID:  inv.MarketplaceOrderID,
		CustomerID:          inv.CustomerID,
		CustomerName:        inv.CustomerName,
		AddressID:           inv.AddressID,
		ContactEmail:        inv.ContactEmail,
		Territory:           inv.Territory,
		ListingSite:         inv.ListingSite,
		PurchaseSite:        inv.PurchaseSite,
		BuyerMessage:        inv.BuyerMessage,
		CollectedTaxTotal:   inv.CollectedTaxTotal,
		CollectedTaxDetails: inv.CollectedTaxDetails,
		PostingDate:         inv.PostingDate,
		Currency:            inv.Currency,
		ConversionRate:      inv.ConversionRate,
		Status:              inv.Status.String(),
		IsReturn:            inv.IsReturn,
		ReturnAgainst:       inv.ReturnAgainst,
		AmendedFrom:         inv.AmendedFrom,
	}
	m.FromDomainBaseEntity(inv.BaseEntity)
	for i, it := range inv.Items {
		pos := it.Position
		if pos == 0 {
			pos = i + 1
		}
		m.Items = append(m.Items, InvoiceItemModel{
			ID:                    uuid.New(),
			InvoiceID:             inv.ID,
			Position:              pos,
			ItemCode:              it.ItemCode,
			Description:           it.Description,
			Qty:                   it.Qty,
			Rate:                  it.Rate,
			IncomeAccount:         it.IncomeAccount,
			IsShipping:            it.IsShipping,
			LineItemID:            it.LineItemID,
			ListingID:             it.ListingID,
			FinalValueFee:         it.FinalValueFee,
			BaseFinalValueFee:     it.BaseFinalValueFee,
			FixedFee:              it.FixedFee,
			BaseFixedFee:          it.BaseFixedFee,
			CollectedTax:          it.CollectedTax,
			CollectedTaxReference: it.CollectedTaxReference,
		})
	}
	for i, t := range inv.Taxes {
		m.Taxes = append(m.Taxes, InvoiceTaxModel{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Position:    i + 1,
			ChargeType:  t.ChargeType,
			Description: t.Description,
			Account:     t.Account,
			Rate:        t.Rate,
			TaxAmount:   t.TaxAmount,
		})
	}
	for i, p := range inv.Payments {
		m.Payments = append(m.Payments, InvoicePaymentModel{
			ID:            uuid.New(),
			InvoiceID:     inv.ID,
			Position:      i + 1,
			ModeOfPayment: p.ModeOfPayment,
			Amount:        p.Amount,
		})
	}
	return m
}
