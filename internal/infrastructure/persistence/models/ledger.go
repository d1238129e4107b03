package models

import (
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// FeeDocumentModel
// ---------------------------------------------------------------------------

// FeeDocumentModel is the persistence model for daily fee documents.
type FeeDocumentModel struct {
	BaseModel
	Name          string          `gorm:"type:varchar(140);not null;uniqueIndex"`
	Title         string          `gorm:"type:varchar(200);not null"`
	Supplier      string          `gorm:"type:varchar(140);not null"`
	PostingDate   time.Time       `gorm:"type:date;not null;index"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	CashAccount   string          `gorm:"type:varchar(140)"`
	ModeOfPayment string          `gorm:"type:varchar(140)"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	TaxAccount    string          `gorm:"type:varchar(140)"`
	IsReturn      bool            `gorm:"not null;default:false"`
	HoldForReview bool            `gorm:"not null;default:false"`
	Status        string          `gorm:"type:varchar(20);not null"`
	Items         []FeeItemModel  `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (FeeDocumentModel) TableName() string {
	return "fee_documents"
}

// FeeItemModel is one fee line
type FeeItemModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position            int             `gorm:"not null"`
	ItemCode            string          `gorm:"type:varchar(140)"`
	Description         string          `gorm:"type:text"`
	Qty                 int             `gorm:"not null"`
	Rate                decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpenseAccount      string          `gorm:"type:varchar(140)"`
	TransactionID       string          `gorm:"type:varchar(100);not null;index"`
	TransactionDate     time.Time
	OrderID             string          `gorm:"type:varchar(100)"`
	LineItemID          string          `gorm:"type:varchar(100)"`
	SKU                 string          `gorm:"type:varchar(140)"`
	TransactionCurrency string          `gorm:"type:varchar(3)"`
	ExchangeRate        decimal.Decimal `gorm:"type:decimal(18,9);not null;default:1"`
	Buyer               string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (FeeItemModel) TableName() string {
	return "fee_document_items"
}

// ToDomain converts the persistence model to a domain FeeDocument.
func (m *FeeDocumentModel) ToDomain() *accounting.FeeDocument {
	doc := &accounting.FeeDocument{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		Title:         m.Title,
		Supplier:      m.Supplier,
		PostingDate:   m.PostingDate,
		Currency:      m.Currency,
		CashAccount:   m.CashAccount,
		ModeOfPayment: m.ModeOfPayment,
		TaxRate:       m.TaxRate,
		TaxAccount:    m.TaxAccount,
		IsReturn:      m.IsReturn,
		HoldForReview: m.HoldForReview,
		Status:        accounting.DocStatus(m.Status),
	}
	for _, it := range m.Items {
		doc.Items = append(doc.Items, accounting.FeeItem{
			Position:            it.Position,
			ItemCode:            it.ItemCode,
			Description:         it.Description,
			Qty:                 it.Qty,
			Rate:                it.Rate,
			ExpenseAccount:      it.ExpenseAccount,
			TransactionID:       it.TransactionID,
			TransactionDate:     it.TransactionDate,
			OrderID:             it.OrderID,
			LineItemID:          it.LineItemID,
			SKU:                 it.SKU,
			TransactionCurrency: it.TransactionCurrency,
			ExchangeRate:        it.ExchangeRate,
			Buyer:               it.Buyer,
		})
	}
	return doc
}

// FeeDocumentModelFromDomain creates a new persistence model, items included,
// from a domain FeeDocument.
func FeeDocumentModelFromDomain(d *accounting.FeeDocument) *FeeDocumentModel {
	m := &FeeDocumentModel{
		Name:          d.Name,
		Title:         d.Title,
		Supplier:      d.Supplier,
		PostingDate:   d.PostingDate,
		Currency:      d.Currency,
		CashAccount:   d.CashAccount,
		ModeOfPayment: d.ModeOfPayment,
		TaxRate:       d.TaxRate,
		TaxAccount:    d.TaxAccount,
		IsReturn:      d.IsReturn,
		HoldForReview: d.HoldForReview,
		Status:        d.Status.String(),
	}
	m.FromDomainBaseEntity(d.BaseEntity)
	for _, it := range d.Items {
		m.Items = append(m.Items, FeeItemModel{
			ID:                  uuid.New(),
			DocumentID:          d.ID,
			Position:            it.Position,
			ItemCode:            it.ItemCode,
			Description:         it.Description,
			Qty:                 it.Qty,
			Rate:                it.Rate,
			ExpenseAccount:      it.ExpenseAccount,
			TransactionID:       it.TransactionID,
			TransactionDate:     it.TransactionDate,
			OrderID:             it.OrderID,
			LineItemID:          it.LineItemID,
			SKU:                 it.SKU,
			TransactionCurrency: it.TransactionCurrency,
			ExchangeRate:        it.ExchangeRate,
			Buyer:               it.Buyer,
		})
	}
	return m
}

// ---------------------------------------------------------------------------
// JournalEntryModel
// ---------------------------------------------------------------------------

// JournalEntryModel is the persistence model for transfer and payout entries.
// Kind, ReferenceID and ReferenceDate together identify an entry.
type JournalEntryModel struct {
	BaseModel
	Name          string             `gorm:"type:varchar(140);not null;uniqueIndex"`
	Title         string             `gorm:"type:varchar(200);not null"`
	Kind          string             `gorm:"type:varchar(20);not null;uniqueIndex:idx_journal_reference,priority:1"`
	PostingDate   time.Time          `gorm:"type:date;not null"`
	ReferenceID   string             `gorm:"type:varchar(100);not null;uniqueIndex:idx_journal_reference,priority:2"`
	ReferenceDate time.Time          `gorm:"type:date;not null;uniqueIndex:idx_journal_reference,priority:3"`
	Remark        string             `gorm:"type:text"`
	Status        string             `gorm:"type:varchar(20);not null"`
	Lines         []JournalLineModel `gorm:"foreignKey:EntryID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// JournalLineModel debits or credits one account
type JournalLineModel struct {
	ID       uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntryID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position int             `gorm:"not null"`
	Account  string          `gorm:"type:varchar(140);not null"`
	Debit    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Credit   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_entry_lines"
}

// ToDomain converts the persistence model to a domain JournalEntry.
func (m *JournalEntryModel) ToDomain() *accounting.JournalEntry {
	je := &accounting.JournalEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		Title:         m.Title,
		Kind:          accounting.JournalKind(m.Kind),
		PostingDate:   m.PostingDate,
		ReferenceID:   m.ReferenceID,
		ReferenceDate: m.ReferenceDate,
		Remark:        m.Remark,
		Status:        accounting.DocStatus(m.Status),
	}
	for _, l := range m.Lines {
		je.Lines = append(je.Lines, accounting.JournalLine{Account: l.Account, Debit: l.Debit, Credit: l.Credit})
	}
	return je
}

// JournalEntryModelFromDomain creates a new persistence model, lines included,
// from a domain JournalEntry.
func JournalEntryModelFromDomain(je *accounting.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{
		Name:          je.Name,
		Title:         je.Title,
		Kind:          string(je.Kind),
		PostingDate:   je.PostingDate,
		ReferenceID:   je.ReferenceID,
		ReferenceDate: je.ReferenceDate,
		Remark:        je.Remark,
		Status:        je.Status.String(),
	}
	m.FromDomainBaseEntity(je.BaseEntity)
	for i, l := range je.Lines {
		m.Lines = append(m.Lines, JournalLineModel{
			ID:       uuid.New(),
			EntryID:  je.ID,
			Position: i + 1,
			Account:  l.Account,
			Debit:    l.Debit,
			Credit:   l.Credit,
		})
	}
	return m
}
