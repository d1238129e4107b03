package models

import "github.com/erp/marketsync/internal/domain/accounting"

// ItemModel is the persistence model for catalog items. Items are maintained
// by the ERP; the synchronizer only reads them.
type ItemModel struct {
	Code        string `gorm:"type:varchar(140);primaryKey"`
	Description string `gorm:"type:text"`
	ListingID   string `gorm:"type:varchar(50);index"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *ItemModel) ToDomain() *accounting.Item {
	return &accounting.Item{Code: m.Code, Description: m.Description, ListingID: m.ListingID}
}

// AccountModel is the persistence model for ledger accounts.
type AccountModel struct {
	Name     string `gorm:"type:varchar(140);primaryKey"`
	Currency string `gorm:"type:varchar(3);not null"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account.
func (m *AccountModel) ToDomain() *accounting.Account {
	return &accounting.Account{Name: m.Name, Currency: m.Currency}
}
