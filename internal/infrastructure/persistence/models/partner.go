package models

import (
	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/google/uuid"
)

// CustomerModel is the persistence model for the Customer domain entity.
type CustomerModel struct {
	BaseModel
	Name      string  `gorm:"type:varchar(140);not null;uniqueIndex"`
	BuyerID   *string `gorm:"type:varchar(100);uniqueIndex"`
	Territory string  `gorm:"type:varchar(100)"`
	TaxID     string  `gorm:"type:varchar(140)"`
	Details   string  `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity.
func (m *CustomerModel) ToDomain() *accounting.Customer {
	return &accounting.Customer{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		BuyerID:    deref(m.BuyerID),
		Territory:  m.Territory,
		TaxID:      m.TaxID,
		Details:    m.Details,
	}
}

// FromDomain populates the persistence model from a domain Customer entity.
func (m *CustomerModel) FromDomain(c *accounting.Customer) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Name = c.Name
	m.BuyerID = nullable(c.BuyerID)
	m.Territory = c.Territory
	m.TaxID = c.TaxID
	m.Details = c.Details
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer entity.
func CustomerModelFromDomain(c *accounting.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// AddressModel is the persistence model for the Address domain entity.
type AddressModel struct {
	BaseModel
	Name          string  `gorm:"type:varchar(200);not null;uniqueIndex"`
	MarketplaceID *string `gorm:"type:varchar(100);uniqueIndex"`
	Title         string  `gorm:"type:varchar(140)"`
	AddressType   string  `gorm:"type:varchar(20);not null"`
	Line1         string  `gorm:"type:varchar(200);index:idx_address_key,priority:1"`
	Line2         string  `gorm:"type:varchar(200);index:idx_address_key,priority:2"`
	City          string  `gorm:"type:varchar(100);index:idx_address_key,priority:3"`
	State         string  `gorm:"type:varchar(100)"`
	Postcode      string  `gorm:"type:varchar(20);index:idx_address_key,priority:4;index"`
	Country       string  `gorm:"type:varchar(100)"`
	Phone         string  `gorm:"type:varchar(50)"`
	Email         string  `gorm:"type:varchar(200)"`
	Links         []AddressLinkModel `gorm:"foreignKey:AddressID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (AddressModel) TableName() string {
	return "addresses"
}

// AddressLinkModel links an address to one customer
type AddressLinkModel struct {
	AddressID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName returns the table name for GORM
func (AddressLinkModel) TableName() string {
	return "address_links"
}

// ToDomain converts the persistence model to a domain Address entity.
func (m *AddressModel) ToDomain() *accounting.Address {
	a := &accounting.Address{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		MarketplaceID: deref(m.MarketplaceID),
		Title:         m.Title,
		AddressType:   m.AddressType,
		Line1:         m.Line1,
		Line2:         m.Line2,
		City:          m.City,
		State:         m.State,
		Postcode:      m.Postcode,
		Country:       m.Country,
		Phone:         m.Phone,
		Email:         m.Email,
	}
	for _, l := range m.Links {
		a.CustomerIDs = append(a.CustomerIDs, l.CustomerID)
	}
	return a
}

// FromDomain populates the persistence model from a domain Address entity.
func (m *AddressModel) FromDomain(a *accounting.Address) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Name = a.Name
	m.MarketplaceID = nullable(a.MarketplaceID)
	m.Title = a.Title
	m.AddressType = a.AddressType
	m.Line1 = a.Line1
	m.Line2 = a.Line2
	m.City = a.City
	m.State = a.State
	m.Postcode = a.Postcode
	m.Country = a.Country
	m.Phone = a.Phone
	m.Email = a.Email
	m.Links = make([]AddressLinkModel, 0, len(a.CustomerIDs))
	for _, id := range a.CustomerIDs {
		m.Links = append(m.Links, AddressLinkModel{AddressID: a.ID, CustomerID: id})
	}
}

// AddressModelFromDomain creates a new persistence model from a domain Address entity.
func AddressModelFromDomain(a *accounting.Address) *AddressModel {
	m := &AddressModel{}
	m.FromDomain(a)
	return m
}
