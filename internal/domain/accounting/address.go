package accounting

import (
	"slices"
	"strings"

	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/google/uuid"
)

// AddressTypeShipping is the only address type the synchronizer creates
const AddressTypeShipping = "Shipping"

// AddressKey is the canonical tuple used to deduplicate addresses that carry
// no marketplace id.
type AddressKey struct {
	Line1    string
	Line2    string
	City     string
	Postcode string
}

// Address is an ERP address record
type Address struct {
	shared.BaseEntity
	// Name is the unique document name, "<title>-<type>" with an optional numeric suffix
	Name string
	// MarketplaceID is the marketplace address id; never overwritten once set
	MarketplaceID string
	Title         string
	AddressType   string
	Line1         string
	Line2         string
	City          string
	State         string
	Postcode      string
	Country       string
	Phone         string
	Email         string
	// CustomerIDs are the customers linked to this address
	CustomerIDs []uuid.UUID
}

// NewAddress creates an address with its base document name
func NewAddress(title string) *Address {
	a := &Address{
		BaseEntity:  shared.NewBaseEntity(),
		Title:       strings.TrimSpace(title),
		AddressType: AddressTypeShipping,
	}
	a.Name = a.BaseName()
	return a
}

// BaseName returns the document name before any de-duplication suffix
func (a *Address) BaseName() string {
	return a.Title + "-" + a.AddressType
}

// Key returns the canonical deduplication key
func (a *Address) Key() AddressKey {
	return AddressKey{Line1: a.Line1, Line2: a.Line2, City: a.City, Postcode: a.Postcode}
}

// AttachMarketplaceID sets the marketplace id if none is set and reports whether
// the record changed. An existing id is never replaced.
func (a *Address) AttachMarketplaceID(id string) bool {
	if id == "" || a.MarketplaceID != "" {
		return false
	}
	a.MarketplaceID = id
	a.Touch()
	return true
}

// IsLinkedTo returns true if the customer is linked
func (a *Address) IsLinkedTo(customerID uuid.UUID) bool {
	return slices.Contains(a.CustomerIDs, customerID)
}

// LinkCustomer links a customer, reporting whether a link was added
func (a *Address) LinkCustomer(customerID uuid.UUID) bool {
	if a.IsLinkedTo(customerID) {
		return false
	}
	a.CustomerIDs = append(a.CustomerIDs, customerID)
	a.Touch()
	return true
}
