// Package accounting models the ERP side of the synchronization: customers,
// addresses, order records and the accounting documents derived from
// marketplace data.
package accounting

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/marketsync/internal/domain/shared"
)

var (
	ErrTooManyDuplicates = errors.New("accounting: too many duplicate entries")
	ErrEmptyName         = errors.New("accounting: name cannot be empty")
)

// Customer is an ERP customer. BuyerID, once set, links the customer to one
// marketplace buyer.
type Customer struct {
	shared.BaseEntity
	// Name is the unique customer name
	Name string
	// BuyerID is the marketplace buyer id, empty for customers created elsewhere
	BuyerID   string
	Territory string
	TaxID     string
	// Details holds free-form notes such as the buyer's tax address
	Details string
}

// NewCustomer creates a customer
func NewCustomer(name, buyerID, territory string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return &Customer{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		BuyerID:    buyerID,
		Territory:  territory,
	}, nil
}

// HasPlaceholderName returns true if the customer is still named after its
// buyer id, including the "-N" suffixed names DuplicateNames hands out when the
// plain buyer id was taken.
func (c *Customer) HasPlaceholderName() bool {
	if c.BuyerID == "" {
		return false
	}
	if c.Name == c.BuyerID {
		return true
	}
	suffix, ok := strings.CutPrefix(c.Name, c.BuyerID+"-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(suffix)
	return err == nil && n > 0 && strconv.Itoa(n) == suffix
}

// AdoptBuyerID links an unclaimed customer to a marketplace buyer
func (c *Customer) AdoptBuyerID(buyerID string) error {
	if c.BuyerID != "" && c.BuyerID != buyerID {
		return fmt.Errorf("%w: customer %s already belongs to buyer %s", shared.ErrInvalidState, c.Name, c.BuyerID)
	}
	c.BuyerID = buyerID
	c.Touch()
	return nil
}

// Rename changes the customer name
func (c *Customer) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	c.Name = name
	c.Touch()
	return nil
}

// SetTerritory changes the territory, reporting whether it changed
func (c *Customer) SetTerritory(territory string) bool {
	if c.Territory == territory {
		return false
	}
	c.Territory = territory
	c.Touch()
	return true
}

// DuplicateNames returns base followed by base-1 .. base-max, the candidate
// document names tried in turn when base is already taken.
func DuplicateNames(base string, max int) []string {
	names := make([]string, 0, max+1)
	names = append(names, base)
	for i := 1; i <= max; i++ {
		names = append(names, fmt.Sprintf("%s-%d", base, i))
	}
	return names
}
