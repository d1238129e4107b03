// Package territory maps marketplace country codes onto ERP country names and
// the tax territories that drive income accounts and VAT rates.
package territory

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Territory is the tax territory a customer or order falls under.
type Territory string

const (
	Home        Territory = "HOME"
	EU          Territory = "EU"
	RestOfWorld Territory = "REST_OF_WORLD"
)

// TaxProfile holds the ledger accounts and domestic VAT rate used for one territory.
type TaxProfile struct {
	IncomeAccount         string
	ShippingIncomeAccount string
	TaxAccount            string
	VATRate               decimal.Decimal
}

// TaxProfiles is the per-territory tax configuration, built once at startup.
type TaxProfiles map[Territory]TaxProfile

// For returns the profile for t.
func (p TaxProfiles) For(t Territory) (TaxProfile, error) {
	profile, ok := p[t]
	if !ok {
		return TaxProfile{}, fmt.Errorf("territory: no tax profile for %s", t)
	}
	return profile, nil
}

// Accounts lists every ledger account referenced by the profiles.
func (p TaxProfiles) Accounts() []string {
	accounts := make([]string, 0, len(p)*3)
	for _, t := range []Territory{Home, EU, RestOfWorld} {
		profile, ok := p[t]
		if !ok {
			continue
		}
		accounts = append(accounts, profile.IncomeAccount, profile.ShippingIncomeAccount, profile.TaxAccount)
	}
	return accounts
}
