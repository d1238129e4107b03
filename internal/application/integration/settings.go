package integration

import (
	"fmt"
	"time"

	"github.com/erp/marketsync/internal/domain/territory"
	"github.com/shopspring/decimal"
)

// Settings configures the synchronization services. It is built once at
// startup from configuration and never mutated.
type Settings struct {
	// HomeCurrency is the currency the marketplace pays out in
	HomeCurrency string
	// DefaultDays is the fetch window used when a request gives none
	DefaultDays int
	// MaxDays caps every fetch window
	MaxDays int
	// ContinueOnError keeps the run going after an unexpected per-order error
	ContinueOnError bool
	// DeductCollectedHomeTax subtracts marketplace-collected home VAT from the invoice tax line
	DeductCollectedHomeTax bool
	// UseShippingName names new customers after the shipping name instead of the buyer id
	UseShippingName bool
	// MaxNameDuplicates is how many numeric suffixes are tried on a name collision
	MaxNameDuplicates int
	// SkipToday leaves today's transactions for a later run
	SkipToday bool

	ShippingItemCode    string
	ShippingDescription string

	// Fee documents
	FeeItemCode       string
	FeeSupplier       string
	FeeExpenseAccount string
	FeeTaxAccount     string
	// FeeVATRate is the domestic VAT fraction included in marketplace fees
	FeeVATRate decimal.Decimal

	// ClearingAccount is the marketplace-held balance account
	ClearingAccount string
	// PayoutAccount is the bank account payouts are sent to
	PayoutAccount string

	TaxProfiles territory.TaxProfiles

	// LockTTL bounds how long a run may hold the run lock
	LockTTL time.Duration
}

// DefaultSettings returns settings for a GBP seller with UK VAT at 20%
func DefaultSettings() Settings {
	return Settings{
		HomeCurrency:           "GBP",
		DefaultDays:            7,
		MaxDays:                90,
		ContinueOnError:        true,
		DeductCollectedHomeTax: true,
		UseShippingName:        true,
		MaxNameDuplicates:      4,
		ShippingItemCode:       "SHIPPING",
		ShippingDescription:    "Shipping costs (from eBay)",
		FeeItemCode:            "EBAY-FEE",
		FeeSupplier:            "eBay",
		FeeExpenseAccount:      "eBay Managed Fees",
		FeeTaxAccount:          "VAT",
		FeeVATRate:             decimal.RequireFromString("0.2"),
		ClearingAccount:        "eBay Managed GBP",
		PayoutAccount:          "Bank Current Account",
		TaxProfiles: territory.TaxProfiles{
			territory.Home: {
				IncomeAccount:         "Sales",
				ShippingIncomeAccount: "Shipping (Sales)",
				TaxAccount:            "VAT",
				VATRate:               decimal.RequireFromString("0.2"),
			},
			territory.EU: {
				IncomeAccount:         "Sales EU",
				ShippingIncomeAccount: "Shipping EU (Sales)",
				TaxAccount:            "VAT",
				VATRate:               decimal.Zero,
			},
			territory.RestOfWorld: {
				IncomeAccount:         "Sales Non-EU",
				ShippingIncomeAccount: "Shipping Non-EU (Sales)",
				TaxAccount:            "VAT",
				VATRate:               decimal.Zero,
			},
		},
		LockTTL: 30 * time.Minute,
	}
}

// ModeOfPayment is the payment mode recorded on invoices and fee documents
func (s Settings) ModeOfPayment() string {
	return "eBay Managed " + s.HomeCurrency
}

// ClampDays applies the default and maximum to a requested window
func (s Settings) ClampDays(days *int) int {
	n := s.DefaultDays
	if days != nil && *days > 0 {
		n = *days
	}
	return min(n, s.MaxDays)
}

// RequiredAccounts lists the ledger accounts that must exist before a run
func (s Settings) RequiredAccounts() []string {
	accounts := []string{s.ClearingAccount, s.PayoutAccount, s.FeeExpenseAccount}
	if s.FeeVATRate.IsPositive() {
		accounts = append(accounts, s.FeeTaxAccount)
	}
	return append(accounts, s.TaxProfiles.Accounts()...)
}

// Validate checks the settings are usable
func (s Settings) Validate() error {
	switch {
	case len(s.HomeCurrency) != 3:
		return fmt.Errorf("invalid home currency %q", s.HomeCurrency)
	case s.MaxDays <= 0:
		return fmt.Errorf("max days must be positive")
	case s.MaxNameDuplicates < 0:
		return fmt.Errorf("max name duplicates cannot be negative")
	case s.ShippingItemCode == "" || s.FeeItemCode == "":
		return fmt.Errorf("shipping and fee item codes are required")
	case s.ClearingAccount == "" || s.PayoutAccount == "":
		return fmt.Errorf("clearing and payout accounts are required")
	}
	for _, t := range []territory.Territory{territory.Home, territory.EU, territory.RestOfWorld} {
		if _, err := s.TaxProfiles.For(t); err != nil {
			return err
		}
	}
	return nil
}
