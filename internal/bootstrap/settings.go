// Package bootstrap assembles the synchronizer from configuration. The HTTP
// server and the command line tool share it.
package bootstrap

import (
	"fmt"

	app "github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/territory"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/ecommerce"
	"github.com/shopspring/decimal"
)

// Settings converts the sync and tax configuration into service settings
func Settings(cfg *config.Config) (app.Settings, error) {
	s := cfg.Sync
	feeRate, err := parseRate("sync.fee_vat_rate", s.FeeVATRate)
	if err != nil {
		return app.Settings{}, err
	}

	profiles := make(territory.TaxProfiles, 3)
	for t, p := range map[territory.Territory]config.TaxProfileConfig{
		territory.Home:        cfg.Tax.Home,
		territory.EU:          cfg.Tax.EU,
		territory.RestOfWorld: cfg.Tax.RestOfWorld,
	} {
		rate, err := parseRate("tax vat_rate for "+string(t), p.VATRate)
		if err != nil {
			return app.Settings{}, err
		}
		profiles[t] = territory.TaxProfile{
			IncomeAccount:         p.IncomeAccount,
			ShippingIncomeAccount: p.ShippingIncomeAccount,
			TaxAccount:            p.TaxAccount,
			VATRate:               rate,
		}
	}

	settings := app.Settings{
		HomeCurrency:           s.HomeCurrency,
		DefaultDays:            s.DefaultDays,
		MaxDays:                s.MaxDays,
		ContinueOnError:        s.ContinueOnError,
		DeductCollectedHomeTax: s.DeductCollectedHomeTax,
		UseShippingName:        s.UseShippingName,
		MaxNameDuplicates:      s.MaxNameDuplicates,
		SkipToday:              s.SkipToday,
		ShippingItemCode:       s.ShippingItemCode,
		ShippingDescription:    s.ShippingDescription,
		FeeItemCode:            s.FeeItemCode,
		FeeSupplier:            s.FeeSupplier,
		FeeExpenseAccount:      s.FeeExpenseAccount,
		FeeTaxAccount:          s.FeeTaxAccount,
		FeeVATRate:             feeRate,
		ClearingAccount:        s.ClearingAccount,
		PayoutAccount:          s.PayoutAccount,
		TaxProfiles:            profiles,
		LockTTL:                s.LockTTL,
	}
	if err := settings.Validate(); err != nil {
		return app.Settings{}, fmt.Errorf("invalid sync settings: %w", err)
	}
	return settings, nil
}

// parseRate reads a VAT fraction between 0 and 1
func parseRate(name, value string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be in [0, 1), got %s", name, value)
	}
	return rate, nil
}

// Resolver builds the territory resolver for the configured home country
func Resolver(cfg *config.Config) *territory.Resolver {
	return territory.NewResolver(territory.NewTables(cfg.Sync.HomeCountry, cfg.Sync.EUCountries))
}

// EbayConfig converts the marketplace configuration into client settings
func EbayConfig(cfg config.MarketplaceConfig) *ecommerce.EbayConfig {
	return &ecommerce.EbayConfig{
		BaseURL:          cfg.BaseURL,
		FinancesBaseURL:  cfg.FinancesBaseURL,
		Token:            cfg.Token,
		MarketplaceID:    cfg.MarketplaceID,
		Timeout:          cfg.Timeout,
		PageSize:         cfg.PageSize,
		FetchConcurrency: cfg.FetchConcurrency,
		Retry: ecommerce.RetryPolicy{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryDelay,
			Multiplier:   cfg.RetryMultiplier,
		},
	}
}
