package ecommerce

import (
	"errors"
	"strings"
	"time"
)

// EbayConfig holds configuration for the eBay REST selling APIs
type EbayConfig struct {
	// BaseURL hosts the Fulfillment API
	BaseURL string
	// FinancesBaseURL hosts the Finances API
	FinancesBaseURL string
	// Token is an OAuth user access token with the fulfillment and finances scopes
	Token string
	// MarketplaceID is sent as X-EBAY-C-MARKETPLACE-ID
	MarketplaceID string
	// Timeout bounds each HTTP request
	Timeout time.Duration
	// PageSize is the limit sent on paged calls
	PageSize int
	// FetchConcurrency bounds concurrent page reads
	FetchConcurrency int
	Retry            RetryPolicy
}

const (
	EbayProductionAPIURL         = "https://api.ebay.com"
	EbayProductionFinancesAPIURL = "https://apiz.ebay.com"
	EbaySandboxAPIURL            = "https://api.sandbox.ebay.com"
	EbaySandboxFinancesAPIURL    = "https://apiz.sandbox.ebay.com"

	// maxPageSize is the largest limit the Fulfillment API accepts
	maxPageSize = 200
)

// Errors for eBay configuration
var (
	ErrEbayConfigMissingToken   = errors.New("ebay: access token is required")
	ErrEbayConfigMissingBaseURL = errors.New("ebay: base URL is required")
)

// NewEbayConfig creates a production configuration with defaults
func NewEbayConfig(token string) *EbayConfig {
	return &EbayConfig{
		BaseURL:          EbayProductionAPIURL,
		FinancesBaseURL:  EbayProductionFinancesAPIURL,
		Token:            token,
		MarketplaceID:    "EBAY_GB",
		Timeout:          30 * time.Second,
		PageSize:         maxPageSize,
		FetchConcurrency: 4,
		Retry:            DefaultRetryPolicy(),
	}
}

// Validate checks required fields and fills defaults
func (c *EbayConfig) Validate() error {
	if c.Token == "" {
		return ErrEbayConfigMissingToken
	}
	if c.BaseURL == "" {
		return ErrEbayConfigMissingBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.FinancesBaseURL == "" {
		c.FinancesBaseURL = c.BaseURL
	}
	c.FinancesBaseURL = strings.TrimRight(c.FinancesBaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageSize <= 0 || c.PageSize > maxPageSize {
		c.PageSize = maxPageSize
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 1
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = DefaultRetryPolicy()
	}
	return nil
}
