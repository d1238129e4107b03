package integration

import (
	"strings"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/territory"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ukCountry     = "United Kingdom"
	norwayCountry = "Norway"
	// voecDeclaration is the Norwegian VOEC scheme line eBay appends to address line 2
	voecDeclaration = "VOEC NO:2024926 Code:Paid"
	placeholder     = "-"
)

// CustomerDraft is the customer data extracted from an order
type CustomerDraft struct {
	BuyerID string
	// Name is the shipping name or the buyer id, depending on settings
	Name string
	// ShippingName is the cleaned shipping name, possibly empty
	ShippingName string
	// Postcode is the normalized shipping postcode, used to adopt unclaimed customers
	Postcode     string
	Country      string
	Territory    territory.Territory
	TaxID        string
	Details      string
}

// AddressDraft is the shipping address data extracted from an order
type AddressDraft struct {
	MarketplaceID string
	Title         string
	Line1         string
	Line2         string
	City          string
	State         string
	Postcode      string
	Country       string
	Phone         string
	Email         string
}

// CustomerExtractor turns marketplace orders into customer and address drafts
type CustomerExtractor struct {
	resolver        *territory.Resolver
	useShippingName bool
	titleCaser      cases.Caser
}

// NewCustomerExtractor creates a CustomerExtractor
func NewCustomerExtractor(resolver *territory.Resolver, useShippingName bool) *CustomerExtractor {
	return &CustomerExtractor{
		resolver:        resolver,
		useShippingName: useShippingName,
		titleCaser:      cases.Title(language.Und),
	}
}

// Extract builds the customer and address drafts for an order
func (e *CustomerExtractor) Extract(order *marketplace.Order) (CustomerDraft, AddressDraft) {
	buyerID := order.Buyer.Username
	shipTo := order.ShipTo
	addr := shipTo.Address

	country, _ := e.resolver.ResolveCountry(addr.CountryCode)

	line1 := stripEVTN(addr.AddressLine1)
	line2 := stripEVTN(addr.AddressLine2)
	if country == norwayCountry && line2 == voecDeclaration {
		line2 = ""
	}
	if line1 == "" && line2 != "" {
		line1, line2 = line2, ""
	}

	shippingName := e.tidyName(shipTo.FullName)
	name := buyerID
	if e.useShippingName && shippingName != "" {
		name = shippingName
	}

	postcode := addr.PostalCode
	if postcode != "" && country == ukCountry {
		postcode = NormalizeUKPostcode(postcode)
	}

	title := shippingName
	if title == "" {
		title = buyerID
	}

	cust := CustomerDraft{
		BuyerID:      buyerID,
		Name:         name,
		ShippingName: shippingName,
		Postcode:     postcode,
		Country:      country,
		Territory:    e.resolver.Territory(country),
		TaxID:        taxID(order.Buyer.TaxIdentifier),
		Details:      e.taxDetails(order.Buyer.TaxAddress),
	}
	address := AddressDraft{
		MarketplaceID: "ORDER_" + order.OrderID,
		Title:         title,
		Line1:         orPlaceholder(line1),
		Line2:         line2,
		City:          orPlaceholder(addr.City),
		State:         addr.StateOrProvince,
		Postcode:      postcode,
		Country:       country,
		Phone:         shipTo.Phone,
		Email:         shipTo.Email,
	}
	return cust, address
}

// tidyName title-cases a multi-word name that arrived in a single case
func (e *CustomerExtractor) tidyName(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, " ") {
		return name
	}
	lower, upper := strings.ToLower(name), strings.ToUpper(name)
	if lower == upper {
		return name
	}
	if name == lower || name == upper {
		return e.titleCaser.String(name)
	}
	return name
}

func (e *CustomerExtractor) taxDetails(ta *marketplace.TaxAddress) string {
	if ta == nil {
		return ""
	}
	country, ok := e.resolver.ResolveCountry(ta.CountryCode)
	if !ok || country == "" {
		country = "None"
	}
	return strings.Join([]string{
		"eBay Tax address details:",
		"Postal code: " + orNone(ta.PostalCode),
		"City: " + orNone(ta.City),
		"State or province: " + orNone(ta.StateOrProvince),
		"Country: " + country,
	}, "\n")
}

func taxID(ti *marketplace.TaxIdentifier) string {
	if ti == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{ti.Type, ti.TaxpayerID, ti.IssuingCountry} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// IsEVTN reports whether an address fragment is an eBay virtual tracking number
func IsEVTN(fragment string) bool {
	return strings.HasPrefix(fragment, "ebay") && len(fragment) == 11
}

// stripEVTN removes an eVTN that makes up the whole line or its last word
func stripEVTN(line string) string {
	if line == "" {
		return line
	}
	if IsEVTN(line) {
		return ""
	}
	if i := strings.LastIndex(line, " "); i >= 0 && IsEVTN(line[i+1:]) {
		return line[:i]
	}
	return line
}

// NormalizeUKPostcode uppercases a UK postcode and puts a single space
// before its last three characters
func NormalizeUKPostcode(postcode string) string {
	p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(postcode), " ", ""))
	if len(p) <= 3 {
		return p
	}
	return p[:len(p)-3] + " " + p[len(p)-3:]
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
