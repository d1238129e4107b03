package marketplace

// UnknownSite is used when the listing or purchase site cannot be identified
const UnknownSite = "EBAY_UNKNOWN"

var siteNames = map[string]string{
	"EBAY_US":        "United States",
	"EBAY_AT":        "Austria",
	"EBAY_AU":        "Australia",
	"EBAY_BE":        "Belgium",
	"EBAY_CA":        "Canada",
	"EBAY_CH":        "Switzerland",
	"EBAY_CN":        "China",
	"EBAY_CZ":        "Czech Republic",
	"EBAY_DE":        "Germany",
	"EBAY_DK":        "Denmark",
	"EBAY_ES":        "Spain",
	"EBAY_FI":        "Finland",
	"EBAY_FR":        "France",
	"EBAY_GB":        "United Kingdom",
	"EBAY_GR":        "Greece",
	"EBAY_HK":        "Hong Kong",
	"EBAY_HU":        "Hungary",
	"EBAY_ID":        "Indonesia",
	"EBAY_IE":        "Ireland",
	"EBAY_IL":        "Israel",
	"EBAY_IN":        "India",
	"EBAY_IT":        "Italy",
	"EBAY_JP":        "Japan",
	"EBAY_MY":        "Malaysia",
	"EBAY_NL":        "Netherlands",
	"EBAY_NO":        "Norway",
	"EBAY_NZ":        "New Zealand",
	"EBAY_PE":        "Peru",
	"EBAY_PH":        "Philippines",
	"EBAY_PL":        "Poland",
	"EBAY_PR":        "Puerto Rico",
	"EBAY_PT":        "Portugal",
	"EBAY_QA":        "Qatar",
	"EBAY_RU":        "Russia",
	"EBAY_SE":        "Sweden",
	"EBAY_SG":        "Singapore",
	"EBAY_TH":        "Thailand",
	"EBAY_TW":        "Taiwan",
	"EBAY_VN":        "Vietnam",
	"EBAY_ZA":        "South Africa",
	"EBAY_MOTORS_US": "Motors",
}

// SiteName returns the display name for a marketplace id.
func SiteName(marketplaceID string) (string, bool) {
	name, ok := siteNames[marketplaceID]
	return name, ok
}

// OrderSites identifies the listing and purchase sites of an order. A site is
// UnknownSite unless every line item agrees on one known marketplace id; the
// returned warnings describe each site that could not be identified.
func OrderSites(o Order) (listing, purchase string, warnings []string) {
	listing, purchase = UnknownSite, UnknownSite

	identify := func(kind string, pick func(LineItem) string) (string, string) {
		ids := make(map[string]struct{})
		for _, li := range o.LineItems {
			ids[pick(li)] = struct{}{}
		}
		if len(ids) != 1 {
			return UnknownSite, "unable to identify " + kind + " site"
		}
		for id := range ids {
			if name, ok := SiteName(id); ok {
				return name, ""
			}
			return UnknownSite, "unknown " + kind + " site " + id
		}
		return UnknownSite, ""
	}

	var w string
	if listing, w = identify("listing", func(li LineItem) string { return li.ListingMarketplaceID }); w != "" {
		warnings = append(warnings, w)
	}
	if purchase, w = identify("purchase", func(li LineItem) string { return li.PurchaseMarketplaceID }); w != "" {
		warnings = append(warnings, w)
	}
	return listing, purchase, warnings
}
