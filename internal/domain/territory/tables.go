package territory

import "maps"

// DefaultEUCountries lists EU member states by their ERP country name.
var DefaultEUCountries = []string{
	"Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus",
	"Czech Republic", "Denmark", "Estonia", "Finland", "France",
	"Germany", "Greece", "Hungary", "Ireland", "Italy", "Latvia",
	"Lithuania", "Luxembourg", "Malta", "Netherlands", "Poland",
	"Portugal", "Romania", "Slovakia", "Slovenia", "Spain",
	"Sweden",
}

// marketplaceCodes are codes the marketplace sends that ISO 3166 does not define.
// An empty name means the code resolves to no country.
var marketplaceCodes = map[string]string{
	"AA":         "United States", // APO/FPO addresses
	"AN":         "Netherlands",   // Netherlands Antilles
	"QM":         "Guernsey",
	"QN":         "Svalbard and Jan Mayen",
	"QO":         "Jersey",
	"TP":         "",
	"YU":         "",
	"CustomCode": "",
	"ZZ":         "",
}

// erpNames corrects ISO short names that differ from the ERP country list.
var erpNames = map[string]string{
	"Cabo Verde":                             "Cape Verde",
	"Congo, Democratic Republic of the":      "Congo, The Democratic Republic of the",
	"Czechia":                                "Czech Republic",
	"Côte d'Ivoire":                          "Ivory Coast",
	"Holy See":                               "Holy See (Vatican City State)",
	"Iran, Islamic Republic of":              "Iran",
	"Korea, Democratic People's Republic of": "Korea, Democratic Peoples Republic of",
	"Kosovo":                                 "",
	"Lao People's Democratic Republic":       "Lao Peoples Democratic Republic",
	"Palestine, State of":                    "Palestinian Territory, Occupied",
	"Syrian Arab Republic":                   "Syria",
	"Taiwan, Province of China":              "Taiwan",
	"Tanzania, United Republic of":           "Tanzania",
	"Türkiye":                                "Turkey",
	"United Kingdom of Great Britain and Northern Ireland": "United Kingdom",
	"United States of America":                             "United States",
	"Viet Nam":                                             "Vietnam",
}

// Tables is the immutable set of lookup tables used by the Resolver.
type Tables struct {
	homeCountry string
	extraCodes  map[string]string
	isoNames    map[string]string
	mismatches  map[string]string
	eu          map[string]struct{}
}

// NewTables builds the lookup tables for a merchant based in homeCountry.
// A nil euCountries selects DefaultEUCountries.
func NewTables(homeCountry string, euCountries []string) *Tables {
	if euCountries == nil {
		euCountries = DefaultEUCountries
	}
	t := &Tables{
		homeCountry: homeCountry,
		extraCodes:  maps.Clone(marketplaceCodes),
		isoNames:    maps.Clone(iso3166Names),
		mismatches:  maps.Clone(erpNames),
		eu:          make(map[string]struct{}, len(euCountries)),
	}
	for _, c := range euCountries {
		t.eu[c] = struct{}{}
	}
	return t
}

// HomeCountry returns the merchant's home country.
func (t *Tables) HomeCountry() string {
	return t.homeCountry
}

// IsEU reports whether country is an EU member state.
func (t *Tables) IsEU(country string) bool {
	_, ok := t.eu[country]
	return ok
}
