package territory

import (
	"strings"

	"golang.org/x/text/language"
)

// Resolver resolves marketplace country codes and tax territories.
type Resolver struct {
	tables *Tables
}

// NewResolver creates a resolver over the given tables.
func NewResolver(tables *Tables) *Resolver {
	return &Resolver{tables: tables}
}

// Tables returns the tables backing the resolver.
func (r *Resolver) Tables() *Tables {
	return r.tables
}

// ResolveCountry maps a marketplace country code onto an ERP country name.
// It returns false for empty, unknown and retired codes; callers treat those as
// the home country for tax purposes.
func (r *Resolver) ResolveCountry(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}

	if name, ok := r.tables.extraCodes[code]; ok {
		return name, name != ""
	}

	region, err := language.ParseRegion(code)
	if err != nil {
		return "", false
	}
	name, ok := r.tables.isoNames[region.String()]
	if !ok {
		return "", false
	}

	if fixed, ok := r.tables.mismatches[name]; ok {
		return fixed, fixed != ""
	}
	return name, true
}

// Territory returns the tax territory for an ERP country name. No country is
// treated as the home country.
func (r *Resolver) Territory(country string) Territory {
	switch {
	case country == "" || country == r.tables.homeCountry:
		return Home
	case r.tables.IsEU(country):
		return EU
	default:
		return RestOfWorld
	}
}

// TerritoryName returns the ERP territory record name for t.
func (r *Resolver) TerritoryName(t Territory) string {
	switch t {
	case Home:
		return r.tables.homeCountry
	case EU:
		return "EU"
	default:
		return "Rest Of The World"
	}
}
