package measures

import (
	"fmt"
	"strings"
)

// Region selects which unit and serving-size tables apply to a checkin
type Region int

const (
	// Europe uses the imperial (UK) pint and ounce
	Europe Region = iota
	// USA uses the US customary pint and fluid ounce
	USA
)

// String returns the short code used in configuration and reports
func (r Region) String() string {
	if r == USA {
		return "usa"
	}
	return "eur"
}

// ParseRegion accepts the short codes plus a few spelled-out forms.
func ParseRegion(s string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usa", "us":
		return USA, nil
	case "eur", "europe", "eu", "uk":
		return Europe, nil
	}
	return Europe, fmt.Errorf("unknown region %q, expected usa or eur", s)
}

var usaCountryNames = map[string]bool{
	"united states":            true,
	"united states of america": true,
	"usa":                      true,
	"us":                       true,
}

// RegionForCountry maps a venue or brewery country onto a region. Anything
// that is not the United States gets European measures.
func RegionForCountry(country string) Region {
	if usaCountryNames[strings.ToLower(strings.TrimSpace(country))] {
		return USA
	}
	return Europe
}
