package aggregation

import (
	"strings"

	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
)

// regionTracker carries the measure region forward through one pass.
// A venue country moves it; a packaged drink borrows its brewery's region
// for that record only.
type regionTracker struct {
	current measures.Region
}

// newRegionTracker picks the starting region: first venue country, then first
// brewery country, then fallback.
func newRegionTracker(checkins []models.Checkin, fallback *measures.Region) (*regionTracker, error) {
	for i := range checkins {
		if country := strings.TrimSpace(checkins[i].VenueCountry); country != "" {
			return &regionTracker{current: measures.RegionForCountry(country)}, nil
		}
	}
	for i := range checkins {
		if country := strings.TrimSpace(checkins[i].BreweryCountry); country != "" {
			return &regionTracker{current: measures.RegionForCountry(country)}, nil
		}
	}
	if fallback != nil {
		return &regionTracker{current: *fallback}, nil
	}
	return nil, &AmbiguousRegionError{Records: len(checkins)}
}

// regionFor returns the region to resolve c with, updating the carried
// region when c names a venue country.
func (t *regionTracker) regionFor(c *models.Checkin) measures.Region {
	serving := strings.ToLower(strings.TrimSpace(c.ServingType))
	brewery := strings.TrimSpace(c.BreweryCountry)
	if (serving == "can" || serving == "bottle") && brewery != "" {
		return measures.RegionForCountry(brewery)
	}

	if venue := strings.TrimSpace(c.VenueCountry); venue != "" {
		t.current = measures.RegionForCountry(venue)
	}
	return t.current
}
