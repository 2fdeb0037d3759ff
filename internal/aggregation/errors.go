package aggregation

import "fmt"

// NoDataError is returned when a pass has nothing with a usable date
type NoDataError struct {
	Records int
	Skipped int
}

func (e *NoDataError) Error() string {
	if e.Records == 0 {
		return "no checkins to summarise"
	}
	return fmt.Sprintf("no usable checkins: %d of %d records skipped", e.Skipped, e.Records)
}

// IsTransient returns false as the input itself is empty
func (e *NoDataError) IsTransient() bool {
	return false
}

// AmbiguousRegionError is returned when no record names a country and no
// fallback region is configured
type AmbiguousRegionError struct {
	Records int
}

func (e *AmbiguousRegionError) Error() string {
	return fmt.Sprintf("cannot infer measure region: none of %d checkins has a venue or brewery country and no default region is configured", e.Records)
}

// IsTransient returns false
func (e *AmbiguousRegionError) IsTransient() bool {
	return false
}
