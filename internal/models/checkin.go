package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Checkin is a single logged consumption event as found in an Untappd
// checkin export. Only the fields read by the summaries are decoded.
type Checkin struct {
	CheckinID      string        `json:"checkin_id,omitempty"`
	CreatedAt      string        `json:"created_at"`
	Comment        string        `json:"comment"`
	ServingType    string        `json:"serving_type"`
	ABV            OptionalFloat `json:"beer_abv"`
	RatingScore    OptionalFloat `json:"rating_score"`
	BeerName       string        `json:"beer_name"`
	BeerType       string        `json:"beer_type"`
	BreweryName    string        `json:"brewery_name"`
	BreweryCountry string        `json:"brewery_country"`
	VenueCountry   string        `json:"venue_country"`
}

// OptionalFloat decodes a JSON number, numeric string, empty string or null.
// Exports are not consistent about which of these they emit.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Float returns a present value.
func Float(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (f *OptionalFloat) UnmarshalJSON(data []byte) error {
	*f = OptionalFloat{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}

	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		raw = s
	}

	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return &ValidationError{
			Field:   "number",
			Value:   string(trimmed),
			Message: fmt.Sprintf("invalid numeric value %s", trimmed),
		}
	}

	f.Value = v
	f.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (f OptionalFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// NonZero reports whether the value is present and not zero. Untappd
// writes 0 for "no rating" and for unknown ABV.
func (f OptionalFloat) NonZero() bool {
	return f.Valid && f.Value != 0
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a checkin timestamp in any of the supported layouts.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &ValidationError{
		Field:   "created_at",
		Value:   value,
		Message: fmt.Sprintf("unrecognised timestamp %q", value),
	}
}

// Date returns the calendar date of the checkin in the timestamp's own
// offset, as midnight UTC.
func (c *Checkin) Date() (time.Time, error) {
	t, err := ParseTimestamp(c.CreatedAt)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Style is the beer type up to the first " -" (so "IPA - New England"
// becomes "IPA").
func (c *Checkin) Style() string {
	style := c.BeerType
	if idx := strings.Index(style, " -"); idx >= 0 {
		style = style[:idx]
	}
	return strings.TrimSpace(style)
}

// Producer is the trimmed brewery name.
func (c *Checkin) Producer() string {
	return strings.TrimSpace(c.BreweryName)
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
