// Package measures turns the serving notes written on a checkin into a
// volume in millilitres.
//
// A note is the first square-bracketed fragment of a checkin comment, such as
// "[pint]", "[330ml]", "[half]" or "[2/3 pint]". When a checkin has no usable
// note, the serving type ("draft", "can", ...) supplies a regional default.
package measures

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// InvalidMeasureError reports a note that resolves to more than the
// configured maximum. It usually means a unit was left out ("[500]").
type InvalidMeasureError struct {
	Text        string
	Millilitres float64
}

func (e *InvalidMeasureError) Error() string {
	return fmt.Sprintf("measure of [%s] appears to be invalid (%.0fml). Did you miss out a unit?", e.Text, e.Millilitres)
}

// IsTransient returns false; the input has to be corrected
func (e *InvalidMeasureError) IsTransient() bool {
	return false
}

// grammarRule pairs a pattern with the factor it applies to the unit volume.
// The volume is unit * numerator / denominator, evaluated left to right.
type grammarRule struct {
	name    string
	pattern *regexp.Regexp
	factor  func(groups map[string]string) (numerator, denominator float64, ok bool)
}

// grammar is evaluated in order and the first matching rule wins
var grammar = buildGrammar()

var bracketPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// parseNumber reads a digit string. Values too large for a float64 become
// +Inf so that they fail the bound check instead of being dropped.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func buildGrammar() []grammarRule {
	unit := `(?P<unit>` + strings.Join(unitOrder, "|") + `)s?`
	optionalUnit := `(` + unit + `)?`
	divisor := `(?P<divisor>` + strings.Join(divisorOrder, "|") + `)`
	fraction := `(?P<numerator>\d+)/(?P<denominator>\d+)`
	quantity := `(?P<quantity>[\d.]+)`
	space := `\s*`

	return []grammarRule{
		{
			name:    "unit",
			pattern: regexp.MustCompile(`^` + unit + `$`),
			factor: func(map[string]string) (float64, float64, bool) {
				return 1, 1, true
			},
		},
		{
			name:    "quantity",
			pattern: regexp.MustCompile(`^` + quantity + space + optionalUnit + `$`),
			factor: func(groups map[string]string) (float64, float64, bool) {
				q, ok := parseNumber(groups["quantity"])
				return q, 1, ok
			},
		},
		{
			name:    "divisor",
			pattern: regexp.MustCompile(`^` + divisor + space + optionalUnit + `$`),
			factor: func(groups map[string]string) (float64, float64, bool) {
				return 1, divisors[groups["divisor"]], true
			},
		},
		{
			name:    "fraction",
			pattern: regexp.MustCompile(`^` + fraction + space + optionalUnit + `$`),
			factor: func(groups map[string]string) (float64, float64, bool) {
				num, ok := parseNumber(groups["numerator"])
				if !ok {
					return 0, 0, false
				}
				den, ok := parseNumber(groups["denominator"])
				if !ok || den == 0 {
					return 0, 0, false
				}
				return num, den, true
			},
		},
	}
}

// Config tunes a Resolver
type Config struct {
	DefaultUnit     string
	MaxValidMeasure int
}

// DefaultConfig returns the pint default and the 2500ml bound
func DefaultConfig() Config {
	return Config{
		DefaultUnit:     DefaultUnit,
		MaxValidMeasure: MaxValidMeasure,
	}
}

// Resolver converts notes and serving types to millilitres for one region.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	region      Region
	units       map[string]float64
	servings    map[string]float64
	defaultUnit string
	maxValid    float64
}

// NewResolver builds a resolver for region. Zero config fields take defaults.
func NewResolver(region Region, cfg Config) (*Resolver, error) {
	if region != Europe && region != USA {
		return nil, fmt.Errorf("region must be usa or eur, got %d", int(region))
	}

	if cfg.DefaultUnit == "" {
		cfg.DefaultUnit = DefaultUnit
	}
	if cfg.MaxValidMeasure <= 0 {
		cfg.MaxValidMeasure = MaxValidMeasure
	}

	units := unitTable(region)
	defaultUnit := strings.ToLower(cfg.DefaultUnit)
	if _, ok := units[defaultUnit]; !ok {
		return nil, fmt.Errorf("default unit %q is not a known unit", cfg.DefaultUnit)
	}

	return &Resolver{
		region:      region,
		units:       units,
		servings:    servingTable(region),
		defaultUnit: defaultUnit,
		maxValid:    float64(cfg.MaxValidMeasure),
	}, nil
}

// Region returns the region whose tables this resolver uses
func (r *Resolver) Region() Region {
	return r.region
}

// ParseMeasure reads a note such as "pint", "33cl", "half" or "1/3 pint".
// ok is false when no rule matches or the result is zero. err is set only
// when the volume exceeds the configured maximum.
func (r *Resolver) ParseMeasure(text string) (ml int, ok bool, err error) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, rule := range grammar {
		match := rule.pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}

		groups := make(map[string]string, len(match))
		for i, name := range rule.pattern.SubexpNames() {
			if name != "" && match[i] != "" {
				groups[name] = match[i]
			}
		}

		numerator, denominator, valid := rule.factor(groups)
		if !valid {
			return 0, false, nil
		}

		unit := groups["unit"]
		if unit == "" {
			unit = r.defaultUnit
		}

		volume := r.units[unit] * numerator / denominator
		if math.IsNaN(volume) {
			return 0, false, nil
		}
		if volume > r.maxValid {
			return 0, false, &InvalidMeasureError{Text: text, Millilitres: volume}
		}

		ml = int(volume)
		return ml, ml > 0, nil
	}

	return 0, false, nil
}

// FromComment parses the first bracketed note in a checkin comment.
// A comment without brackets is not an error.
func (r *Resolver) FromComment(comment string) (int, bool, error) {
	match := bracketPattern.FindStringSubmatch(comment)
	if match == nil {
		return 0, false, nil
	}
	return r.ParseMeasure(match[1])
}

// FromServing returns the regional default for a serving type, if known.
func (r *Resolver) FromServing(serving string) (int, bool) {
	ml, ok := r.servings[strings.ToLower(strings.TrimSpace(serving))]
	if !ok {
		return 0, false
	}
	return int(ml), true
}

// Resolvers holds one resolver per region
type Resolvers struct {
	europe *Resolver
	usa    *Resolver
}

// NewResolvers builds both regional resolvers from one config
func NewResolvers(cfg Config) (*Resolvers, error) {
	europe, err := NewResolver(Europe, cfg)
	if err != nil {
		return nil, fmt.Errorf("europe resolver: %w", err)
	}
	usa, err := NewResolver(USA, cfg)
	if err != nil {
		return nil, fmt.Errorf("usa resolver: %w", err)
	}
	return &Resolvers{europe: europe, usa: usa}, nil
}

// For returns the resolver for region
func (rs *Resolvers) For(region Region) *Resolver {
	if region == USA {
		return rs.usa
	}
	return rs.europe
}
