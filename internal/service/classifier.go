package service

import (
	"regexp"
	"strings"
	"unicode"

	"rentmatch/internal/model"
)

// propertyIndicators are multifamily-building words. Any of them marks a query
// as a property-name search, even when location words are also present.
var propertyIndicators = toSet(
	"apartments", "apartment", "apts", "apt",
	"towers", "tower", "plaza",
	"residence", "residences", "residential",
	"villages", "village",
	"suite", "suites",
	"condominium", "condominiums", "condo", "condos",
	"lofts", "loft", "flats",
	"manor", "estates", "gardens", "commons",
	"villas", "townhomes", "townhouses",
	"complex", "living", "pointe",
)

var streetTypes = []string{
	"street", "st", "avenue", "ave", "road", "rd", "drive", "dr",
	"lane", "ln", "boulevard", "blvd", "way", "place", "pl",
	"court", "ct", "parkway", "pkwy", "circle", "cir", "highway", "hwy", "trail", "trl",
}

var streetTokens = toSet(streetTypes...)

var locationTokens = toSet(
	"city", "town", "neighborhood", "neighbourhood", "district",
	"zip", "zipcode", "county", "state", "province", "region",
	"north", "south", "east", "west",
	"downtown", "uptown", "midtown", "suburb", "borough", "metro", "area", "near",
)

var (
	cityStatePattern      = regexp.MustCompile(`^[a-z]+(?:[\s.'-]+[a-z]+)*,\s*[a-z]{2,3}$`)
	numberedStreetPattern = regexp.MustCompile(`^\d+[a-z]?\s+(?:[a-z0-9.'-]+\s+)*(?:` + strings.Join(streetTypes, "|") + `)\b`)
	coordinatePattern     = regexp.MustCompile(`^-?\d{1,3}(?:\.\d+)?\s*,\s*-?\d{1,3}(?:\.\d+)?$`)
	postalPatterns        = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),                  // US ZIP / ZIP+4
		regexp.MustCompile(`\b[a-z]\d[a-z]\s?\d[a-z]\d\b`),          // Canada
		regexp.MustCompile(`\b[a-z]{1,2}\d[a-z\d]?\s?\d[a-z]{2}\b`), // UK
	}
)

// QueryClassifier decides whether free-text search input is a geographic
// query or a property-name query
type QueryClassifier struct {
	minLength int
}

// NewQueryClassifier creates a classifier with the default 2-character threshold
func NewQueryClassifier() *QueryClassifier {
	return &QueryClassifier{minLength: 2}
}

// Classify wraps IsLocationQuery in a QueryIntent
func (c *QueryClassifier) Classify(query string) *model.QueryIntent {
	return &model.QueryIntent{
		Query:      strings.TrimSpace(query),
		IsLocation: c.IsLocationQuery(query),
	}
}

// IsLocationQuery reports whether query should be geocoded. Property-name
// indicators win over every location signal. Single bare words are treated
// as places, so one-word property names ("Parkview") classify as locations.
func (c *QueryClassifier) IsLocationQuery(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(normalized)) < c.minLength {
		return false
	}

	tokens := tokenize(normalized)
	for _, tok := range tokens {
		if propertyIndicators[tok] {
			return false
		}
	}

	// A street-type token anywhere also covers "digits plus street type".
	for _, tok := range tokens {
		if streetTokens[tok] || locationTokens[tok] {
			return true
		}
	}

	if cityStatePattern.MatchString(normalized) ||
		numberedStreetPattern.MatchString(normalized) ||
		coordinatePattern.MatchString(normalized) {
		return true
	}

	for _, p := range postalPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}

	hasDigit := strings.IndexFunc(normalized, unicode.IsDigit) >= 0
	if !strings.ContainsAny(normalized, " ,") && !hasDigit && len([]rune(normalized)) > 2 {
		return true
	}

	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
