package utils

import (
	"fmt"
	"strings"
)

// amenityAliases maps a canonical amenity key to the spellings listings use for it
var amenityAliases = map[string][]string{
	"pets":             {"pet friendly", "pet-friendly", "pets allowed", "pets ok", "dog friendly", "cat friendly", "dogs allowed", "cats allowed", "dog park"},
	"pool":             {"swimming pool", "pool"},
	"gym":              {"gym", "fitness", "fitness center"},
	"laundry":          {"in-unit laundry", "washer", "dryer", "washer/dryer", "laundry"},
	"parking":          {"parking", "garage", "covered parking"},
	"air conditioning": {"air conditioning", "a/c", "central air"},
	"dishwasher":       {"dishwasher"},
	"balcony":          {"balcony", "patio", "terrace"},
	"furnished":        {"furnished"},
	"elevator":         {"elevator"},
	"doorman":          {"doorman", "concierge"},
}

// petRestrictions are phrases that negate an otherwise pet-like tag
var petRestrictions = []string{"no pets", "no pet", "pets not allowed", "no dogs", "no cats"}

// FuzzyMatchAmenity reports whether an amenity tag satisfies a requested amenity
func FuzzyMatchAmenity(searchTerm, amenity string) bool {
	searchLower := strings.ToLower(strings.TrimSpace(searchTerm))
	amenityLower := strings.ToLower(strings.TrimSpace(amenity))
	if searchLower == "" || amenityLower == "" {
		return false
	}

	key := canonicalAmenity(searchLower)
	if key == "pets" && isPetRestriction(amenityLower) {
		return false
	}

	if searchLower == amenityLower || strings.Contains(amenityLower, searchLower) {
		return true
	}
	if key == "" {
		return false
	}
	for _, alias := range amenityAliases[key] {
		if strings.Contains(amenityLower, alias) {
			return true
		}
	}
	return false
}

// IsPetFriendly reports whether any amenity tag advertises pet acceptance
func IsPetFriendly(amenities []string) bool {
	for _, a := range amenities {
		if FuzzyMatchAmenity("pets", a) {
			return true
		}
	}
	return false
}

func isPetRestriction(amenity string) bool {
	for _, r := range petRestrictions {
		if strings.Contains(amenity, r) {
			return true
		}
	}
	return false
}

// canonicalAmenity resolves a search term to an alias key, or "" when unknown
func canonicalAmenity(term string) string {
	if _, ok := amenityAliases[term]; ok {
		return term
	}
	for key, values := range amenityAliases {
		if strings.Contains(term, key) {
			return key
		}
		for _, alias := range values {
			if term == alias {
				return key
			}
		}
	}
	return ""
}

// BuildFuzzyAmenityQuery builds JSONB EXISTS conditions for amenity filtering.
// Placeholders start at $paramIndex; the next free index is returned.
func BuildFuzzyAmenityQuery(searchTerms []string, paramIndex int) ([]string, []interface{}, int) {
	if len(searchTerms) == 0 {
		return nil, nil, paramIndex
	}

	var conditions []string
	var params []interface{}

	for _, term := range searchTerms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}

		patterns := []string{termLower}
		if key := canonicalAmenity(termLower); key != "" {
			patterns = amenityAliases[key]
		}

		var orConditions []string
		for _, pattern := range patterns {
			orConditions = append(orConditions, fmt.Sprintf("elem ILIKE $%d", paramIndex))
			params = append(params, "%"+pattern+"%")
			paramIndex++
		}

		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(amenities) elem WHERE "+strings.Join(orConditions, " OR ")+")")
	}

	return conditions, params, paramIndex
}
