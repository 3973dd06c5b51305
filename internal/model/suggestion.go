package model

// SuggestionKind distinguishes geographic suggestions from local property matches
type SuggestionKind string

const (
	SuggestionLocation SuggestionKind = "location"
	SuggestionProperty SuggestionKind = "property"
)

// Coordinates is a (longitude, latitude) pair
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// SearchSuggestion is a type-ahead candidate. Location suggestions carry
// Coordinates; property suggestions carry SourceProperty.
type SearchSuggestion struct {
	ID             string         `json:"id"`
	DisplayText    string         `json:"display_text"`
	Kind           SuggestionKind `json:"kind"`
	Coordinates    *Coordinates   `json:"coordinates,omitempty"`
	SourceProperty *Listing       `json:"source_property,omitempty"`
}

// SuggestResponse wraps a suggestion list for the HTTP layer
type SuggestResponse struct {
	Query       string             `json:"query"`
	Suggestions []SearchSuggestion `json:"suggestions"`
}
