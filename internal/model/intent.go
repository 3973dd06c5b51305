package model

// PreferenceSet is the user-declared search intent. Every field is optional;
// an empty field excludes its scoring factor.
type PreferenceSet struct {
	Location            string `json:"location,omitempty"`
	MoveInTimeframe     string `json:"move_in_timeframe,omitempty"`
	Budget              string `json:"budget,omitempty"`
	DesiredBedroomCount string `json:"desired_bedroom_count,omitempty"` // may be "4+"
	HasPets             *bool  `json:"has_pets,omitempty"`
}

// MatchResult is the output of scoring one listing against one preference set
type MatchResult struct {
	Score        int      `json:"score"`
	Explanations []string `json:"explanations"`
}

// QueryIntent records how a free-text query was classified
type QueryIntent struct {
	Query      string `json:"query"`
	IsLocation bool   `json:"is_location"`
}
