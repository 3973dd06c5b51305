package model

// SearchRequest represents a search query request
type SearchRequest struct {
	Query       string         `json:"query"`
	Preferences *PreferenceSet `json:"preferences,omitempty"`
	Filters     *SearchFilters `json:"filters,omitempty"`
	Options     *SearchOptions `json:"options,omitempty"`
}

// SearchFilters represents structured search filters applied before ranking
type SearchFilters struct {
	RentMin       *float64 `json:"rent_min,omitempty"`
	RentMax       *float64 `json:"rent_max,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	BedroomsMin   *int     `json:"bedrooms_min,omitempty"`
	Bathrooms     *int     `json:"bathrooms,omitempty"`
	Location      *string  `json:"location,omitempty"`
	TitleContains *string  `json:"title_contains,omitempty"`
	NetworkOnly   bool     `json:"network_only,omitempty"`
	Amenities     []string `json:"amenities,omitempty"`
}

// SearchOptions represents search options
type SearchOptions struct {
	TopK   int `json:"top_k"`
	Offset int `json:"offset"`
}

// SearchResponse represents a search result response
type SearchResponse struct {
	SearchID string                `json:"search_id"`
	Results  []ListingSearchResult `json:"results"`
	Total    int                   `json:"total"`
	Intent   *QueryIntent          `json:"intent,omitempty"`
	Center   *Coordinates          `json:"center,omitempty"` // map center for location queries
	Took     int64                 `json:"took_ms"`
}

// MatchRequest scores a single listing against a preference set
type MatchRequest struct {
	Listing     Listing       `json:"listing"`
	Preferences PreferenceSet `json:"preferences"`
}

// MatchResponse carries the match result and its sub-scores
type MatchResponse struct {
	MatchResult
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ScoreBreakdown exposes the evaluated sub-scores. A nil factor was not evaluated.
type ScoreBreakdown struct {
	Budget       *float64 `json:"budget,omitempty"`
	Bedrooms     *float64 `json:"bedrooms,omitempty"`
	Location     *float64 `json:"location,omitempty"`
	Availability *float64 `json:"availability,omitempty"`
	FactorCount  int      `json:"factor_count"`
	WeightedSum  float64  `json:"weighted_sum"`
	Multiplier   float64  `json:"multiplier"`
	FinalScore   int      `json:"final_score"`
}

// EmbeddingBatchRequest represents a batch embedding update request
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem represents a single embedding with listing info
type EmbeddingItem struct {
	ListingID string    `json:"listing_id" binding:"required"`
	Embedding []float32 `json:"embedding" binding:"required"`
}

// EmbeddingBatchResponse represents the response for batch embedding update
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// FeedbackRequest represents user feedback/action on a search result
type FeedbackRequest struct {
	SearchID  string `json:"search_id" binding:"required"`
	ListingID string `json:"listing_id" binding:"required"`
	Action    string `json:"action" binding:"required"` // click, contact, view_details, save
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SaveStatusResponse reports a saved-property state
type SaveStatusResponse struct {
	UserID     string `json:"user_id"`
	PropertyID string `json:"property_id"`
	Saved      bool   `json:"saved"`
	State      string `json:"state"`
}
