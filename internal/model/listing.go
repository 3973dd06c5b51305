package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Listing represents a rentable unit from the property catalog
type Listing struct {
	ID                string    `json:"id" db:"id"`
	Title             string    `json:"title" db:"title"`
	Address           string    `json:"address" db:"address"`
	City              string    `json:"city,omitempty" db:"city"`
	State             string    `json:"state,omitempty" db:"state"`
	Rent              Rent      `json:"rent" db:"rent"`
	Bedrooms          *int      `json:"bedrooms,omitempty" db:"bedrooms"` // 0 is a studio
	Bathrooms         *int      `json:"bathrooms,omitempty" db:"bathrooms"`
	SizeDescription   string    `json:"size_description,omitempty" db:"size_description"`
	Availability      string    `json:"availability,omitempty" db:"availability"`
	IsNetworkVerified bool      `json:"is_network_verified" db:"is_network_verified"`
	Amenities         JSONArray `json:"amenities,omitempty" db:"amenities"`
	Latitude          *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ListingSearchResult represents a ranked listing with its match result
type ListingSearchResult struct {
	Listing
	Score        int      `json:"score"`
	Explanations []string `json:"explanations"`
}

// Rent is a monetary amount as the catalog supplies it: "$1,850/mo", "1850" or a bare number.
type Rent string

// UnmarshalJSON accepts both JSON strings and JSON numbers
func (r *Rent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Rent(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rent must be a string or number: %w", err)
	}
	*r = Rent(n.String())
	return nil
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONArray", value)
	}
}

// SavedProperty is a (user, property) bookmark
type SavedProperty struct {
	UserID     string    `json:"user_id" db:"user_id"`
	PropertyID string    `json:"property_id" db:"property_id"`
	SavedAt    time.Time `json:"saved_at" db:"saved_at"`
}
