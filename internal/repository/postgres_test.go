package repository

import (
	"strings"
	"testing"

	"rentmatch/internal/model"
)

func TestBuildListingFilters(t *testing.T) {
	f64 := func(v float64) *float64 { return &v }
	iptr := func(v int) *int { return &v }
	sptr := func(v string) *string { return &v }

	tests := []struct {
		name      string
		filters   *model.SearchFilters
		wantParts []string
		wantArgs  int // -1 skips the check
		wantNext  int
	}{
		{
			name:     "nil filters",
			filters:  nil,
			wantArgs: 0,
			wantNext: 1,
		},
		{
			name: "rent range and bedrooms",
			filters: &model.SearchFilters{
				RentMin:  f64(1000),
				RentMax:  f64(2500),
				Bedrooms: iptr(2),
			},
			wantParts: []string{"rent_amount >= $1", "rent_amount <= $2", "bedrooms = $3"},
			wantArgs:  3,
			wantNext:  4,
		},
		{
			name: "location and title",
			filters: &model.SearchFilters{
				Location:      sptr("Austin"),
				TitleContains: sptr("Riverside"),
				BedroomsMin:   iptr(3),
			},
			wantParts: []string{"bedrooms >= $1", "ILIKE $2", "title ILIKE $3"},
			wantArgs:  3,
			wantNext:  4,
		},
		{
			name: "empty strings are ignored",
			filters: &model.SearchFilters{
				Location:      sptr(""),
				TitleContains: sptr(""),
			},
			wantArgs: 0,
			wantNext: 1,
		},
		{
			name:      "network only adds no argument",
			filters:   &model.SearchFilters{NetworkOnly: true},
			wantParts: []string{"is_network_verified = true"},
			wantArgs:  0,
			wantNext:  1,
		},
		{
			name:      "amenities use alias patterns",
			filters:   &model.SearchFilters{Bathrooms: iptr(1), Amenities: []string{"pool"}},
			wantParts: []string{"bathrooms = $1", "jsonb_array_elements_text(amenities)", "elem ILIKE $2"},
			wantArgs:  -1,
			wantNext:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, next := buildListingFilters(tt.filters)
			if !strings.HasPrefix(where, "1=1") {
				t.Errorf("where clause should start with 1=1: %s", where)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(where, part) {
					t.Errorf("where clause %q missing %q", where, part)
				}
			}
			if tt.wantArgs >= 0 && len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
			if tt.wantNext >= 0 && next != tt.wantNext {
				t.Errorf("next index = %d, want %d", next, tt.wantNext)
			}
			if next != len(args)+1 {
				t.Errorf("next index %d does not follow %d args", next, len(args))
			}
		})
	}
}

func TestBuildListingFilters_LocationPattern(t *testing.T) {
	loc := "Austin"
	_, args, _ := buildListingFilters(&model.SearchFilters{Location: &loc})
	if len(args) != 1 || args[0] != "%Austin%" {
		t.Errorf("args = %v, want [%%Austin%%]", args)
	}
}

func TestRentAmount(t *testing.T) {
	tests := []struct {
		rent model.Rent
		want interface{}
	}{
		{"$2,500/mo", 2500.0},
		{"1800", 1800.0},
		{"Contact for price", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := rentAmount(tt.rent); got != tt.want {
			t.Errorf("rentAmount(%q) = %v, want %v", tt.rent, got, tt.want)
		}
	}
}
