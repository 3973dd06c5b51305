package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNominatimClient_Search(t *testing.T) {
	var gotQuery, gotLimit, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"place_id": 123, "lat": "30.2672", "lon": "-97.7431", "display_name": "Austin, Travis County, Texas",
			 "address": {"city": "Austin", "state": "Texas"}},
			{"place_id": 456, "lat": "bad", "lon": "-97.0", "display_name": "Broken"},
			{"place_id": 789, "lat": "30.5", "lon": "-97.5", "display_name": "Austin Colony"}
		]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.Client(), srv.URL+"/", "rentmatch-test", "", time.Second)
	results, err := c.Search(context.Background(), "Austin", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotQuery != "Austin" || gotLimit != "5" || gotUA != "rentmatch-test" {
		t.Errorf("unexpected request: q=%q limit=%q ua=%q", gotQuery, gotLimit, gotUA)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (malformed skipped), got %d", len(results))
	}
	if results[0].PlaceID != "123" || results[0].Latitude != 30.2672 || results[0].Longitude != -97.7431 {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[0].Address["city"] != "Austin" {
		t.Errorf("structured address not decoded: %+v", results[0].Address)
	}
}

func TestNominatimClient_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.Client(), srv.URL, "", "", time.Second)
	_, err := c.Search(context.Background(), "nowhere at all", 5)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestNominatimClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.Client(), srv.URL, "", "", time.Second)
	_, err := c.Search(context.Background(), "Austin", 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoResults) {
		t.Fatal("request failure must be distinct from no results")
	}
}

func TestNominatimClient_CoordinatesShortCircuit(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.Client(), srv.URL, "", "", time.Second)
	results, err := c.Search(context.Background(), "30.2672, -97.7431", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if called {
		t.Error("coordinate queries should not hit the API")
	}
	if len(results) != 1 || results[0].Latitude != 30.2672 || results[0].Longitude != -97.7431 {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestNominatimClient_EmptyQuery(t *testing.T) {
	c := NewNominatimClient(nil, "http://127.0.0.1:0", "", "", 0)
	if _, err := c.Search(context.Background(), "   ", 5); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestParseLatLon(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"30.1, -97.2", true},
		{"-33.86,151.2", true},
		{"91, 10", false},
		{"10, 181", false},
		{"austin, tx", false},
		{"1,2,3", false},
	}
	for _, tt := range tests {
		if _, _, ok := ParseLatLon(tt.in); ok != tt.wantOK {
			t.Errorf("ParseLatLon(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}
