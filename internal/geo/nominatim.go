package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoResults is returned when the geocoder answered but found nothing
var ErrNoResults = errors.New("geocode: no results")

// Result is one geocoding candidate
type Result struct {
	PlaceID     string            `json:"place_id,omitempty"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address,omitempty"`
}

// Geocoder resolves free text to candidate places
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// NominatimClient talks to a Nominatim-compatible /search endpoint
type NominatimClient struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
	timeout      time.Duration
}

// NewNominatimClient constructs a client. A nil httpClient gets a 5s default.
func NewNominatimClient(httpClient *http.Client, baseURL, userAgent, countryCodes string, timeout time.Duration) *NominatimClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NominatimClient{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		userAgent:    userAgent,
		countryCodes: countryCodes,
		timeout:      timeout,
	}
}

// ParseLatLon returns lat,lon when query looks like "lat, lon" (WGS84)
func ParseLatLon(query string) (float64, float64, bool) {
	parts := strings.Split(strings.TrimSpace(query), ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// Search geocodes query with a single attempt. It returns ErrNoResults when
// the service answered with an empty list, and a wrapped error when the
// request itself failed.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("geocode: empty query")
	}
	if limit <= 0 {
		limit = 5
	}

	// Bare coordinates need no lookup
	if lat, lon, ok := ParseLatLon(query); ok {
		return []Result{{
			Latitude:    lat,
			Longitude:   lon,
			DisplayName: fmt.Sprintf("%.6f, %.6f", lat, lon),
		}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("geocode: http %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var payload []struct {
		PlaceID     json.Number       `json:"place_id"`
		Lat         string            `json:"lat"`
		Lon         string            `json:"lon"`
		DisplayName string            `json:"display_name"`
		Address     map[string]string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("geocode: decode: %w", err)
	}

	results := make([]Result, 0, len(payload))
	for _, item := range payload {
		lat, err1 := strconv.ParseFloat(item.Lat, 64)
		lon, err2 := strconv.ParseFloat(item.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		results = append(results, Result{
			PlaceID:     item.PlaceID.String(),
			Latitude:    lat,
			Longitude:   lon,
			DisplayName: item.DisplayName,
			Address:     item.Address,
		})
		if len(results) == limit {
			break
		}
	}

	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}
