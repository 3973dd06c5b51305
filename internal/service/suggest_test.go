package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"rentmatch/internal/geo"
	"rentmatch/internal/model"
)

type fakeGeocoder struct {
	results []geo.Result
	err     error
	calls   atomic.Int32
}

func (f *fakeGeocoder) Search(_ context.Context, _ string, limit int) ([]geo.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

type fakeCorpusSource struct {
	listings []model.Listing
	err      error
}

func (f *fakeCorpusSource) ListListings(_ context.Context, limit int) ([]model.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.listings) > limit {
		return f.listings[:limit], nil
	}
	return f.listings, nil
}

func suggestCorpus() []model.Listing {
	return []model.Listing{
		{ID: "p1", Title: "Riverside Apartments", Address: "100 River Rd", City: "Austin", State: "TX"},
		{ID: "p2", Title: "Oak Grove", Address: "12 Oak St", City: "Dallas", State: "TX"},
		{ID: "p3", Title: "The Lofts", Address: "5 Riverbend Dr", City: "Austin", State: "TX"},
		{ID: "p4", Title: "Maple Court", Address: "9 Maple Ave", City: "Riverton", State: "WY"},
		{ID: "p5", Title: "River House", Address: "1 Main St", City: "Houston", State: "TX"},
	}
}

func geoResults(n int) []geo.Result {
	out := make([]geo.Result, n)
	for i := range out {
		out[i] = geo.Result{DisplayName: "Place", Latitude: float64(i), Longitude: -float64(i)}
	}
	return out
}

func TestSuggest_FailingGeocoderReturnsOnlyProperties(t *testing.T) {
	corpus := []model.Listing{{ID: "p1", Title: "Riverside Apartments"}}
	s := NewSuggestService(&fakeGeocoder{err: errors.New("network down")}, nil, nil, SuggestOptions{}, nil)

	got := s.Suggest(context.Background(), "ri", corpus, 8)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d: %+v", len(got), got)
	}
	if got[0].Kind != model.SuggestionProperty || got[0].ID != "p1" {
		t.Errorf("unexpected suggestion %+v", got[0])
	}
	if got[0].SourceProperty == nil || got[0].SourceProperty.Title != "Riverside Apartments" {
		t.Errorf("property suggestion must carry its source listing")
	}
}

func TestSuggest_ShortQuery(t *testing.T) {
	g := &fakeGeocoder{results: geoResults(2)}
	s := NewSuggestService(g, nil, nil, SuggestOptions{}, nil)

	for _, q := range []string{"", "r", "  r  "} {
		if got := s.Suggest(context.Background(), q, suggestCorpus(), 8); len(got) != 0 {
			t.Errorf("Suggest(%q) = %d suggestions, want 0", q, len(got))
		}
	}
	if g.calls.Load() != 0 {
		t.Errorf("geocoder called %d times for short queries", g.calls.Load())
	}
}

func TestSuggest_LocationsBeforePropertiesAndLimits(t *testing.T) {
	g := &fakeGeocoder{results: geoResults(7)}
	s := NewSuggestService(g, nil, nil, SuggestOptions{}, nil)

	got := s.Suggest(context.Background(), "river", suggestCorpus(), 0)
	if len(got) != 8 {
		t.Fatalf("expected 8 suggestions, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].Kind != model.SuggestionLocation || got[i].Coordinates == nil {
			t.Errorf("suggestion %d should be a location with coordinates: %+v", i, got[i])
		}
		if got[i].ID == "" {
			t.Errorf("location suggestion %d has empty id", i)
		}
	}
	wantProps := []string{"p1", "p3", "p4"}
	for i, id := range wantProps {
		sug := got[5+i]
		if sug.Kind != model.SuggestionProperty || sug.ID != id {
			t.Errorf("suggestion %d = %s/%s, want property/%s", 5+i, sug.Kind, sug.ID, id)
		}
	}
}

func TestSuggest_TruncatesToMaxResults(t *testing.T) {
	s := NewSuggestService(&fakeGeocoder{results: geoResults(3)}, nil, nil, SuggestOptions{}, nil)

	got := s.Suggest(context.Background(), "river", suggestCorpus(), 4)
	if len(got) != 4 {
		t.Fatalf("expected 4, got %d", len(got))
	}
	if got[3].Kind != model.SuggestionProperty {
		t.Errorf("4th suggestion should be the first property, got %s", got[3].Kind)
	}
}

func TestSuggest_MatchesCityAndStateCaseInsensitive(t *testing.T) {
	s := NewSuggestService(&fakeGeocoder{err: geo.ErrNoResults}, nil, nil, SuggestOptions{}, nil)

	got := s.Suggest(context.Background(), "WY", suggestCorpus(), 8)
	if len(got) != 1 || got[0].ID != "p4" {
		t.Fatalf("expected state match p4, got %+v", got)
	}
}

func TestSuggest_UsesCache(t *testing.T) {
	g := &fakeGeocoder{results: []geo.Result{{PlaceID: "42", DisplayName: "Austin, TX", Latitude: 30.2, Longitude: -97.7}}}
	cache := geo.NewMemoryCache()
	s := NewSuggestService(g, cache, nil, SuggestOptions{}, nil)
	ctx := context.Background()

	first := s.Suggest(ctx, "Austin", nil, 8)
	second := s.Suggest(ctx, "  austin ", nil, 8)

	if g.calls.Load() != 1 {
		t.Errorf("geocoder calls = %d, want 1", g.calls.Load())
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != "42" || second[0].ID != "42" {
		t.Errorf("unexpected suggestions %+v / %+v", first, second)
	}
	if second[0].Coordinates.Longitude != -97.7 || second[0].Coordinates.Latitude != 30.2 {
		t.Errorf("coordinates = %+v", second[0].Coordinates)
	}
}

func TestSuggest_CachesEmptyAnswersButNotFailures(t *testing.T) {
	ctx := context.Background()

	empty := &fakeGeocoder{err: geo.ErrNoResults}
	s := NewSuggestService(empty, geo.NewMemoryCache(), nil, SuggestOptions{}, nil)
	s.Suggest(ctx, "nowhere", nil, 8)
	s.Suggest(ctx, "nowhere", nil, 8)
	if empty.calls.Load() != 1 {
		t.Errorf("no-result answers should be cached, calls = %d", empty.calls.Load())
	}

	failing := &fakeGeocoder{err: errors.New("timeout")}
	s = NewSuggestService(failing, geo.NewMemoryCache(), nil, SuggestOptions{}, nil)
	s.Suggest(ctx, "austin", nil, 8)
	s.Suggest(ctx, "austin", nil, 8)
	if failing.calls.Load() != 2 {
		t.Errorf("failures should not be cached, calls = %d", failing.calls.Load())
	}
}

func TestSuggestService_RefreshCorpus(t *testing.T) {
	src := &fakeCorpusSource{listings: suggestCorpus()}
	s := NewSuggestService(nil, nil, src, SuggestOptions{CorpusSize: 2}, nil)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(s.Corpus()) != 2 {
		t.Fatalf("corpus size = %d, want 2", len(s.Corpus()))
	}

	got := s.SuggestFromCorpus(context.Background(), "oak", 8)
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("SuggestFromCorpus = %+v", got)
	}

	src.err = errors.New("db down")
	if err := s.Refresh(context.Background()); err == nil {
		t.Error("expected refresh error")
	}
	if len(s.Corpus()) != 2 {
		t.Error("failed refresh must keep the previous snapshot")
	}
}

func TestSuggestService_Geocode(t *testing.T) {
	s := NewSuggestService(&fakeGeocoder{results: geoResults(2)}, nil, nil, SuggestOptions{}, nil)
	c, err := s.Geocode(context.Background(), "anywhere")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if c.Latitude != 0 || c.Longitude != 0 {
		t.Errorf("expected first candidate, got %+v", c)
	}

	s = NewSuggestService(nil, nil, nil, SuggestOptions{}, nil)
	if _, err := s.Geocode(context.Background(), "anywhere"); err == nil {
		t.Error("expected error without geocoder")
	}
}

func TestSuggestService_GeocodeEmptyAnswer(t *testing.T) {
	g := &fakeGeocoder{results: []geo.Result{}}
	s := NewSuggestService(g, geo.NewMemoryCache(), nil, SuggestOptions{}, nil)

	if _, err := s.Geocode(context.Background(), "nowhere"); !errors.Is(err, geo.ErrNoResults) {
		t.Fatalf("Geocode() error = %v, want ErrNoResults", err)
	}
	if got := s.Suggest(context.Background(), "nowhere", nil, 8); len(got) != 0 {
		t.Errorf("Suggest() = %+v, want none", got)
	}

	// Search centers on the geocoder in a separate goroutine; an empty
	// answer must leave the center unset rather than crash.
	search := newTestSearchService(newFakeListingStore(sampleListing()), s)
	resp, err := search.Search(context.Background(), &model.SearchRequest{Query: "Austin, TX"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Center != nil {
		t.Errorf("Center = %+v, want nil", resp.Center)
	}
}

func TestQueryTracker_LastQueryWins(t *testing.T) {
	tr := NewQueryTracker()
	ctx := context.Background()

	ctx1, done1 := tr.Begin(ctx, "s1", "ri")
	ctx2, done2 := tr.Begin(ctx, "s1", "riv")

	if ctx1.Err() == nil {
		t.Error("older query context should be cancelled")
	}
	if q, _ := tr.Latest("s1"); q != "riv" {
		t.Errorf("Latest = %q, want riv", q)
	}
	if err := done1(); !errors.Is(err, ErrStaleQuery) {
		t.Errorf("done1() = %v, want ErrStaleQuery", err)
	}
	if err := done2(); err != nil {
		t.Errorf("done2() = %v, want nil", err)
	}
	if ctx2.Err() == nil {
		t.Error("context should be released after done")
	}
	if _, ok := tr.Latest("s1"); ok {
		t.Error("session should be cleared after the latest query completes")
	}
}

func TestQueryTracker_SessionsIndependent(t *testing.T) {
	tr := NewQueryTracker()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, done := tr.Begin(ctx, string(rune('a'+i)), "query")
			errs[i] = done()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("session %d: unexpected %v", i, err)
		}
	}
}
