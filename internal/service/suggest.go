package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rentmatch/internal/geo"
	"rentmatch/internal/logger"
	"rentmatch/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMinQueryLength      = 2
	DefaultLocationSuggestions = 5
	DefaultPropertySuggestions = 3
	DefaultMaxSuggestions      = 8
)

// ErrStaleQuery marks a suggestion result superseded by a newer query from the same session
var ErrStaleQuery = errors.New("suggest: superseded by a newer query")

// CorpusSource loads the listings used for property suggestions
type CorpusSource interface {
	ListListings(ctx context.Context, limit int) ([]model.Listing, error)
}

// SuggestOptions bounds the suggestion list
type SuggestOptions struct {
	MinQueryLength      int
	LocationSuggestions int
	PropertySuggestions int
	MaxSuggestions      int
	CorpusSize          int
}

func (o SuggestOptions) withDefaults() SuggestOptions {
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = DefaultMinQueryLength
	}
	if o.LocationSuggestions <= 0 {
		o.LocationSuggestions = DefaultLocationSuggestions
	}
	if o.PropertySuggestions <= 0 {
		o.PropertySuggestions = DefaultPropertySuggestions
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = DefaultMaxSuggestions
	}
	if o.CorpusSize <= 0 {
		o.CorpusSize = 5000
	}
	return o
}

// SuggestService merges geocoder locations with local property matches for type-ahead
type SuggestService struct {
	geocoder geo.Geocoder
	cache    geo.Cache
	source   CorpusSource
	opts     SuggestOptions
	logger   *zap.Logger
	lookups  singleflight.Group

	mu     sync.RWMutex
	corpus []model.Listing
}

// NewSuggestService creates a suggestion aggregator. geocoder, cache and source may be nil.
func NewSuggestService(geocoder geo.Geocoder, cache geo.Cache, source CorpusSource, opts SuggestOptions, lg *zap.Logger) *SuggestService {
	return &SuggestService{
		geocoder: geocoder,
		cache:    cache,
		source:   source,
		opts:     opts.withDefaults(),
		logger:   logger.OrNop(lg),
	}
}

// Suggest returns location suggestions followed by property suggestions from
// corpus, truncated to maxResults. Geocoder failures yield no location
// suggestions; the call itself never fails.
func (s *SuggestService) Suggest(ctx context.Context, query string, corpus []model.Listing, maxResults int) []model.SearchSuggestion {
	normalized := strings.TrimSpace(query)
	if len([]rune(normalized)) < s.opts.MinQueryLength {
		return []model.SearchSuggestion{}
	}
	if maxResults <= 0 {
		maxResults = s.opts.MaxSuggestions
	}

	var locations, properties []model.SearchSuggestion

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		locations = s.locationSuggestions(gctx, normalized)
		return nil
	})
	g.Go(func() error {
		properties = matchProperties(normalized, corpus, s.opts.PropertySuggestions)
		return nil
	})
	_ = g.Wait()

	out := make([]model.SearchSuggestion, 0, len(locations)+len(properties))
	out = append(out, locations...)
	out = append(out, properties...)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// SuggestFromCorpus runs Suggest against the current corpus snapshot
func (s *SuggestService) SuggestFromCorpus(ctx context.Context, query string, maxResults int) []model.SearchSuggestion {
	return s.Suggest(ctx, query, s.Corpus(), maxResults)
}

func (s *SuggestService) locationSuggestions(ctx context.Context, query string) []model.SearchSuggestion {
	results, err := s.geocode(ctx, query)
	if err != nil {
		if !errors.Is(err, geo.ErrNoResults) && !errors.Is(err, context.Canceled) {
			s.logger.Warn("geocoder unavailable for suggestions", zap.String("query", query), zap.Error(err))
		}
		return nil
	}

	if len(results) > s.opts.LocationSuggestions {
		results = results[:s.opts.LocationSuggestions]
	}
	out := make([]model.SearchSuggestion, 0, len(results))
	for _, r := range results {
		id := r.PlaceID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, model.SearchSuggestion{
			ID:          id,
			DisplayText: r.DisplayName,
			Kind:        model.SuggestionLocation,
			Coordinates: &model.Coordinates{Longitude: r.Longitude, Latitude: r.Latitude},
		})
	}
	return out
}

// geocode consults the cache before the geocoder. Empty answers are cached
// too. Concurrent lookups of the same query share one geocoder call.
func (s *SuggestService) geocode(ctx context.Context, query string) ([]geo.Result, error) {
	if s.geocoder == nil {
		return nil, errors.New("suggest: no geocoder configured")
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, query); ok {
			if len(cached) == 0 {
				return nil, geo.ErrNoResults
			}
			return cached, nil
		}
	}

	v, err, _ := s.lookups.Do(geo.CacheKey(query), func() (interface{}, error) {
		results, err := s.geocoder.Search(ctx, query, s.opts.LocationSuggestions)
		if err == nil && len(results) == 0 {
			err = geo.ErrNoResults
		}
		switch {
		case errors.Is(err, geo.ErrNoResults):
			if s.cache != nil {
				s.cache.Set(ctx, query, []geo.Result{})
			}
			return nil, err
		case err != nil:
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(ctx, query, results)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]geo.Result), nil
}

// Geocode resolves query to its best candidate, for map centering
func (s *SuggestService) Geocode(ctx context.Context, query string) (*model.Coordinates, error) {
	results, err := s.geocode(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, geo.ErrNoResults
	}
	best := results[0]
	return &model.Coordinates{Longitude: best.Longitude, Latitude: best.Latitude}, nil
}

// matchProperties returns the first limit listings whose title, address,
// city or state contains query, case-insensitively, in corpus order
func matchProperties(query string, corpus []model.Listing, limit int) []model.SearchSuggestion {
	needle := strings.ToLower(query)
	out := make([]model.SearchSuggestion, 0, limit)
	for i := range corpus {
		if len(out) == limit {
			break
		}
		l := corpus[i]
		if !listingContains(l, needle) {
			continue
		}
		text := l.Title
		if text == "" {
			text = l.Address
		}
		out = append(out, model.SearchSuggestion{
			ID:             l.ID,
			DisplayText:    text,
			Kind:           model.SuggestionProperty,
			SourceProperty: &l,
		})
	}
	return out
}

func listingContains(l model.Listing, needle string) bool {
	for _, field := range []string{l.Title, l.Address, l.City, l.State} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Corpus returns the current listing snapshot
func (s *SuggestService) Corpus() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

// SetCorpus replaces the listing snapshot
func (s *SuggestService) SetCorpus(listings []model.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = listings
}

// Refresh reloads the corpus snapshot from the source
func (s *SuggestService) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	listings, err := s.source.ListListings(ctx, s.opts.CorpusSize)
	if err != nil {
		return fmt.Errorf("refresh suggestion corpus: %w", err)
	}
	s.SetCorpus(listings)
	s.logger.Info("suggestion corpus refreshed", zap.Int("listings", len(listings)))
	return nil
}

// RunRefresh reloads the corpus every interval until ctx is done
func (s *SuggestService) RunRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("corpus refresh failed", zap.Error(err))
			}
		}
	}
}

// Close clears the geocode cache and releases it
func (s *SuggestService) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// QueryTracker applies last-query-wins per session: starting a query cancels
// the previous one for the same session.
type QueryTracker struct {
	mu       sync.Mutex
	inflight map[string]*trackedQuery
	seq      uint64
}

type trackedQuery struct {
	seq    uint64
	query  string
	cancel context.CancelFunc
}

// NewQueryTracker creates an empty tracker
func NewQueryTracker() *QueryTracker {
	return &QueryTracker{inflight: make(map[string]*trackedQuery)}
}

// Begin registers query as the session's latest. The returned context is
// cancelled when a newer query begins; done reports ErrStaleQuery if the query
// was superseded and must be called exactly once.
func (t *QueryTracker) Begin(ctx context.Context, session, query string) (context.Context, func() error) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.seq++
	entry := &trackedQuery{seq: t.seq, query: query, cancel: cancel}
	if prev, ok := t.inflight[session]; ok {
		prev.cancel()
	}
	t.inflight[session] = entry
	t.mu.Unlock()

	done := func() error {
		defer cancel()
		t.mu.Lock()
		defer t.mu.Unlock()
		current, ok := t.inflight[session]
		if !ok || current.seq != entry.seq {
			return ErrStaleQuery
		}
		delete(t.inflight, session)
		return nil
	}
	return ctx, done
}

// Latest returns the newest in-flight query for session
func (t *QueryTracker) Latest(session string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.inflight[session]
	if !ok {
		return "", false
	}
	return q.query, true
}
