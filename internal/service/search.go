package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentmatch/internal/logger"
	"rentmatch/internal/model"
	"rentmatch/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ListingStore is the persistence the search service needs
type ListingStore interface {
	SearchWithFilters(ctx context.Context, filters *model.SearchFilters, limit, offset int) ([]model.Listing, int, error)
	GetListingByID(ctx context.Context, id string) (*model.Listing, error)
	SimilarListings(ctx context.Context, id string, limit int) ([]model.Listing, error)
	UpsertListing(ctx context.Context, l *model.Listing) error
	BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string)
	LogSearch(ctx context.Context, searchID, query string, isLocation bool, resultCount int, listingIDs []string, responseTimeMs int) error
	LogFeedback(ctx context.Context, searchID, listingID, action string) error
}

var _ ListingStore = (*repository.PostgresRepository)(nil)

// ErrInvalidListing marks a listing or embedding rejected before it reaches the store
var ErrInvalidListing = errors.New("invalid listing")

// Locator resolves a location query to a map center
type Locator interface {
	Geocode(ctx context.Context, query string) (*model.Coordinates, error)
}

// SearchService handles search business logic
type SearchService struct {
	repo       ListingStore
	classifier *QueryClassifier
	ranker     *Ranker
	locator    Locator
	logger     *zap.Logger

	defaultLimit int
}

// NewSearchService creates a new search service. locator may be nil.
func NewSearchService(
	repo ListingStore,
	classifier *QueryClassifier,
	ranker *Ranker,
	locator Locator,
	lg *zap.Logger,
) *SearchService {
	return &SearchService{
		repo:         repo,
		classifier:   classifier,
		ranker:       ranker,
		locator:      locator,
		logger:       logger.OrNop(lg),
		defaultLimit: 20,
	}
}

// Search classifies the query, filters the catalog, and ranks the page
// against the caller's preferences
func (s *SearchService) Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error) {
	startTime := time.Now()

	query := strings.TrimSpace(req.Query)
	var intent *model.QueryIntent
	if query != "" {
		intent = s.classifier.Classify(query)
	}

	filters := s.mergeFilters(req.Filters, intent)
	prefs := s.mergePreferences(req.Preferences, intent)

	options := req.Options
	if options == nil {
		options = &model.SearchOptions{TopK: s.defaultLimit}
	}

	var (
		listings []model.Listing
		total    int
		center   *model.Coordinates
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listings, total, err = s.repo.SearchWithFilters(gctx, filters, options.TopK, options.Offset)
		return err
	})
	if intent != nil && intent.IsLocation && s.locator != nil {
		g.Go(func() error {
			c, err := s.locator.Geocode(gctx, query)
			if err != nil {
				s.logger.Debug("no map center for location query", zap.String("query", query), zap.Error(err))
				return nil
			}
			center = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := s.ranker.RankResults(listings, prefs)
	took := time.Since(startTime).Milliseconds()
	searchID := uuid.NewString()

	// Log search (non-blocking)
	go func() {
		listingIDs := make([]string, len(results))
		for i, r := range results {
			listingIDs[i] = r.ID
		}
		isLocation := intent != nil && intent.IsLocation
		if err := s.repo.LogSearch(context.Background(), searchID, req.Query, isLocation, total, listingIDs, int(took)); err != nil {
			s.logger.Warn("failed to log search", zap.String("search_id", searchID), zap.Error(err))
		}
	}()

	return &model.SearchResponse{
		SearchID: searchID,
		Results:  results,
		Total:    total,
		Intent:   intent,
		Center:   center,
		Took:     took,
	}, nil
}

// Match scores one listing against one preference set
func (s *SearchService) Match(listing model.Listing, prefs model.PreferenceSet) model.MatchResponse {
	return model.MatchResponse{
		MatchResult: s.ranker.Match(listing, prefs),
		Breakdown:   s.ranker.Breakdown(listing, prefs),
	}
}

// Classify reports whether query reads as a place
func (s *SearchService) Classify(query string) *model.QueryIntent {
	return s.classifier.Classify(query)
}

// GetListing retrieves a single listing by ID
func (s *SearchService) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	return s.repo.GetListingByID(ctx, id)
}

// SimilarListings returns listings nearest to id by embedding
func (s *SearchService) SimilarListings(ctx context.Context, id string, limit int) ([]model.Listing, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.SimilarListings(ctx, id, limit)
}

// UpsertListing adds a listing to the catalog or replaces it
func (s *SearchService) UpsertListing(ctx context.Context, l *model.Listing) error {
	l.ID = strings.TrimSpace(l.ID)
	if l.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidListing)
	}
	if strings.TrimSpace(l.Title) == "" && strings.TrimSpace(l.Address) == "" {
		return fmt.Errorf("%w: listing %s needs a title or an address", ErrInvalidListing, l.ID)
	}
	return s.repo.UpsertListing(ctx, l)
}

// UpdateEmbeddings stores embedding vectors for catalog listings. The whole
// batch is rejected when any item is malformed; listings the store does not
// know are reported per item.
func (s *SearchService) UpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (*model.EmbeddingBatchResponse, error) {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ListingID)
		if id == "" {
			return nil, fmt.Errorf("%w: embedding %d has no listing id", ErrInvalidListing, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: listing %s appears more than once", ErrInvalidListing, id)
		}
		seen[id] = struct{}{}
		if len(item.Embedding) != repository.EmbeddingDimensions {
			return nil, fmt.Errorf("%w: listing %s has %d dimensions, expected %d",
				ErrInvalidListing, id, len(item.Embedding), repository.EmbeddingDimensions)
		}
	}

	success, errs := s.repo.BatchUpdateEmbeddings(ctx, items)
	if len(errs) > 0 {
		s.logger.Warn("embedding batch partially applied", zap.Int("applied", success), zap.Int("failed", len(items)-success))
	}
	return &model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(items) - success,
		Errors:  errs,
	}, nil
}

// LogFeedback logs user feedback/action
func (s *SearchService) LogFeedback(ctx context.Context, searchID, listingID, action string) error {
	return s.repo.LogFeedback(ctx, searchID, listingID, action)
}

// mergeFilters fills the text filter the classifier implies, unless the caller set one
func (s *SearchService) mergeFilters(explicit *model.SearchFilters, intent *model.QueryIntent) *model.SearchFilters {
	merged := &model.SearchFilters{}
	if explicit != nil {
		*merged = *explicit
	}
	if intent == nil {
		return merged
	}

	q := intent.Query
	if intent.IsLocation {
		if merged.Location == nil {
			merged.Location = &q
		}
	} else if merged.TitleContains == nil {
		merged.TitleContains = &q
	}
	return merged
}

// mergePreferences uses a location query as the location preference when none was given
func (s *SearchService) mergePreferences(explicit *model.PreferenceSet, intent *model.QueryIntent) model.PreferenceSet {
	var prefs model.PreferenceSet
	if explicit != nil {
		prefs = *explicit
	}
	if intent != nil && intent.IsLocation && strings.TrimSpace(prefs.Location) == "" {
		prefs.Location = intent.Query
	}
	return prefs
}
