package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rentmatch/internal/logger"
	"rentmatch/internal/model"
	"rentmatch/internal/repository"
	"rentmatch/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	searchService *service.SearchService
	logger        *zap.Logger
	defaultLimit  int
	maxLimit      int
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *service.SearchService, defaultLimit, maxLimit int, lg *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger.OrNop(lg),
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Set default options if not provided
	if req.Options == nil {
		req.Options = &model.SearchOptions{TopK: h.defaultLimit}
	} else {
		if req.Options.TopK <= 0 {
			req.Options.TopK = h.defaultLimit
		}
		if req.Options.TopK > h.maxLimit {
			req.Options.TopK = h.maxLimit
		}
		if req.Options.Offset < 0 {
			req.Options.Offset = 0
		}
	}

	response, err := h.searchService.Search(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("search failed", zap.String("query", req.Query), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// Match handles POST /api/v1/match
func (h *SearchHandler) Match(c *gin.Context) {
	var req model.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.searchService.Match(req.Listing, req.Preferences))
}

// Classify handles GET /api/v1/classify?q=
func (h *SearchHandler) Classify(c *gin.Context) {
	c.JSON(http.StatusOK, h.searchService.Classify(c.Query("q")))
}

// GetListing handles GET /api/v1/listings/:id
func (h *SearchHandler) GetListing(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, err := h.searchService.GetListing(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// PutListing handles PUT /api/v1/listings/:id
func (h *SearchHandler) PutListing(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var listing model.Listing
	if err := c.ShouldBindJSON(&listing); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if listing.ID != "" && listing.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Listing ID does not match the path"})
		return
	}
	listing.ID = id

	if err := h.searchService.UpsertListing(c.Request.Context(), &listing); err != nil {
		if errors.Is(err, service.ErrInvalidListing) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("upsert listing failed", zap.String("listing_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store listing: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// UpdateEmbeddings handles POST /api/v1/embeddings/batch
func (h *SearchHandler) UpdateEmbeddings(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Embeddings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No embeddings provided"})
		return
	}

	response, err := h.searchService.UpdateEmbeddings(c.Request.Context(), req.Embeddings)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if len(response.Errors) > 0 {
		status = http.StatusPartialContent
	}
	c.JSON(status, response)
}

// Similar handles GET /api/v1/listings/:id/similar?limit=
func (h *SearchHandler) Similar(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	listings, err := h.searchService.SimilarListings(c.Request.Context(), id, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found or has no embedding"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find similar listings: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing_id": id, "results": listings})
}
