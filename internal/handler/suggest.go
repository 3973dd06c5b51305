package handler

import (
	"errors"
	"net/http"
	"strconv"

	"rentmatch/internal/model"
	"rentmatch/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHeader identifies the client input field for last-query-wins
const SessionHeader = "X-Session-ID"

// SuggestHandler serves type-ahead suggestions
type SuggestHandler struct {
	suggestService *service.SuggestService
	tracker        *service.QueryTracker
	maxResults     int
}

// NewSuggestHandler creates a suggestion handler
func NewSuggestHandler(suggestService *service.SuggestService, tracker *service.QueryTracker, maxResults int) *SuggestHandler {
	if tracker == nil {
		tracker = service.NewQueryTracker()
	}
	return &SuggestHandler{
		suggestService: suggestService,
		tracker:        tracker,
		maxResults:     maxResults,
	}
}

// Suggest handles GET /api/v1/suggest?q=&limit=
//
// Requests sharing an X-Session-ID cancel each other; a superseded request
// gets 409 so the client can drop it.
func (h *SuggestHandler) Suggest(c *gin.Context) {
	query := c.Query("q")

	limit := h.maxResults
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	ctx := c.Request.Context()
	session := c.GetHeader(SessionHeader)
	var done func() error
	if session != "" {
		ctx, done = h.tracker.Begin(ctx, session, query)
	}

	suggestions := h.suggestService.SuggestFromCorpus(ctx, query, limit)

	if done != nil {
		if err := done(); errors.Is(err, service.ErrStaleQuery) {
			c.JSON(http.StatusConflict, gin.H{"error": "Superseded by a newer query", "query": query})
			return
		}
	}

	c.JSON(http.StatusOK, model.SuggestResponse{
		Query:       query,
		Suggestions: suggestions,
	})
}
