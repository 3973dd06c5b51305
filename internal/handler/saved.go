package handler

import (
	"errors"
	"net/http"

	"rentmatch/internal/model"
	"rentmatch/internal/service"

	"github.com/gin-gonic/gin"
)

// SavedHandler manages a user's saved properties
type SavedHandler struct {
	saver *service.SaveCoordinator
}

// NewSavedHandler creates a saved-property handler
func NewSavedHandler(saver *service.SaveCoordinator) *SavedHandler {
	return &SavedHandler{saver: saver}
}

// Save handles PUT /api/v1/users/:userId/saved/:propertyId
func (h *SavedHandler) Save(c *gin.Context) {
	userID, propertyID := c.Param("userId"), c.Param("propertyId")
	state, err := h.saver.Save(c.Request.Context(), userID, propertyID)
	h.respond(c, userID, propertyID, state, err)
}

// Unsave handles DELETE /api/v1/users/:userId/saved/:propertyId
func (h *SavedHandler) Unsave(c *gin.Context) {
	userID, propertyID := c.Param("userId"), c.Param("propertyId")
	state, err := h.saver.Unsave(c.Request.Context(), userID, propertyID)
	h.respond(c, userID, propertyID, state, err)
}

// Status handles GET /api/v1/users/:userId/saved/:propertyId
func (h *SavedHandler) Status(c *gin.Context) {
	userID, propertyID := c.Param("userId"), c.Param("propertyId")
	saved, err := h.saver.IsSaved(c.Request.Context(), userID, propertyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check saved property: " + err.Error()})
		return
	}
	// Settled pairs are not tracked in memory; report them from the store.
	state := h.saver.State(userID, propertyID)
	if state == service.StateIdle && saved {
		state = service.StateSaved
	}
	c.JSON(http.StatusOK, model.SaveStatusResponse{
		UserID:     userID,
		PropertyID: propertyID,
		Saved:      saved,
		State:      state.String(),
	})
}

// List handles GET /api/v1/users/:userId/saved
func (h *SavedHandler) List(c *gin.Context) {
	userID := c.Param("userId")
	saved, err := h.saver.ListSaved(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list saved properties: " + err.Error()})
		return
	}
	if saved == nil {
		saved = []model.SavedProperty{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"saved":   saved,
		"count":   len(saved),
	})
}

func (h *SavedHandler) respond(c *gin.Context, userID, propertyID string, state service.SaveState, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrMutationInFlight) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error(), "state": state.String()})
		return
	}
	c.JSON(http.StatusOK, model.SaveStatusResponse{
		UserID:     userID,
		PropertyID: propertyID,
		Saved:      state == service.StateSaved,
		State:      state.String(),
	})
}
