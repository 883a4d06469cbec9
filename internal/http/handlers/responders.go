package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reliefroute/backend/internal/models"
)

// @Summary List responders
// @Tags responders
// @Produce json
// @Param active query bool false "Only active responders"
// @Success 200 {object} map[string]any
// @Router /api/responders [get]
func (h *Handler) ListResponders(c *gin.Context) {
	activeOnly := strings.EqualFold(c.Query("active"), "true") || c.Query("active") == "1"
	items, err := h.Store.ListResponders(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list responders", err.Error())
		return
	}
	if items == nil {
		items = []models.Responder{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type ResponderPayload struct {
	ID           string   `json:"id" validate:"omitempty,max=64"`
	Name         string   `json:"name" validate:"required,max=200"`
	Capabilities []string `json:"capabilities" validate:"max=50,dive,max=100"`
	Location     string   `json:"location" validate:"max=500"`
	Lat          *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon          *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	Active       *bool    `json:"active"`
}

// @Summary Create or update a responder
// @Tags responders
// @Accept json
// @Produce json
// @Param payload body ResponderPayload true "Responder"
// @Success 200 {object} models.Responder
// @Failure 400 {object} map[string]any
// @Router /api/responders [post]
func (h *Handler) UpsertResponder(c *gin.Context) {
	var payload ResponderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	r, err := h.Processing.RegisterResponder(c.Request.Context(), models.Responder{
		ID:           strings.TrimSpace(payload.ID),
		Name:         strings.TrimSpace(payload.Name),
		Capabilities: payload.Capabilities,
		Location:     buildLocation(payload.Location, payload.Lat, payload.Lon),
		Active:       active,
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("responder upsert failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to save responder", err.Error())
		return
	}
	c.JSON(http.StatusOK, r)
}
