package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/lock"
	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/service"
	"github.com/reliefroute/backend/internal/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Handler struct {
	Store      service.Repository
	Processing *service.ProcessingService
	Weights    *service.WeightStore
	Recomputer *service.Recomputer
	Anomalies  *service.AnomalyScanner
	Validator  *validator.Validate
	Logger     zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CreateRequestPayload struct {
	ClientID   string   `json:"client_id" validate:"omitempty,max=128"`
	Text       string   `json:"text" validate:"required_without_all=OCRText Transcript,max=10000"`
	OCRText    string   `json:"ocr_text" validate:"max=10000"`
	Transcript string   `json:"transcript" validate:"max=10000"`
	Location   string   `json:"location" validate:"max=500"`
	Lat        *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon        *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	Contact    string   `json:"contact" validate:"max=200"`
}

// @Summary Submit a request for help
// @Description Classifies and geocodes the request and stores it with status new. A repeated client_id returns the stored request.
// @Tags requests
// @Accept json
// @Produce json
// @Param payload body CreateRequestPayload true "Request"
// @Success 201 {object} models.Request
// @Success 200 {object} models.Request
// @Failure 400 {object} map[string]any
// @Router /api/requests [post]
func (h *Handler) CreateRequest(c *gin.Context) {
	var payload CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	req, created, err := h.Processing.Intake(c.Request.Context(), service.IntakeInput{
		ClientID:   payload.ClientID,
		Text:       payload.Text,
		OCRText:    payload.OCRText,
		Transcript: payload.Transcript,
		Location:   buildLocation(payload.Location, payload.Lat, payload.Lon),
		Contact:    payload.Contact,
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("intake failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store request", err.Error())
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, req)
}

// @Summary List requests
// @Tags requests
// @Produce json
// @Param status query string false "new | assigned | in-progress | completed | failed"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/requests [get]
func (h *Handler) ListRequests(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !validStatus(status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status", status)
		return
	}
	limit, offset := pagination(c)

	items, err := h.Store.ListRequests(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list requests", err.Error())
		return
	}
	if items == nil {
		items = []models.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Request details
// @Tags requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.Request
// @Failure 404 {object} map[string]any
// @Router /api/requests/{id} [get]
func (h *Handler) GetRequest(c *gin.Context) {
	req, err := h.Store.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Request not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get request", err.Error())
		return
	}
	c.JSON(http.StatusOK, req)
}

// @Summary Assign a responder
// @Description Scores every active responder and commits the best one. An unassignable request returns 200 with selection.unassignable=true.
// @Tags requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} service.AssignmentResult
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/requests/{id}/assign [post]
func (h *Handler) AssignRequest(c *gin.Context) {
	res, err := h.Processing.Assign(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err, "Assignment failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

type UpdateStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=in-progress completed failed"`
}

// @Summary Update request status
// @Description Moves an assigned request along its lifecycle. completed and failed record the outcome used for learning.
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body UpdateStatusPayload true "Status"
// @Success 200 {object} models.Request
// @Failure 409 {object} map[string]any
// @Router /api/requests/{id}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	var payload UpdateStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	req, err := h.Processing.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		h.writeServiceError(c, err, "Status update failed")
		return
	}
	c.JSON(http.StatusOK, req)
}

// @Summary Classify text
// @Description Runs the classifier chain without storing anything.
// @Tags classify
// @Accept json
// @Produce json
// @Param payload body ai.Input true "Channels"
// @Success 200 {object} models.Classification
// @Router /api/classify [post]
func (h *Handler) Classify(c *gin.Context) {
	var in ai.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Processing.Classify(c.Request.Context(), in))
}

func (h *Handler) writeServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Request not found", nil)
	case errors.Is(err, lock.ErrLocked):
		writeError(c, http.StatusConflict, "LOCKED", "Another decision for this request is in progress", nil)
	case errors.Is(err, service.ErrNotAssignable), errors.Is(err, service.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "INVALID_STATE", message, err.Error())
	default:
		h.Logger.Error().Err(err).Str("id", c.Param("id")).Msg(message)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// buildLocation prefers explicit coordinates, then a label that is itself a coordinate pair.
func buildLocation(label string, lat, lon *float64) models.Location {
	loc := models.Location{Label: strings.TrimSpace(label)}
	if lat != nil && lon != nil && utils.ValidCoordinates(*lat, *lon) {
		loc.Coords = &models.Coordinates{Lat: *lat, Lon: *lon}
		return loc
	}
	if la, lo, ok := utils.ParseCoordinates(loc.Label); ok {
		loc.Coords = &models.Coordinates{Lat: la, Lon: lo}
		loc.Label = ""
	}
	return loc
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validStatus(s string) bool {
	switch s {
	case models.StatusNew, models.StatusAssigned, models.StatusInProgress, models.StatusCompleted, models.StatusFailed:
		return true
	}
	return false
}
