package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/models"
)

// @Summary Process pending requests
// @Description Assigns every request in status new as one batch, most urgent first.
// @Tags process
// @Produce json
// @Success 200 {object} service.RunSummary
// @Router /api/process [post]
func (h *Handler) Process(c *gin.Context) {
	summary, err := h.Processing.ProcessPending(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("processing failed")
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} models.Run
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	result, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load run", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Current weights
// @Tags learning
// @Produce json
// @Success 200 {object} models.WeightVector
// @Router /api/weights [get]
func (h *Handler) GetWeights(c *gin.Context) {
	c.JSON(http.StatusOK, h.Weights.Current(c.Request.Context()))
}

// @Summary Recompute weights
// @Description Learns a new weight vector from recent feedback. updated is false when the history is too short.
// @Tags learning
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/weights/recompute [post]
func (h *Handler) RecomputeWeights(c *gin.Context) {
	w, updated, err := h.Weights.Recompute(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("weights recompute failed")
		writeError(c, http.StatusInternalServerError, "RECOMPUTE_ERROR", "Weights recompute failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"weights": w, "updated": updated})
}

// @Summary Recompute reliability
// @Tags learning
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/reliability/recompute [post]
func (h *Handler) RecomputeReliability(c *gin.Context) {
	entries, err := h.Recomputer.Reliability.Recompute(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("reliability recompute failed")
		writeError(c, http.StatusInternalServerError, "RECOMPUTE_ERROR", "Reliability recompute failed", err.Error())
		return
	}
	if entries == nil {
		entries = []models.ReliabilityEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

// @Summary Anomaly flags
// @Description Scores the most recent requests for spam, duplicates and cross-channel mismatches.
// @Tags anomalies
// @Produce json
// @Param limit query int false "How many recent requests to scan (default 200)"
// @Success 200 {object} map[string]any
// @Router /api/anomalies [get]
func (h *Handler) ListAnomalies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 || limit > 5000 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 0 and 5000", nil)
		return
	}
	flags, err := h.Anomalies.Detect(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to scan requests", err.Error())
		return
	}
	if flags == nil {
		flags = []models.AnomalyFlag{}
	}
	c.JSON(http.StatusOK, gin.H{"items": flags})
}
