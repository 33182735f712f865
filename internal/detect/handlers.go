package detect

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shieldsenior/shieldsenior/internal/validation"
)

// Handler provides HTTP endpoints for transcript analysis.
type Handler struct {
	analyzer *Analyzer
	store    Store
}

// NewHandler creates a new analysis handler.
func NewHandler(analyzer *Analyzer, store Store) *Handler {
	return &Handler{analyzer: analyzer, store: store}
}

// RegisterRoutes sets up analysis routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/analyze", h.Analyze)
	r.GET("/analyses", h.ListAnalyses)
}

// AnalyzeRequest is the body for POST /v1/analyze.
type AnalyzeRequest struct {
	Transcript string `json:"transcript"`
}

// Analyze handles POST /v1/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Missing 'transcript' field in request body",
		})
		return
	}

	transcript := validation.SanitizeTranscript(req.Transcript)
	if transcript == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Transcript cannot be empty",
		})
		return
	}

	result := h.analyzer.Analyze(c.Request.Context(), transcript)
	c.JSON(http.StatusOK, result)
}

// ListAnalyses handles GET /v1/analyses (audit trail, newest first)
func (h *Handler) ListAnalyses(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"analyses": []*AnalysisRecord{}, "count": 0})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	records, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if records == nil {
		records = []*AnalysisRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": records,
		"count":    len(records),
	})
}
