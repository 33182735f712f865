package shield

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shieldsenior/shieldsenior/internal/idgen"
	"github.com/shieldsenior/shieldsenior/internal/validation"
)

// Handler provides HTTP endpoints for the transaction shield.
type Handler struct {
	service *Service
}

// NewHandler creates a new shield handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up shield routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transaction/check", h.CheckTransaction)
	r.GET("/transaction/status/:id", h.TransactionStatus)
	r.POST("/transaction/approve", h.GuardianApproval)
}

// CheckRequest is the body for POST /v1/transaction/check.
type CheckRequest struct {
	TransactionID       string  `json:"transaction_id"`
	Amount              float64 `json:"amount"`
	RiskScore           int     `json:"risk_score"`
	CallDurationSeconds int     `json:"call_duration"`
}

// ApprovalRequest is the body for POST /v1/transaction/approve.
type ApprovalRequest struct {
	TransactionID string `json:"transaction_id"`
	Approved      *bool  `json:"approved"`
	GuardianName  string `json:"guardian_name"`
}

// CheckTransaction handles POST /v1/transaction/check
func (h *Handler) CheckTransaction(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON in request body",
		})
		return
	}

	if req.TransactionID == "" {
		req.TransactionID = idgen.TransactionToken()
	} else if !validation.IsValidTransactionID(req.TransactionID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid transaction_id format",
		})
		return
	}

	decision, err := h.service.Evaluate(c.Request.Context(),
		req.TransactionID, req.Amount, req.RiskScore, req.CallDurationSeconds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, decision)
}

// TransactionStatus handles GET /v1/transaction/status/:id
func (h *Handler) TransactionStatus(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidTransactionID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid transaction_id format",
		})
		return
	}

	status, err := h.service.CoolingStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	if status.Status == StatusNotFound {
		c.JSON(http.StatusNotFound, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GuardianApproval handles POST /v1/transaction/approve
func (h *Handler) GuardianApproval(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON in request body",
		})
		return
	}

	if req.TransactionID == "" || req.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Fields 'transaction_id' and 'approved' are required",
		})
		return
	}
	if !validation.IsValidTransactionID(req.TransactionID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid transaction_id format",
		})
		return
	}

	guardian := validation.SanitizeGuardianName(req.GuardianName)
	decision, err := h.service.Decide(c.Request.Context(), req.TransactionID, *req.Approved, guardian)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	if decision.Status == StatusNotFound {
		c.JSON(http.StatusNotFound, decision)
		return
	}
	c.JSON(http.StatusOK, decision)
}
