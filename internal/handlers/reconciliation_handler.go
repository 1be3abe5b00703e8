package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
)

const defaultRunLimit = 50

type ReconciliationHandler struct {
	repo interfaces.ReconciliationRepository
}

func NewReconciliationHandler(repo interfaces.ReconciliationRepository) *ReconciliationHandler {
	return &ReconciliationHandler{repo: repo}
}

func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	limit := defaultRunLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	runs, err := h.repo.ListRuns(c.Request.Context(), c.Param("reference"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reconciliation runs", "code": codeInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"merchant_reference": c.Param("reference"),
		"runs":               runs,
	})
}
