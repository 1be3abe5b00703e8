package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

// Reconciler is the part of service.Orchestrator the HTTP API drives.
type Reconciler interface {
	Summary(ctx context.Context, merchantReference string) (ledger.Summary, error)
	Capture(ctx context.Context, merchantReference string, items []models.ItemQuantity) (*models.ReconciliationRun, error)
	Return(ctx context.Context, merchantReference string, items []models.ItemQuantity) (*models.ReconciliationRun, error)
	Update(ctx context.Context, merchantReference string, changes []models.Change) (*models.ReconciliationRun, error)
	Cancel(ctx context.Context, merchantReference string) (*models.ReconciliationRun, error)
	AddItems(ctx context.Context, merchantReference string, items []models.LineItem) (*models.ReconciliationRun, error)
	UpdateReference(ctx context.Context, merchantReference, newReference string) (*models.ReconciliationRun, error)
	RetryReversal(ctx context.Context, merchantReference string, transactionID int64) (*models.ReconciliationRun, error)
}

type lineRequest struct {
	MerchantReference string          `json:"merchant_reference" binding:"required"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Quantity          int             `json:"quantity"`
}

func (r lineRequest) identity() models.LineIdentity {
	return models.NewLineIdentity(r.MerchantReference, r.UnitPrice)
}

type itemsRequest struct {
	Items []lineRequest `json:"items" binding:"required,min=1,dive"`
}

type changeRequest struct {
	lineRequest
	Type models.ChangeType `json:"type" binding:"required,oneof=Delete Decrease Replace"`
}

type updateRequest struct {
	Changes []changeRequest `json:"changes" binding:"required,min=1,dive"`
}

type addItemsRequest struct {
	Items []models.LineItem `json:"items" binding:"required,min=1"`
}

type referenceRequest struct {
	NewReference string `json:"new_reference" binding:"required"`
}

type OrderHandler struct {
	reconciler Reconciler
}

func NewOrderHandler(reconciler Reconciler) *OrderHandler {
	return &OrderHandler{reconciler: reconciler}
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	summary, err := h.reconciler.Summary(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *OrderHandler) Capture(c *gin.Context) {
	var req itemsRequest
	if !bind(c, &req) {
		return
	}
	run, err := h.reconciler.Capture(c.Request.Context(), c.Param("reference"), quantities(req.Items))
	h.respond(c, run, err)
}

func (h *OrderHandler) Return(c *gin.Context) {
	var req itemsRequest
	if !bind(c, &req) {
		return
	}
	run, err := h.reconciler.Return(c.Request.Context(), c.Param("reference"), quantities(req.Items))
	h.respond(c, run, err)
}

func (h *OrderHandler) Update(c *gin.Context) {
	var req updateRequest
	if !bind(c, &req) {
		return
	}
	changes := make([]models.Change, 0, len(req.Changes))
	for _, ch := range req.Changes {
		changes = append(changes, models.Change{Type: ch.Type, Identity: ch.identity(), Quantity: ch.Quantity})
	}
	run, err := h.reconciler.Update(c.Request.Context(), c.Param("reference"), changes)
	h.respond(c, run, err)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	run, err := h.reconciler.Cancel(c.Request.Context(), c.Param("reference"))
	h.respond(c, run, err)
}

func (h *OrderHandler) AddItems(c *gin.Context) {
	var req addItemsRequest
	if !bind(c, &req) {
		return
	}
	run, err := h.reconciler.AddItems(c.Request.Context(), c.Param("reference"), req.Items)
	h.respond(c, run, err)
}

func (h *OrderHandler) UpdateReference(c *gin.Context) {
	var req referenceRequest
	if !bind(c, &req) {
		return
	}
	run, err := h.reconciler.UpdateReference(c.Request.Context(), c.Param("reference"), req.NewReference)
	h.respond(c, run, err)
}

func (h *OrderHandler) RetryReversal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id", "code": codeInvalidRequestBody})
		return
	}
	run, err := h.reconciler.RetryReversal(c.Request.Context(), c.Param("reference"), id)
	h.respond(c, run, err)
}

func (h *OrderHandler) respond(c *gin.Context, run *models.ReconciliationRun, err error) {
	if err != nil {
		telemetry.LoggerFrom(c.Request.Context()).Warn("Reconciliation request failed",
			zap.String("merchant_reference", c.Param("reference")),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		status, code := statusFor(err)
		body := gin.H{"error": err.Error(), "code": code}
		if run != nil {
			body["run"] = run
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, run)
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": codeInvalidRequestBody})
		return false
	}
	return true
}

func quantities(lines []lineRequest) []models.ItemQuantity {
	items := make([]models.ItemQuantity, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.ItemQuantity{Identity: line.identity(), Quantity: line.Quantity})
	}
	return items
}
