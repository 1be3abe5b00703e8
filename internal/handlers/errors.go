package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/order-reconciler/internal/changeset"
	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/service"
)

const (
	codeInvalidRequestBody  = "invalid_request_body"
	codeLineNotFound        = "line_not_found"
	codeQuantityExceeded    = "quantity_exceeded"
	codeInvalidQuantity     = "invalid_quantity"
	codeOrderLocked         = "order_locked"
	codeUnsupportedType     = "unsupported_transaction_type"
	codeTransactionNotFound = "transaction_not_found"
	codeRetriesExhausted    = "retries_exhausted"
	codeInternalError       = "internal_error"
)

// statusFor maps an error to the HTTP status and code returned to callers.
func statusFor(err error) (int, string) {
	var (
		notFound    *changeset.LineNotFoundError
		exceeded    *changeset.QuantityExceededError
		unsupported *ledger.UnsupportedTransactionTypeError
		exhausted   *service.ExhaustedRetriesError
		gwErr       *gateway.Error
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity, codeLineNotFound
	case errors.As(err, &exceeded):
		return http.StatusUnprocessableEntity, codeQuantityExceeded
	case errors.Is(err, changeset.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, codeInvalidQuantity
	case errors.Is(err, interfaces.ErrOrderLocked):
		return http.StatusConflict, codeOrderLocked
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, codeUnsupportedType
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return http.StatusNotFound, codeTransactionNotFound
	case errors.As(err, &exhausted):
		return http.StatusBadGateway, codeRetriesExhausted
	case errors.As(err, &gwErr):
		return gwErr.Kind.HTTPStatus(), gwErr.Kind.String()
	case errors.Is(err, service.ErrUnknownOperation):
		return http.StatusBadRequest, codeInvalidRequestBody
	default:
		return http.StatusInternalServerError, codeInternalError
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
