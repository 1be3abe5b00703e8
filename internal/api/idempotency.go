package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/order-reconciler/internal/idempotency"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

const idempotencyHeader = "Idempotency-Key"

type responseStore interface {
	Lookup(key, requestHash string) (*idempotency.Response, error)
	Save(key string, resp *idempotency.Response) (*idempotency.Response, bool, error)
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a POST carrying an
// already seen Idempotency-Key.
func IdempotencyMiddleware(store responseStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body", "code": "invalid_request_body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := requestHash(c.Request.Method, c.Request.URL.Path, body)

		stored, err := store.Lookup(key, hash)
		switch {
		case err == nil:
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			c.Abort()
			return
		case errors.Is(err, idempotency.ErrConflict):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "idempotency_conflict"})
			return
		case !errors.Is(err, idempotency.ErrNotFound):
			telemetry.Logger.Error("Idempotency lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "idempotency lookup failed", "code": "internal_error"})
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		status := recorder.Status()
		if status >= http.StatusInternalServerError || status == http.StatusConflict {
			return
		}
		if _, _, err := store.Save(key, &idempotency.Response{
			RequestHash: hash,
			Status:      status,
			Body:        recorder.body.Bytes(),
		}); err != nil {
			telemetry.Logger.Error("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
	}
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
