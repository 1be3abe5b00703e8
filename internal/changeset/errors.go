package changeset

import (
	"errors"
	"fmt"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

var ErrInvalidQuantity = errors.New("requested quantity must be positive")

// LineNotFoundError reports a requested line that is absent from the
// eligible pool.
type LineNotFoundError struct {
	Identity models.LineIdentity
	Pool     string
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found in %s items", e.Identity, e.Pool)
}

// QuantityExceededError reports a request for more units than the pool holds.
type QuantityExceededError struct {
	Identity  models.LineIdentity
	Pool      string
	Requested int
	Available int
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("requested quantity %d exceeds %s quantity %d for item %s",
		e.Requested, e.Pool, e.Available, e.Identity)
}

// IsValidation reports whether err was raised locally before any gateway call.
func IsValidation(err error) bool {
	var notFound *LineNotFoundError
	var exceeded *QuantityExceededError
	return errors.As(err, &notFound) || errors.As(err, &exceeded) || errors.Is(err, ErrInvalidQuantity)
}
