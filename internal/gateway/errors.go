package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of failures the gateway reports.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindMerchantURLNotSet
	KindOperationNotSupported
	KindOrderCancelled
	KindUnauthorized
	KindInvalidPaymentType
	KindInvalidItem
	KindPaymentReferenceIncorrect
	KindInvalidTotalAmount
	KindOrderNotFound
)

type kindInfo struct {
	name   string
	status int
}

var kinds = [...]kindInfo{
	KindUnknown:                   {"unknown", http.StatusBadGateway},
	KindInvalidInput:              {"invalid_input", http.StatusUnprocessableEntity},
	KindMerchantURLNotSet:         {"merchant_url_not_set", http.StatusUnprocessableEntity},
	KindOperationNotSupported:     {"operation_not_supported", http.StatusBadRequest},
	KindOrderCancelled:            {"order_has_been_cancelled", http.StatusBadRequest},
	KindUnauthorized:              {"unauthorized", http.StatusForbidden},
	KindInvalidPaymentType:        {"invalid_payment_type", http.StatusBadRequest},
	KindInvalidItem:               {"invalid_item", http.StatusBadRequest},
	KindPaymentReferenceIncorrect: {"payment_reference_is_incorrect", http.StatusBadRequest},
	KindInvalidTotalAmount:        {"invalid_request_total_amount", http.StatusBadRequest},
	KindOrderNotFound:             {"order_not_found", http.StatusNotFound},
}

var codes = map[string]ErrorKind{
	"INVALID_INPUT":                  KindInvalidInput,
	"MERCHANT_URL_NOT_SET":           KindMerchantURLNotSet,
	"OPERATION_NOT_SUPPORTED":        KindOperationNotSupported,
	"ORDER_HAS_BEEN_CANCELLED":       KindOrderCancelled,
	"UNAUTHORIZED":                   KindUnauthorized,
	"FORBIDDEN":                      KindUnauthorized,
	"INVALID_PAYMENT_TYPE":           KindInvalidPaymentType,
	"INVALID_ITEM":                   KindInvalidItem,
	"PAYMENT_REFERENCE_IS_INCORRECT": KindPaymentReferenceIncorrect,
	"INVALID_REQUEST_TOTAL_AMOUNT":   KindInvalidTotalAmount,
	"ORDER_NOT_FOUND":                KindOrderNotFound,
}

// Classify maps a gateway error code to its kind.
func Classify(code string) ErrorKind {
	if kind, ok := codes[code]; ok {
		return kind
	}
	return KindUnknown
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kinds) {
		return kinds[KindUnknown].name
	}
	return kinds[k].name
}

// HTTPStatus is the status the gateway answers with for this kind.
func (k ErrorKind) HTTPStatus() int {
	if k < 0 || int(k) >= len(kinds) {
		return kinds[KindUnknown].status
	}
	return kinds[k].status
}

// Error is a failure reported by the gateway.
type Error struct {
	Kind      ErrorKind
	Code      string
	Message   string
	Reference string
	Status    int
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s; Error ref: %s; Error code: %s", e.Message, e.Reference, e.Code)
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, gateway.ErrOrderNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == "" && t.Message == ""
}

var (
	ErrOrderNotFound  = &Error{Kind: KindOrderNotFound}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrOrderCancelled = &Error{Kind: KindOrderCancelled}
	ErrInvalidItem    = &Error{Kind: KindInvalidItem}
)

type errorBody struct {
	ErrorCode      string `json:"ErrorCode"`
	ErrorMessage   string `json:"ErrorMessage"`
	ErrorReference string `json:"ErrorReference"`
}

// ParseError builds an *Error from a non-2xx gateway response.
func ParseError(status int, body []byte) *Error {
	if status == http.StatusUnauthorized {
		return &Error{
			Kind:    KindUnauthorized,
			Message: "check auth credentials, cannot authenticate",
			Status:  status,
		}
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ErrorCode == "" {
		return &Error{
			Kind:    KindUnknown,
			Message: "invalid or unexpected response format: " + string(body),
			Status:  status,
		}
	}

	if parsed.ErrorMessage == "" {
		parsed.ErrorMessage = "No error message provided"
	}
	if parsed.ErrorReference == "" {
		parsed.ErrorReference = "No error reference provided"
	}
	kind := Classify(parsed.ErrorCode)
	if kind != KindUnknown {
		status = kind.HTTPStatus()
	}
	return &Error{
		Kind:      kind,
		Code:      parsed.ErrorCode,
		Message:   parsed.ErrorMessage,
		Reference: parsed.ErrorReference,
		Status:    status,
	}
}
