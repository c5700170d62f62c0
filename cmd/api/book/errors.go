package book

import (
	"errors"
	"fmt"
)

// Kind groups error responses into the classes callers act on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindDuplicate
	KindInsufficientInventory
	KindUnauthorized
	KindForbidden
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failure"
	case KindDuplicate:
		return "duplicate_constraint"
	case KindInsufficientInventory:
		return "insufficient_inventory"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindPersistence:
		return "persistence_error"
	default:
		return "unknown"
	}
}

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
	kind    Kind
}

func (e ErrResponse) Error() string {
	return e.Message
}

func (e ErrResponse) Kind() Kind {
	return e.kind
}

// Retryable reports whether the same call may succeed if repeated later.
func (e ErrResponse) Retryable() bool {
	switch e.Code {
	case ErrResponsePersistenceTimeout.Code, ErrResponseConcurrentUpdate.Code, ErrResponseOrderSubmissionInProgress.Code:
		return true
	}
	return false
}

// WithDetail keeps code and kind but appends detail to the message.
func (e ErrResponse) WithDetail(detail string) ErrResponse {
	e.Message = e.Message + detail
	return e
}

var ErrResponseBookEntryBlankFields = ErrResponse{100, "fields title and author must be filled correctly.", KindValidation}
var ErrResponseBookNotFound = ErrResponse{101, "book not found", KindNotFound}
var ErrResponseEntryInvalidJSON = ErrResponse{102, "invalid json request.", KindValidation}
var ErrResponseReferenceInvalid = ErrResponse{103, "the book reference is empty or malformed.", KindValidation}
var ErrResponseBookDuplicate = ErrResponse{104, "there is already a book with this title and author.", KindDuplicate}
var ErrResponseQuantityInvalid = ErrResponse{105, "quantity amount must be a positive integer.", KindValidation}
var ErrResponsePhotoMissing = ErrResponse{106, "a photo file must be provided.", KindValidation}
var ErrResponseObjectNotFound = ErrResponse{107, "object not found", KindNotFound}
var ErrResponseOrderNotFound = ErrResponse{110, "order not found", KindNotFound}
var ErrResponseInsufficientInventory = ErrResponse{113, "inventory is insufficient for this order", KindInsufficientInventory}
var ErrResponseNewOrderEntryBlankFields = ErrResponse{117, "fields user_id, full_name, location and items[].product_id must be filled correctly.", KindValidation}
var ErrResponseOrderItemsCardinality = ErrResponse{119, "an order must contain exactly one book", KindValidation}
var ErrResponseOrderUserDuplicate = ErrResponse{120, "only one book can be purchased by a user", KindDuplicate}
var ErrResponseOrderStatusUnknown = ErrResponse{121, "order status must be one of: Received, Processing, Shipped, Delivered, Cancelled.", KindValidation}
var ErrResponseOrderStatusTransition = ErrResponse{122, "order status transition not allowed", KindValidation}
var ErrResponseOrderSubmissionInProgress = ErrResponse{123, "another order of this user is being confirmed, retry later", KindPersistence}
var ErrResponseNoteEntryBlankFields = ErrResponse{130, "fields text and contributor must be filled correctly.", KindValidation}
var ErrResponseNoteNotFound = ErrResponse{131, "note not found", KindNotFound}
var ErrResponseNoteDuplicateContributor = ErrResponse{132, "contributor already has a note on this book", KindDuplicate}
var ErrResponseUnauthorized = ErrResponse{140, "missing or invalid bearer token", KindUnauthorized}
var ErrResponseForbidden = ErrResponse{141, "identity is not allowed to perform this action", KindForbidden}
var ErrResponsePersistence = ErrResponse{150, "storage failure, the operation was not completed", KindPersistence}
var ErrResponsePersistenceTimeout = ErrResponse{151, "storage timeout, retry later", KindPersistence}
var ErrResponseConcurrentUpdate = ErrResponse{152, "concurrent update conflict", KindPersistence}

// KindOf extracts the Kind of the first ErrResponse wrapped in err.
func KindOf(err error) Kind {
	var resp ErrResponse
	if errors.As(err, &resp) {
		return resp.kind
	}
	if err != nil {
		return KindPersistence
	}
	return KindUnknown
}

// AsResponse returns the ErrResponse wrapped in err, or the generic persistence response.
func AsResponse(err error) ErrResponse {
	var resp ErrResponse
	if errors.As(err, &resp) {
		return resp
	}
	return ErrResponsePersistence
}

type ErrNotificationFailed struct {
	statusCode int
}

func (e ErrNotificationFailed) Error() string {
	return fmt.Sprintf("email dispatch wrong response - want: 2xx, got: %d", e.statusCode)
}

func NewErrNotificationFailed(statusCode int) ErrNotificationFailed {
	return ErrNotificationFailed{statusCode: statusCode}
}
