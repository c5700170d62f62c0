package http

import (
	"net/http"
	"strconv"

	"github.com/books-fulfillment/cmd/api/book"
)

const retryAfterSeconds = 1

/* Maps the kind of err onto its HTTP status. */
func statusFor(err error) int {
	switch book.KindOf(err) {
	case book.KindNotFound:
		return http.StatusNotFound
	case book.KindValidation:
		return http.StatusBadRequest
	case book.KindDuplicate, book.KindInsufficientInventory:
		return http.StatusConflict
	case book.KindUnauthorized:
		return http.StatusUnauthorized
	case book.KindForbidden:
		return http.StatusForbidden
	}
	if book.AsResponse(err).Retryable() {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

/*
Writes err as a JSON error body. Anything that is not an ErrResponse has already been logged
by the service layer and goes out as the generic persistence response.
*/
func responseError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	responseJSON(w, status, book.AsResponse(err))
}

/*Writes a JSON response into a http.ResponseWriter. */
func responseJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func invalidJSON(w http.ResponseWriter, err error) {
	responseError(w, book.ErrResponseEntryInvalidJSON.WithDetail(" "+err.Error()))
}
