package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/books-fulfillment/cmd/api/auth"
	"github.com/books-fulfillment/cmd/api/book"
)

// ObjectReader hands back stored objects by key.
type ObjectReader interface {
	Get(ctx context.Context, objectKey string) (book.Upload, error)
}

type PhotoResponse struct {
	URL string `json:"url"`
}

/* Stores the caller's profile photo sent as the "photo" file of a multipart form. */
func (h *BookHandler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		invalidJSON(w, err)
		return
	}
	upload, err := readFormFile(r, "photo")
	if err != nil {
		invalidJSON(w, err)
		return
	}
	if upload == nil {
		responseError(w, book.ErrResponsePhotoMissing)
		return
	}

	id, _ := auth.FromContext(r.Context())
	owner := id.Email
	if owner == "" {
		owner = id.Subject
	}

	url, err := h.bookService.UploadPhoto(r.Context(), owner, *upload)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, PhotoResponse{URL: url})
}

func (h *BookHandler) getObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	object, err := h.objects.Get(r.Context(), key)
	if err != nil {
		if book.KindOf(err) != book.KindNotFound {
			h.log.WithError(err).WithField("object_key", key).Error("reading object failed")
		}
		responseError(w, err)
		return
	}

	contentType := object.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(object.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(object.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(object.Data)
}
