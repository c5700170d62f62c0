package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/books-fulfillment/cmd/api/auth"
	"github.com/books-fulfillment/cmd/api/book"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 10 << 20

type BookHandler struct {
	bookService book.ServiceAPI
	verifier    auth.Verifier
	log         logrus.FieldLogger
	objects     ObjectReader
}

type HandlerOption func(*BookHandler)

/* Serves the stored thumbnails and photos under /objects/. */
func WithObjects(objects ObjectReader) HandlerOption {
	return func(h *BookHandler) { h.objects = objects }
}

func NewBookHandler(bookService book.ServiceAPI, verifier auth.Verifier, log logrus.FieldLogger, opts ...HandlerOption) *BookHandler {
	h := &BookHandler{bookService: bookService, verifier: verifier, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type BookEntry struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	Description  string `json:"description"`
	Quantity     int    `json:"quantity"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type BookUpdateEntry struct {
	Title        *string `json:"title"`
	Author       *string `json:"author"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnail_url"`
}

type InventoryEntry struct {
	Delta int `json:"delta"`
}

type BookResponse struct {
	Key                 int64          `json:"key"`
	ID                  string         `json:"id"`
	Title               string         `json:"title"`
	Author              string         `json:"author"`
	ThumbnailURL        string         `json:"thumbnail_url"`
	Description         string         `json:"description"`
	Quantity            int            `json:"quantity"`
	Notes               []NoteResponse `json:"notes"`
	Approved            bool           `json:"approved"`
	AddedBy             string         `json:"added_by"`
	ContributorEmail    string         `json:"contributor_email"`
	ContributorImageURL string         `json:"contributor_image_url"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

/*Copy the fields of a book object to an http layer struct with json tags*/
func bookToResponse(b book.Book) BookResponse {
	notes := []NoteResponse{}
	for _, n := range b.Notes {
		notes = append(notes, noteToResponse(n))
	}
	return BookResponse{
		Key:                 b.Key,
		ID:                  b.ID,
		Title:               b.Title,
		Author:              b.Author,
		ThumbnailURL:        b.ThumbnailURL,
		Description:         b.Description,
		Quantity:            b.Quantity,
		Notes:               notes,
		Approved:            b.Approved,
		AddedBy:             b.AddedBy,
		ContributorEmail:    b.ContributorEmail,
		ContributorImageURL: b.ContributorImageURL,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func booksToResponse(books []book.Book) []BookResponse {
	results := []BookResponse{}
	for _, b := range books {
		results = append(results, bookToResponse(b))
	}
	return results
}

/* Returns the approved catalog, or every book when an administrator asks for all=true. */
func (h *BookHandler) listBooks(w http.ResponseWriter, r *http.Request) {
	req := book.ListBooksRequest{}
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		if id, _ := auth.FromContext(r.Context()); !id.Admin {
			responseError(w, book.ErrResponseForbidden)
			return
		}
		req.IncludeUnapproved = true
	}

	books, err := h.bookService.ListBooks(r.Context(), req)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, booksToResponse(books))
}

func (h *BookHandler) listPendingBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.bookService.ListBooks(r.Context(), book.ListBooksRequest{PendingOnly: true})
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, booksToResponse(books))
}

/* Returns the book behind either key. */
func (h *BookHandler) getBook(w http.ResponseWriter, r *http.Request) {
	returnedBook, err := h.bookService.GetBook(r.Context(), r.PathValue("ref"))
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, bookToResponse(returnedBook))
}

/*
Creates a book from a JSON body or a multipart form carrying a "thumbnail" file.
Books from administrators are approved at once; everyone else's wait for approval.
*/
func (h *BookHandler) createBook(w http.ResponseWriter, r *http.Request) {
	var req book.CreateBookRequest
	if isMultipart(r) {
		entry, upload, err := readMultipartBook(w, r)
		if err != nil {
			invalidJSON(w, err)
			return
		}
		req = bookToCreateReq(entry)
		req.Thumbnail = upload
	} else {
		var entry BookEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			invalidJSON(w, err)
			return
		}
		req = bookToCreateReq(entry)
	}

	id, _ := auth.FromContext(r.Context())
	req.AddedBy = id.Name
	req.ContributorEmail = id.Email
	req.Approved = id.Admin

	storedBook, err := h.bookService.CreateBook(r.Context(), req)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusCreated, bookToResponse(storedBook))
}

/* Applies a partial update. Only the fields present in the body change. */
func (h *BookHandler) updateBook(w http.ResponseWriter, r *http.Request) {
	req := book.UpdateBookRequest{Reference: r.PathValue("ref")}
	if isMultipart(r) {
		entry, upload, err := readMultipartBook(w, r)
		if err != nil {
			invalidJSON(w, err)
			return
		}
		form := r.MultipartForm.Value
		if _, ok := form["title"]; ok {
			req.Title = &entry.Title
		}
		if _, ok := form["author"]; ok {
			req.Author = &entry.Author
		}
		if _, ok := form["description"]; ok {
			req.Description = &entry.Description
		}
		req.Thumbnail = upload
	} else {
		var entry BookUpdateEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			invalidJSON(w, err)
			return
		}
		req.Title = entry.Title
		req.Author = entry.Author
		req.Description = entry.Description
		req.ThumbnailURL = entry.ThumbnailURL
	}

	updatedBook, err := h.bookService.UpdateBook(r.Context(), req)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, bookToResponse(updatedBook))
}

func (h *BookHandler) approveBook(w http.ResponseWriter, r *http.Request) {
	approvedBook, err := h.bookService.ApproveBook(r.Context(), r.PathValue("ref"))
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, bookToResponse(approvedBook))
}

/* Deletes the book. Nothing to delete is a 404, not an error. */
func (h *BookHandler) deleteBook(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.bookService.DeleteBook(r.Context(), r.PathValue("ref"))
	if err != nil {
		responseError(w, err)
		return
	}
	if !deleted {
		responseError(w, book.ErrResponseBookNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* A positive delta restocks, a negative one takes units off the shelf. */
func (h *BookHandler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	var entry InventoryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		invalidJSON(w, err)
		return
	}

	var (
		updated book.Book
		err     error
	)
	switch {
	case entry.Delta > 0:
		updated, err = h.bookService.RestockQuantity(r.Context(), r.PathValue("ref"), entry.Delta)
	case entry.Delta < 0:
		updated, err = h.bookService.DecrementQuantity(r.Context(), r.PathValue("ref"), -entry.Delta)
	default:
		err = book.ErrResponseQuantityInvalid
	}
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, bookToResponse(updated))
}

/* Converts from BookEntry type to CreateBookRequest type, with no json tags. */
func bookToCreateReq(b BookEntry) book.CreateBookRequest {
	return book.CreateBookRequest{
		Title:        b.Title,
		Author:       b.Author,
		Description:  b.Description,
		Quantity:     b.Quantity,
		ThumbnailURL: b.ThumbnailURL,
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

/* Reads the book fields and the optional "thumbnail" file of a multipart form. */
func readMultipartBook(w http.ResponseWriter, r *http.Request) (BookEntry, *book.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return BookEntry{}, nil, err
	}

	entry := BookEntry{
		Title:        r.FormValue("title"),
		Author:       r.FormValue("author"),
		Description:  r.FormValue("description"),
		ThumbnailURL: r.FormValue("thumbnail_url"),
	}
	if q := r.FormValue("quantity"); q != "" {
		quantity, err := strconv.Atoi(q)
		if err != nil {
			return BookEntry{}, nil, err
		}
		entry.Quantity = quantity
	}

	upload, err := readFormFile(r, "thumbnail")
	if err != nil {
		return BookEntry{}, nil, err
	}
	return entry, upload, nil
}

/* Reads an uploaded file of a parsed multipart form. A missing file is nil, not an error. */
func readFormFile(r *http.Request, field string) (*book.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &book.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
