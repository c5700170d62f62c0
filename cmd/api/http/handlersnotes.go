package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/books-fulfillment/cmd/api/auth"
	"github.com/books-fulfillment/cmd/api/book"
)

type NoteEntry struct {
	Text        string `json:"text"`
	Contributor string `json:"contributor"`
	ImageURL    string `json:"image_url"`
}

type NoteResponse struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Contributor string    `json:"contributor"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func noteToResponse(n book.Note) NoteResponse {
	return NoteResponse{
		ID:          n.ID,
		Text:        n.Text,
		Contributor: n.Contributor,
		ImageURL:    n.ImageURL,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

/* Decodes a note body. Contributor and image default to the caller's identity. */
func readNote(r *http.Request) (book.NoteRequest, error) {
	var entry NoteEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		return book.NoteRequest{}, err
	}

	id, _ := auth.FromContext(r.Context())
	if strings.TrimSpace(entry.Contributor) == "" {
		entry.Contributor = id.Name
	}
	if entry.ImageURL == "" {
		entry.ImageURL = id.Picture
	}
	return book.NoteRequest{Text: entry.Text, Contributor: entry.Contributor, ImageURL: entry.ImageURL}, nil
}

func (h *BookHandler) addNote(w http.ResponseWriter, r *http.Request) {
	req, err := readNote(r)
	if err != nil {
		invalidJSON(w, err)
		return
	}

	n, err := h.bookService.AddNote(r.Context(), r.PathValue("ref"), req)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusCreated, noteToResponse(n))
}

func (h *BookHandler) updateNote(w http.ResponseWriter, r *http.Request) {
	req, err := readNote(r)
	if err != nil {
		invalidJSON(w, err)
		return
	}

	n, err := h.bookService.UpdateNote(r.Context(), r.PathValue("ref"), r.PathValue("noteID"), req)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, noteToResponse(n))
}

func (h *BookHandler) updateNoteAt(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	req, err := readNote(r)
	if err != nil {
		invalidJSON(w, err)
		return
	}

	n, err := h.bookService.UpdateNoteAt(r.Context(), r.PathValue("ref"), index, req)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, noteToResponse(n))
}

func (h *BookHandler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.bookService.DeleteNote(r.Context(), r.PathValue("ref"), r.PathValue("noteID")); err != nil {
		responseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) deleteNoteAt(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	if err := h.bookService.DeleteNoteAt(r.Context(), r.PathValue("ref"), index); err != nil {
		responseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* Isolates the note index from the URL. */
func noteIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		responseError(w, book.ErrResponseNoteNotFound)
		return 0, false
	}
	return index, true
}
