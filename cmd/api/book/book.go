package book

import (
	"strings"
	"time"
)

type Book struct {
	Key                 int64  // surrogate key, assigned by the store
	ID                  string // natural key, assigned by the service
	Title               string
	Author              string
	ThumbnailURL        string
	Description         string
	Quantity            int
	Notes               []Note
	Approved            bool
	AddedBy             string
	ContributorEmail    string
	ContributorImageURL string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Note struct {
	ID          string
	Position    int64
	Text        string
	Contributor string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateBookRequest struct {
	Title            string
	Author           string
	Description      string
	Quantity         int
	ThumbnailURL     string
	Thumbnail        *Upload
	AddedBy          string
	ContributorEmail string
	Approved         bool
}

// UpdateBookRequest carries a partial update. Nil fields are left untouched;
// quantity is not part of it, it only moves through the ledger.
type UpdateBookRequest struct {
	Reference    string
	Title        *string
	Author       *string
	Description  *string
	ThumbnailURL *string
	Thumbnail    *Upload
}

type ListBooksRequest struct {
	IncludeUnapproved bool
	PendingOnly       bool
}

// Upload is raw thumbnail or photo content handed to the object store.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type NoteRequest struct {
	Text        string
	Contributor string
	ImageURL    string
}

/* Verifies if the required book fields are filled. */
func FilledFields(req CreateBookRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return ErrResponseBookEntryBlankFields
	}
	if strings.TrimSpace(req.Author) == "" {
		return ErrResponseBookEntryBlankFields
	}
	if req.Quantity < 0 {
		return ErrResponseQuantityInvalid
	}
	return nil
}

/* Verifies if the required note fields are filled. */
func FilledNoteFields(req NoteRequest) error {
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.Contributor) == "" {
		return ErrResponseNoteEntryBlankFields
	}
	return nil
}
