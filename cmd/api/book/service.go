package book

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . Repository,Uploader,Notifier,SubmissionGuard

type ServiceAPI interface {
	ListBooks(ctx context.Context, req ListBooksRequest) ([]Book, error)
	GetBook(ctx context.Context, ref string) (Book, error)
	CreateBook(ctx context.Context, req CreateBookRequest) (Book, error)
	UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error)
	ApproveBook(ctx context.Context, ref string) (Book, error)
	DeleteBook(ctx context.Context, ref string) (bool, error)
	DecrementQuantity(ctx context.Context, ref string, amount int) (Book, error)
	RestockQuantity(ctx context.Context, ref string, amount int) (Book, error)
	AddNote(ctx context.Context, ref string, req NoteRequest) (Note, error)
	UpdateNote(ctx context.Context, ref, noteID string, req NoteRequest) (Note, error)
	UpdateNoteAt(ctx context.Context, ref string, index int, req NoteRequest) (Note, error)
	DeleteNote(ctx context.Context, ref, noteID string) error
	DeleteNoteAt(ctx context.Context, ref string, index int) error
	ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status string) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	UploadPhoto(ctx context.Context, owner string, up Upload) (string, error)
}

type Repository interface {
	BookFinder
	ListBooks(ctx context.Context, filter ListBooksRequest) ([]Book, error)
	BookExists(ctx context.Context, title, author string) (bool, error)
	CreateBook(ctx context.Context, b Book) (Book, error)
	UpdateBook(ctx context.Context, b Book) (Book, error)
	SetBookApproval(ctx context.Context, key int64, approved bool, at time.Time) (Book, error)
	DeleteBook(ctx context.Context, key int64) (bool, error)

	DecrementQuantity(ctx context.Context, key int64, amount int, at time.Time) (Book, error)
	IncrementQuantity(ctx context.Context, key int64, amount int, at time.Time) (Book, error)

	LockBook(ctx context.Context, key int64) error
	ListNotes(ctx context.Context, bookKey int64) ([]Note, error)
	InsertNote(ctx context.Context, bookKey int64, n Note) (Note, error)
	UpdateNote(ctx context.Context, bookKey int64, n Note) (Note, error)
	DeleteNote(ctx context.Context, bookKey int64, noteID string) error

	CreateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus, at time.Time) (Order, error)

	BeginTx(ctx context.Context, opts *sql.TxOptions) (Repository, driver.Tx, error)
}

// Uploader stores binary content and hands back a public reference URL.
type Uploader interface {
	Upload(ctx context.Context, objectKey string, up Upload) (string, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	URL(objectKey string) string
}

// Notifier dispatches the approval request for a book recommended by a non-admin.
type Notifier interface {
	ApprovalRequested(ctx context.Context, b Book) error
}

// SubmissionGuard holds a short lived per-user lock while an order is being confirmed.
type SubmissionGuard interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

type Service struct {
	repo                 Repository
	log                  logrus.FieldLogger
	uploader             Uploader
	notifier             Notifier
	guard                SubmissionGuard
	storageTimeout       time.Duration
	notificationsTimeout time.Duration
	retryOptions         []RetryOption
	now                  func() time.Time
	pending              sync.WaitGroup
}

type Option func(*Service)

func WithUploader(u Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

func WithNotifier(n Notifier, timeout time.Duration) Option {
	return func(s *Service) {
		s.notifier = n
		s.notificationsTimeout = timeout
	}
}

func WithSubmissionGuard(g SubmissionGuard) Option {
	return func(s *Service) { s.guard = g }
}

func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) { s.storageTimeout = d }
}

func WithRetryOptions(opts ...RetryOption) Option {
	return func(s *Service) { s.retryOptions = opts }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		repo:                 repo,
		log:                  log,
		notifier:             noopNotifier{},
		guard:                noopGuard{},
		storageTimeout:       5 * time.Second,
		notificationsTimeout: 2 * time.Second,
		now:                  func() time.Time { return time.Now().UTC().Round(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopNotifier struct{}

func (noopNotifier) ApprovalRequested(context.Context, Book) error { return nil }

type noopGuard struct{}

func (noopGuard) Acquire(context.Context, string) (bool, error) { return true, nil }
func (noopGuard) Release(context.Context, string) error         { return nil }

/* Bounds a single storage call with the configured timeout. */
func (s *Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storageTimeout)
}

/*
Translates a storage failure into the response the caller sees. Business responses pass
through untouched; anything else is logged in full and replaced by a stable persistence response.
*/
func (s *Service) fail(op string, err error, fields logrus.Fields) error {
	var resp ErrResponse
	if errors.As(err, &resp) {
		return err
	}

	entry := s.log.WithFields(fields).WithField("op", op).WithError(err)
	if errors.Is(err, context.DeadlineExceeded) {
		entry.Warn("storage call timed out")
		return fmt.Errorf("%s: %w", op, ErrResponsePersistenceTimeout)
	}
	entry.Error("storage call failed")
	return fmt.Errorf("%s: %w", op, ErrResponsePersistence)
}

/* Runs fn inside one store transaction, rolling back on any error. */
func (s *Service) inTx(ctx context.Context, fn func(repo Repository) error) error {
	txRepo, tx, err := s.repo.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("rolling back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

/* Resolves a reference under the storage timeout. */
func (s *Service) resolve(ctx context.Context, ref string) (Book, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	b, err := Resolve(ctx, s.repo, ref)
	if err != nil {
		return Book{}, s.fail("resolve book", err, logrus.Fields{"reference": ref})
	}
	return b, nil
}

func (s *Service) ListBooks(ctx context.Context, req ListBooksRequest) ([]Book, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	books, err := s.repo.ListBooks(ctx, req)
	if err != nil {
		return nil, s.fail("list books", err, logrus.Fields{"include_unapproved": req.IncludeUnapproved, "pending_only": req.PendingOnly})
	}
	return books, nil
}

func (s *Service) GetBook(ctx context.Context, ref string) (Book, error) {
	return s.resolve(ctx, ref)
}

func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (Book, error) {
	if err := FilledFields(req); err != nil {
		return Book{}, err
	}

	title, author := strings.TrimSpace(req.Title), strings.TrimSpace(req.Author)

	existsCtx, cancel := s.storageCtx(ctx)
	exists, err := s.repo.BookExists(existsCtx, title, author)
	cancel()
	if err != nil {
		return Book{}, s.fail("check book existence", err, logrus.Fields{"title": title, "author": author})
	}
	if exists {
		return Book{}, ErrResponseBookDuplicate
	}

	now := s.now()
	newBook := Book{
		ID:               uuid.NewString(),
		Title:            title,
		Author:           author,
		Description:      req.Description,
		Quantity:         req.Quantity,
		ThumbnailURL:     req.ThumbnailURL,
		Notes:            []Note{},
		Approved:         req.Approved,
		AddedBy:          req.AddedBy,
		ContributorEmail: req.ContributorEmail,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if req.Thumbnail != nil {
		url, err := s.uploadThumbnail(ctx, newBook.Title, *req.Thumbnail)
		if err != nil {
			return Book{}, err
		}
		newBook.ThumbnailURL = url
	}
	if s.uploader != nil && req.ContributorEmail != "" {
		newBook.ContributorImageURL = s.uploader.URL(PhotoObjectKey(req.ContributorEmail))
	}

	createCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	created, err := s.repo.CreateBook(createCtx, newBook)
	if err != nil {
		return Book{}, s.fail("create book", err, logrus.Fields{"book_id": newBook.ID})
	}

	if !created.Approved {
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			s.requestApproval(created)
		}()
	}

	return created, nil
}

/* Blocks until every approval request in flight is done or ctx expires. */
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

/* Sends the approval request without holding up the caller. Failures are only logged. */
func (s *Service) requestApproval(b Book) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notificationsTimeout)
	defer cancel()

	if err := s.notifier.ApprovalRequested(ctx, b); err != nil {
		s.log.WithError(err).WithField("book_id", b.ID).Warn("approval request not delivered")
	}
}

func (s *Service) uploadThumbnail(ctx context.Context, title string, up Upload) (string, error) {
	if s.uploader == nil {
		return "", s.fail("upload thumbnail", errors.New("no uploader configured"), logrus.Fields{"title": title})
	}

	ext := path.Ext(up.Name)
	if ext == "" {
		ext = ".png"
	}
	objectKey := "books/thumbnails/" + strings.ReplaceAll(title, " ", "_") + ext

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	url, err := s.uploader.Upload(ctx, objectKey, up)
	if err != nil {
		return "", s.fail("upload thumbnail", err, logrus.Fields{"object_key": objectKey})
	}
	return url, nil
}

/* Names the profile photo object of a user, keyed by the local part of the email or by the subject. */
func PhotoObjectKey(owner string) string {
	userName, _, _ := strings.Cut(strings.TrimSpace(owner), "@")
	return userName + ".png"
}

/*
UploadPhoto stores the profile photo of owner and returns its public URL. A photo that is
already stored is kept and its URL returned.
*/
func (s *Service) UploadPhoto(ctx context.Context, owner string, up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", ErrResponsePhotoMissing
	}
	if strings.TrimSpace(owner) == "" {
		return "", ErrResponseUnauthorized
	}
	if s.uploader == nil {
		return "", s.fail("upload photo", errors.New("no uploader configured"), logrus.Fields{"owner": owner})
	}

	objectKey := PhotoObjectKey(owner)
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	exists, err := s.uploader.Exists(ctx, objectKey)
	if err != nil {
		return "", s.fail("check photo", err, logrus.Fields{"object_key": objectKey})
	}
	if exists {
		return s.uploader.URL(objectKey), nil
	}

	url, err := s.uploader.Upload(ctx, objectKey, up)
	if err != nil {
		return "", s.fail("upload photo", err, logrus.Fields{"object_key": objectKey})
	}
	return url, nil
}

func (s *Service) UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error) {
	current, err := s.resolve(ctx, req.Reference)
	if err != nil {
		return Book{}, err
	}

	updated := current
	if req.Title != nil {
		updated.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		updated.Author = strings.TrimSpace(*req.Author)
	}
	if updated.Title == "" || updated.Author == "" {
		return Book{}, ErrResponseBookEntryBlankFields
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.ThumbnailURL != nil {
		updated.ThumbnailURL = *req.ThumbnailURL
	}

	if updated.Title != current.Title || updated.Author != current.Author {
		existsCtx, cancel := s.storageCtx(ctx)
		exists, err := s.repo.BookExists(existsCtx, updated.Title, updated.Author)
		cancel()
		if err != nil {
			return Book{}, s.fail("check book existence", err, logrus.Fields{"book_id": current.ID})
		}
		if exists {
			return Book{}, ErrResponseBookDuplicate
		}
	}

	if req.Thumbnail != nil {
		url, err := s.uploadThumbnail(ctx, updated.Title, *req.Thumbnail)
		if err != nil {
			return Book{}, err
		}
		updated.ThumbnailURL = url
	}

	updated.UpdatedAt = s.now()

	updateCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	stored, err := s.repo.UpdateBook(updateCtx, updated)
	if err != nil {
		return Book{}, s.fail("update book", err, logrus.Fields{"book_id": current.ID})
	}
	return stored, nil
}

func (s *Service) ApproveBook(ctx context.Context, ref string) (Book, error) {
	current, err := s.resolve(ctx, ref)
	if err != nil {
		return Book{}, err
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	approved, err := s.repo.SetBookApproval(ctx, current.Key, true, s.now())
	if err != nil {
		return Book{}, s.fail("approve book", err, logrus.Fields{"book_id": current.ID})
	}
	return approved, nil
}

/* Deletes the referenced book. A reference that matches nothing reports false, not an error. */
func (s *Service) DeleteBook(ctx context.Context, ref string) (bool, error) {
	current, err := s.resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrResponseBookNotFound) {
			return false, nil
		}
		return false, err
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	deleted, err := s.repo.DeleteBook(ctx, current.Key)
	if err != nil {
		return false, s.fail("delete book", err, logrus.Fields{"book_id": current.ID})
	}
	return deleted, nil
}
