package inmemory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/books-fulfillment/cmd/api/book"
	"github.com/hashicorp/go-memdb"
)

const (
	tableBook  = "book"
	tableNote  = "note"
	tableOrder = "order"
)

// InMemoryStore keeps the catalog and orders in go-memdb. Write transactions are
// serialized by memdb itself, which is what makes the conditional updates atomic.
type InMemoryStore struct {
	db      *memdb.MemDB
	txn     *memdb.Txn // only set on stores handed out by BeginTx
	nextKey *atomic.Int64
}

func NewInMemoryStore() (*InMemoryStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableBook: {
				Name: tableBook,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
					"natural": {
						Name:    "natural",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"title_author": {
						Name:   "title_author",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Title"},
								&memdb.StringFieldIndex{Field: "Author"},
							},
						},
					},
				},
			},
			tableNote: {
				Name: tableNote,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"book_key": {
						Name:    "book_key",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "BookKey"},
					},
				},
			},
			tableOrder: {
				Name: tableOrder,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"user_id": {
						Name:    "user_id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "UserID"},
					},
				},
			},
		},
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("validating in-memory schema: %w", err)
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return &InMemoryStore{db: db, nextKey: &atomic.Int64{}}, nil
}

type AdaptedBook struct {
	Key                 string
	ID                  string
	Title               string
	Author              string
	ThumbnailURL        string
	Description         string
	Quantity            int
	Approved            bool
	AddedBy             string
	ContributorEmail    string
	ContributorImageURL string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func adaptBookKeyToString(b book.Book) AdaptedBook {
	return AdaptedBook{
		Key:                 strconv.FormatInt(b.Key, 10),
		ID:                  b.ID,
		Title:               b.Title,
		Author:              b.Author,
		ThumbnailURL:        b.ThumbnailURL,
		Description:         b.Description,
		Quantity:            b.Quantity,
		Approved:            b.Approved,
		AddedBy:             b.AddedBy,
		ContributorEmail:    b.ContributorEmail,
		ContributorImageURL: b.ContributorImageURL,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func adaptBookKeyToInt(a AdaptedBook) book.Book {
	key, _ := strconv.ParseInt(a.Key, 10, 64)
	return book.Book{
		Key:                 key,
		ID:                  a.ID,
		Title:               a.Title,
		Author:              a.Author,
		ThumbnailURL:        a.ThumbnailURL,
		Description:         a.Description,
		Quantity:            a.Quantity,
		Notes:               []book.Note{},
		Approved:            a.Approved,
		AddedBy:             a.AddedBy,
		ContributorEmail:    a.ContributorEmail,
		ContributorImageURL: a.ContributorImageURL,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

type AdaptedNote struct {
	ID          string
	BookKey     string
	Position    int64
	Text        string
	Contributor string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func adaptNote(bookKey int64, n book.Note) AdaptedNote {
	return AdaptedNote{
		ID:          n.ID,
		BookKey:     strconv.FormatInt(bookKey, 10),
		Position:    n.Position,
		Text:        n.Text,
		Contributor: n.Contributor,
		ImageURL:    n.ImageURL,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func (a AdaptedNote) toNote() book.Note {
	return book.Note{
		ID:          a.ID,
		Position:    a.Position,
		Text:        a.Text,
		Contributor: a.Contributor,
		ImageURL:    a.ImageURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type AdaptedOrder struct {
	ID                 string
	UserID             string
	FullName           string
	Location           string
	ProductIDs         []string
	ConfirmationNumber string
	Status             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func adaptOrder(o book.Order) AdaptedOrder {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return AdaptedOrder{
		ID:                 o.ID,
		UserID:             o.UserID,
		FullName:           o.FullName,
		Location:           o.Location,
		ProductIDs:         ids,
		ConfirmationNumber: o.ConfirmationNumber,
		Status:             string(o.Status),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func (a AdaptedOrder) toOrder() book.Order {
	items := make([]book.OrderItem, 0, len(a.ProductIDs))
	for _, id := range a.ProductIDs {
		items = append(items, book.OrderItem{ProductID: id})
	}
	return book.Order{
		ID:                 a.ID,
		UserID:             a.UserID,
		FullName:           a.FullName,
		Location:           a.Location,
		Items:              items,
		ConfirmationNumber: a.ConfirmationNumber,
		Status:             book.OrderStatus(a.Status),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// -- Transaction helpers --

/* Runs fn in the enclosing transaction, or in a fresh read transaction. */
func (store *InMemoryStore) view(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if store.txn != nil {
		return fn(store.txn)
	}
	txn := store.db.Txn(false)
	defer txn.Abort()
	return fn(txn)
}

/* Runs fn in the enclosing transaction, or in a fresh write transaction committed on success. */
func (store *InMemoryStore) update(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if store.txn != nil {
		return fn(store.txn)
	}
	txn := store.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func firstBook(txn *memdb.Txn, index string, args ...any) (AdaptedBook, error) {
	raw, err := txn.First(tableBook, index, args...)
	if err != nil {
		return AdaptedBook{}, err
	}
	if raw == nil {
		return AdaptedBook{}, book.ErrResponseBookNotFound
	}
	return raw.(AdaptedBook), nil
}

func notesOf(txn *memdb.Txn, bookKey string) ([]book.Note, error) {
	it, err := txn.Get(tableNote, "book_key", bookKey)
	if err != nil {
		return nil, err
	}
	notes := []book.Note{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		notes = append(notes, obj.(AdaptedNote).toNote())
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Position < notes[j].Position
	})
	return notes, nil
}

func withNotes(txn *memdb.Txn, a AdaptedBook) (book.Book, error) {
	b := adaptBookKeyToInt(a)
	notes, err := notesOf(txn, a.Key)
	if err != nil {
		return book.Book{}, err
	}
	b.Notes = notes
	return b, nil
}

// -- Books --

func (store *InMemoryStore) GetBookByKey(ctx context.Context, key int64) (book.Book, error) {
	var b book.Book
	err := store.view(ctx, func(txn *memdb.Txn) error {
		a, err := firstBook(txn, "id", strconv.FormatInt(key, 10))
		if err != nil {
			return err
		}
		b, err = withNotes(txn, a)
		return err
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("searching by key: %w", err)
	}
	return b, nil
}

func (store *InMemoryStore) GetBookByNaturalKey(ctx context.Context, id string) (book.Book, error) {
	var b book.Book
	err := store.view(ctx, func(txn *memdb.Txn) error {
		a, err := firstBook(txn, "natural", id)
		if err != nil {
			return err
		}
		b, err = withNotes(txn, a)
		return err
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("searching by ID: %w", err)
	}
	return b, nil
}

func (store *InMemoryStore) ListBooks(ctx context.Context, filter book.ListBooksRequest) ([]book.Book, error) {
	books := []book.Book{}
	err := store.view(ctx, func(txn *memdb.Txn) error {
		it, err := txn.Get(tableBook, "id")
		if err != nil {
			return err
		}
		for obj := it.Next(); obj != nil; obj = it.Next() {
			a := obj.(AdaptedBook)
			if filter.PendingOnly && a.Approved {
				continue
			}
			if !filter.PendingOnly && !filter.IncludeUnapproved && !a.Approved {
				continue
			}
			b, err := withNotes(txn, a)
			if err != nil {
				return err
			}
			books = append(books, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].Key < books[j].Key
	})
	return books, nil
}

func (store *InMemoryStore) BookExists(ctx context.Context, title, author string) (bool, error) {
	exists := false
	err := store.view(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableBook, "title_author", title, author)
		exists = raw != nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("verifying same title and author on db: %w", err)
	}
	return exists, nil
}

func (store *InMemoryStore) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	var created book.Book
	err := store.update(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableBook, "title_author", bookEntry.Title, bookEntry.Author)
		if err != nil {
			return err
		}
		if raw != nil {
			return book.ErrResponseBookDuplicate
		}

		bookEntry.Key = store.nextKey.Add(1)
		a := adaptBookKeyToString(bookEntry)
		if err := txn.Insert(tableBook, a); err != nil {
			return err
		}
		created = adaptBookKeyToInt(a)
		return nil
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}
	return created, nil
}

func (store *InMemoryStore) UpdateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	var updated book.Book
	err := store.update(ctx, func(txn *memdb.Txn) error {
		a, err := firstBook(txn, "id", strconv.FormatInt(bookEntry.Key, 10))
		if err != nil {
			return err
		}

		if a.Title != bookEntry.Title || a.Author != bookEntry.Author {
			raw, err := txn.First(tableBook, "title_author", bookEntry.Title, bookEntry.Author)
			if err != nil {
				return err
			}
			if raw != nil {
				return book.ErrResponseBookDuplicate
			}
		}

		a.Title = bookEntry.Title
		a.Author = bookEntry.Author
		a.Description = bookEntry.Description
		a.ThumbnailURL = bookEntry.ThumbnailURL
		a.UpdatedAt = bookEntry.UpdatedAt
		//Quantity, approval and CreatedAt will not change
		if err := txn.Insert(tableBook, a); err != nil {
			return err
		}
		updated, err = withNotes(txn, a)
		return err
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("updating book on db: %w", err)
	}
	return updated, nil
}

func (store *InMemoryStore) SetBookApproval(ctx context.Context, key int64, approved bool, at time.Time) (book.Book, error) {
	var updated book.Book
	err := store.update(ctx, func(txn *memdb.Txn) error {
		a, err := firstBook(txn, "id", strconv.FormatInt(key, 10))
		if err != nil {
			return err
		}
		a.Approved = approved
		a.UpdatedAt = at
		if err := txn.Insert(tableBook, a); err != nil {
			return err
		}
		updated, err = withNotes(txn, a)
		return err
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("approving on db: %w", err)
	}
	return updated, nil
}

func (store *InMemoryStore) DeleteBook(ctx context.Context, key int64) (bool, error) {
	deleted := false
	err := store.update(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableBook, "id", strconv.FormatInt(key, 10))
		if err != nil || raw == nil {
			return err
		}
		if _, err := txn.DeleteAll(tableNote, "book_key", strconv.FormatInt(key, 10)); err != nil {
			return err
		}
		if err := txn.Delete(tableBook, raw); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting book from db: %w", err)
	}
	return deleted, nil
}

// -- Inventory --

/* Check and write happen in one write transaction, which memdb runs one at a time. */
func (store *InMemoryStore) DecrementQuantity(ctx context.Context, key int64, amount int, at time.Time) (book.Book, error) {
	var updated book.Book
	err := store.update(ctx, func(txn *memdb.Txn) error {
		a, err := firstBook(txn, "id", strconv.FormatInt(key, 10))
		if err != nil {
			return err
		}
		if a.Quantity < amount {
			return book.ErrResponseInsufficientInventory
		}
		a.Quantity -= amount
		a.UpdatedAt = at
		if err := txn.Insert(tableBook, a); err != nil {
			return err
		}
		updated, err = withNotes(txn, a)
		return err
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("decrementing quantity on db: %w", err)
	}
	return updated, nil
}

func (store *InMemoryStore) IncrementQuantity(ctx context.Context, key int64, amount int, at time.Time) (book.Book, error) {
	var updated book.Book
	err := store.update(ctx, func(txn *memdb.Txn) error {
		a, err := firstBook(txn, "id", strconv.FormatInt(key, 10))
		if err != nil {
			return err
		}
		a.Quantity += amount
		a.UpdatedAt = at
		if err := txn.Insert(tableBook, a); err != nil {
			return err
		}
		updated, err = withNotes(txn, a)
		return err
	})
	if err != nil {
		return book.Book{}, fmt.Errorf("incrementing quantity on db: %w", err)
	}
	return updated, nil
}

// -- Notes --

/* Write transactions are already exclusive, so locking only checks that the book exists. */
func (store *InMemoryStore) LockBook(ctx context.Context, key int64) error {
	return store.view(ctx, func(txn *memdb.Txn) error {
		_, err := firstBook(txn, "id", strconv.FormatInt(key, 10))
		return err
	})
}

func (store *InMemoryStore) ListNotes(ctx context.Context, bookKey int64) ([]book.Note, error) {
	var notes []book.Note
	err := store.view(ctx, func(txn *memdb.Txn) error {
		var err error
		notes, err = notesOf(txn, strconv.FormatInt(bookKey, 10))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing notes from db: %w", err)
	}
	return notes, nil
}

func (store *InMemoryStore) InsertNote(ctx context.Context, bookKey int64, n book.Note) (book.Note, error) {
	err := store.update(ctx, func(txn *memdb.Txn) error {
		if _, err := firstBook(txn, "id", strconv.FormatInt(bookKey, 10)); err != nil {
			return err
		}
		notes, err := notesOf(txn, strconv.FormatInt(bookKey, 10))
		if err != nil {
			return err
		}
		n.Position = 1
		if len(notes) > 0 {
			n.Position = notes[len(notes)-1].Position + 1
		}
		return txn.Insert(tableNote, adaptNote(bookKey, n))
	})
	if err != nil {
		return book.Note{}, fmt.Errorf("storing note on db: %w", err)
	}
	return n, nil
}

func (store *InMemoryStore) UpdateNote(ctx context.Context, bookKey int64, n book.Note) (book.Note, error) {
	var updated book.Note
	err := store.update(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableNote, "id", n.ID)
		if err != nil {
			return err
		}
		if raw == nil || raw.(AdaptedNote).BookKey != strconv.FormatInt(bookKey, 10) {
			return book.ErrResponseNoteNotFound
		}
		a := raw.(AdaptedNote)
		a.Text = n.Text
		a.Contributor = n.Contributor
		a.ImageURL = n.ImageURL
		a.UpdatedAt = n.UpdatedAt
		if err := txn.Insert(tableNote, a); err != nil {
			return err
		}
		updated = a.toNote()
		return nil
	})
	if err != nil {
		return book.Note{}, fmt.Errorf("updating note on db: %w", err)
	}
	return updated, nil
}

func (store *InMemoryStore) DeleteNote(ctx context.Context, bookKey int64, noteID string) error {
	err := store.update(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableNote, "id", noteID)
		if err != nil {
			return err
		}
		if raw == nil || raw.(AdaptedNote).BookKey != strconv.FormatInt(bookKey, 10) {
			return book.ErrResponseNoteNotFound
		}
		return txn.Delete(tableNote, raw)
	})
	if err != nil {
		return fmt.Errorf("deleting note from db: %w", err)
	}
	return nil
}

// -- Orders --

/* memdb does not reject duplicates on secondary unique indexes, so the user check is done here. */
func (store *InMemoryStore) CreateOrder(ctx context.Context, newOrder book.Order) (book.Order, error) {
	err := store.update(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableOrder, "user_id", newOrder.UserID)
		if err != nil {
			return err
		}
		if raw != nil {
			return book.ErrResponseOrderUserDuplicate
		}
		return txn.Insert(tableOrder, adaptOrder(newOrder))
	})
	if err != nil {
		return book.Order{}, fmt.Errorf("storing order on db: %w", err)
	}
	return newOrder, nil
}

func (store *InMemoryStore) GetOrder(ctx context.Context, id string) (book.Order, error) {
	var o book.Order
	err := store.view(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableOrder, "id", strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if raw == nil {
			return book.ErrResponseOrderNotFound
		}
		o = raw.(AdaptedOrder).toOrder()
		return nil
	})
	if err != nil {
		return book.Order{}, fmt.Errorf("getting order from db: %w", err)
	}
	return o, nil
}

func (store *InMemoryStore) ListOrders(ctx context.Context) ([]book.Order, error) {
	return store.listOrders(ctx, "id")
}

func (store *InMemoryStore) ListOrdersByUser(ctx context.Context, userID string) ([]book.Order, error) {
	return store.listOrders(ctx, "user_id", userID)
}

func (store *InMemoryStore) listOrders(ctx context.Context, index string, args ...any) ([]book.Order, error) {
	orders := []book.Order{}
	err := store.view(ctx, func(txn *memdb.Txn) error {
		it, err := txn.Get(tableOrder, index, args...)
		if err != nil {
			return err
		}
		for obj := it.Next(); obj != nil; obj = it.Next() {
			orders = append(orders, obj.(AdaptedOrder).toOrder())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing orders from db: %w", err)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (store *InMemoryStore) UpdateOrderStatus(ctx context.Context, id string, from, to book.OrderStatus, at time.Time) (book.Order, error) {
	var updated book.Order
	err := store.update(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableOrder, "id", id)
		if err != nil {
			return err
		}
		if raw == nil {
			return book.ErrResponseOrderNotFound
		}
		a := raw.(AdaptedOrder)
		if a.Status != string(from) {
			return book.ErrResponseConcurrentUpdate
		}
		a.Status = string(to)
		a.UpdatedAt = at
		if err := txn.Insert(tableOrder, a); err != nil {
			return err
		}
		updated = a.toOrder()
		return nil
	})
	if err != nil {
		return book.Order{}, fmt.Errorf("updating order status on db: %w", err)
	}
	return updated, nil
}

// -- Transactions --

func (store *InMemoryStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (book.Repository, driver.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	txn := store.db.Txn(true)

	txStore := &InMemoryStore{
		db:      store.db,
		txn:     txn,
		nextKey: store.nextKey,
	}
	return txStore, &TxWrapper{txn: txn}, nil
}

type TxWrapper struct {
	txn *memdb.Txn
}

func (tx *TxWrapper) Commit() error {
	tx.txn.Commit()
	return nil
}

func (tx *TxWrapper) Rollback() error {
	tx.txn.Abort()
	return nil
}
