package database_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/books-fulfillment/cmd/api/book"
	"github.com/books-fulfillment/cmd/api/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

var store *database.Store
var sqlDB *sql.DB
var ctx context.Context = context.Background()

// TestMain prepares a migrated database. Without DATABASE_URL the integration tests are skipped.
func TestMain(m *testing.M) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Println("DATABASE_URL not set, skipping postgres integration tests")
		os.Exit(0)
	}

	var err error
	sqlDB, err = database.ConnectDb(ctx, connStr, database.PoolConfig{MaxOpenConns: 20})
	if err != nil {
		log.Fatalln(err)
	}

	store = database.NewStore(sqlDB)
	path := os.Getenv("DATABASE_MIGRATIONS_PATH")
	if path == "" {
		path = "../../../migrations"
	}
	err = database.MigrationUp(store, path)
	if err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalln(err)
		}
		log.Println(err)
	}

	os.Exit(m.Run())
}

func TestCreateBook(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("creates a book and finds it by both keys", func(t *testing.T) {
		is := is.New(t)

		b := newBook("Dune", "Frank Herbert", 3)
		created, err := store.CreateBook(ctx, b)
		is.NoErr(err)
		is.True(created.Key > 0)
		b.Key = created.Key
		compareBooks(is, created, b)

		byKey, err := store.GetBookByKey(ctx, created.Key)
		is.NoErr(err)
		compareBooks(is, byKey, b)

		byID, err := store.GetBookByNaturalKey(ctx, b.ID)
		is.NoErr(err)
		compareBooks(is, byID, b)
	})

	t.Run("rejects the same title and author", func(t *testing.T) {
		is := is.New(t)

		_, err := store.CreateBook(ctx, newBook("Emma", "Jane Austen", 1))
		is.NoErr(err)
		_, err = store.CreateBook(ctx, newBook("Emma", "Jane Austen", 1))
		is.True(errors.Is(err, book.ErrResponseBookDuplicate))
	})

	t.Run("unknown keys are not found", func(t *testing.T) {
		is := is.New(t)

		_, err := store.GetBookByKey(ctx, 987654)
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
		_, err = store.GetBookByNaturalKey(ctx, uuid.NewString())
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})
}

func TestListBooks(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})
	is := is.New(t)

	approved := newBook("Approved", "Someone", 1)
	approved.Approved = true
	_, err := store.CreateBook(ctx, approved)
	is.NoErr(err)
	_, err = store.CreateBook(ctx, newBook("Pending", "Someone", 1))
	is.NoErr(err)

	t.Run("approved only by default", func(t *testing.T) {
		is := is.New(t)
		books, err := store.ListBooks(ctx, book.ListBooksRequest{})
		is.NoErr(err)
		is.Equal(len(books), 1)
		is.Equal(books[0].Title, "Approved")
	})

	t.Run("every book when unapproved are included", func(t *testing.T) {
		is := is.New(t)
		books, err := store.ListBooks(ctx, book.ListBooksRequest{IncludeUnapproved: true})
		is.NoErr(err)
		is.Equal(len(books), 2)
		is.True(books[0].Key < books[1].Key)
	})

	t.Run("pending only", func(t *testing.T) {
		is := is.New(t)
		books, err := store.ListBooks(ctx, book.ListBooksRequest{PendingOnly: true})
		is.NoErr(err)
		is.Equal(len(books), 1)
		is.Equal(books[0].Title, "Pending")
	})
}

func TestDecrementQuantity(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("concurrent decrements never go below zero", func(t *testing.T) {
		is := is.New(t)

		const stock = 5
		created, err := store.CreateBook(ctx, newBook("Scarce", "Author", stock))
		is.NoErr(err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded, short := 0, 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.DecrementQuantity(ctx, created.Key, 1, now())
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, book.ErrResponseInsufficientInventory):
					short++
				}
			}()
		}
		wg.Wait()

		is.Equal(succeeded, stock)
		is.Equal(short, 20-stock)
		after, err := store.GetBookByKey(ctx, created.Key)
		is.NoErr(err)
		is.Equal(after.Quantity, 0)
	})

	t.Run("missing book is not found", func(t *testing.T) {
		is := is.New(t)
		_, err := store.DecrementQuantity(ctx, 424242, 1, now())
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})
}

func TestNotes(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})
	is := is.New(t)

	created, err := store.CreateBook(ctx, newBook("Annotated", "Author", 1))
	is.NoErr(err)

	for i := 0; i < 3; i++ {
		_, err := store.InsertNote(ctx, created.Key, book.Note{
			ID:          uuid.NewString(),
			Text:        fmt.Sprintf("note %d", i),
			Contributor: fmt.Sprintf("contributor %d", i),
			CreatedAt:   now(),
			UpdatedAt:   now(),
		})
		is.NoErr(err)
	}

	notes, err := store.ListNotes(ctx, created.Key)
	is.NoErr(err)
	is.Equal(len(notes), 3)
	is.True(notes[0].Position < notes[1].Position)

	is.NoErr(store.DeleteNote(ctx, created.Key, notes[0].ID))
	err = store.DeleteNote(ctx, created.Key, notes[0].ID)
	is.True(errors.Is(err, book.ErrResponseNoteNotFound))

	withNotes, err := store.GetBookByKey(ctx, created.Key)
	is.NoErr(err)
	is.Equal(len(withNotes.Notes), 2)
	is.Equal(withNotes.Notes[0].Text, "note 1")

	deleted, err := store.DeleteBook(ctx, created.Key)
	is.NoErr(err)
	is.True(deleted)
	notes, err = store.ListNotes(ctx, created.Key)
	is.NoErr(err)
	is.Equal(len(notes), 0)
}

func TestOrders(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("one order per user", func(t *testing.T) {
		is := is.New(t)

		o := newOrder("user-1")
		created, err := store.CreateOrder(ctx, o)
		is.NoErr(err)
		compareOrders(is, created, o)

		_, err = store.CreateOrder(ctx, newOrder("user-1"))
		is.True(errors.Is(err, book.ErrResponseOrderUserDuplicate))

		byUser, err := store.ListOrdersByUser(ctx, "user-1")
		is.NoErr(err)
		is.Equal(len(byUser), 1)
		compareOrders(is, byUser[0], o)
	})

	t.Run("status moves only from the expected value", func(t *testing.T) {
		is := is.New(t)

		o, err := store.CreateOrder(ctx, newOrder("user-2"))
		is.NoErr(err)

		updated, err := store.UpdateOrderStatus(ctx, o.ID, book.OrderStatusReceived, book.OrderStatusShipped, now())
		is.NoErr(err)
		is.Equal(updated.Status, book.OrderStatusShipped)

		_, err = store.UpdateOrderStatus(ctx, o.ID, book.OrderStatusReceived, book.OrderStatusCancelled, now())
		is.True(errors.Is(err, book.ErrResponseConcurrentUpdate))

		_, err = store.UpdateOrderStatus(ctx, uuid.NewString(), book.OrderStatusReceived, book.OrderStatusShipped, now())
		is.True(errors.Is(err, book.ErrResponseOrderNotFound))
	})

	t.Run("rolled back transaction leaves stock untouched", func(t *testing.T) {
		is := is.New(t)

		b, err := store.CreateBook(ctx, newBook("Rollback", "Author", 1))
		is.NoErr(err)

		txRepo, tx, err := store.BeginTx(ctx, nil)
		is.NoErr(err)
		_, err = txRepo.DecrementQuantity(ctx, b.Key, 1, now())
		is.NoErr(err)
		_, err = txRepo.CreateOrder(ctx, newOrder("user-1"))
		is.True(errors.Is(err, book.ErrResponseOrderUserDuplicate))
		is.NoErr(tx.Rollback())

		after, err := store.GetBookByKey(ctx, b.Key)
		is.NoErr(err)
		is.Equal(after.Quantity, 1)
	})
}

func now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

func newBook(title, author string, quantity int) book.Book {
	return book.Book{
		ID:        uuid.NewString(),
		Title:     title,
		Author:    author,
		Quantity:  quantity,
		Notes:     []book.Note{},
		CreatedAt: now(),
		UpdatedAt: now(),
	}
}

func newOrder(userID string) book.Order {
	return book.Order{
		ID:                 uuid.NewString(),
		UserID:             userID,
		FullName:           "Ada Lovelace",
		Location:           "London",
		Items:              []book.OrderItem{{ProductID: uuid.NewString()}},
		ConfirmationNumber: uuid.NewString(),
		Status:             book.OrderStatusReceived,
		CreatedAt:          now(),
		UpdatedAt:          now(),
	}
}

func compareBooks(is *is.I, a, b book.Book) {
	is.Helper()

	// Make sure we have the correct timestamps.
	is.True(a.CreatedAt.Equal(b.CreatedAt))
	is.True(a.UpdatedAt.Equal(b.UpdatedAt))

	// Overwrite to be able to compare them.
	b.CreatedAt = a.CreatedAt
	b.UpdatedAt = a.UpdatedAt

	is.Equal(a, b)
}

func compareOrders(is *is.I, a, b book.Order) {
	is.Helper()

	is.True(a.CreatedAt.Equal(b.CreatedAt))
	is.True(a.UpdatedAt.Equal(b.UpdatedAt))

	b.CreatedAt = a.CreatedAt
	b.UpdatedAt = a.UpdatedAt

	is.Equal(a, b)
}

func teardownDB(t *testing.T) {
	is := is.New(t)

	_, err := sqlDB.Exec(`TRUNCATE TABLE notes, books, orders RESTART IDENTITY CASCADE`)
	is.NoErr(err)
}
