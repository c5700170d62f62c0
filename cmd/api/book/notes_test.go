package book_test

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/books-fulfillment/cmd/api/book"
	"github.com/books-fulfillment/cmd/api/inmemory"
	"github.com/matryer/is"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newMemoryService(t *testing.T, opts ...book.Option) (*book.Service, *inmemory.InMemoryStore) {
	t.Helper()
	store, err := inmemory.NewInMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := logtest.NewNullLogger()
	return book.NewService(store, logger, opts...), store
}

func seedBook(t *testing.T, svc *book.Service, title string, quantity int) book.Book {
	t.Helper()
	b, err := svc.CreateBook(ctx, book.CreateBookRequest{Title: title, Author: "Author", Quantity: quantity, Approved: true})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestAddNote(t *testing.T) {
	svc, _ := newMemoryService(t)
	b := seedBook(t, svc, "Noted", 1)

	t.Run("adds a note by either key", func(t *testing.T) {
		is := is.New(t)

		n, err := svc.AddNote(ctx, strconv.FormatInt(b.Key, 10), book.NoteRequest{Text: "great", Contributor: "ana"})
		is.NoErr(err)
		is.True(n.ID != "")

		_, err = svc.AddNote(ctx, b.ID, book.NoteRequest{Text: "fine", Contributor: "bo"})
		is.NoErr(err)

		got, err := svc.GetBook(ctx, b.ID)
		is.NoErr(err)
		is.Equal(len(got.Notes), 2)
		is.Equal(got.Notes[0].Contributor, "ana")
	})

	t.Run("one note per contributor", func(t *testing.T) {
		is := is.New(t)

		_, err := svc.AddNote(ctx, b.ID, book.NoteRequest{Text: "again", Contributor: " ana "})
		is.True(errors.Is(err, book.ErrResponseNoteDuplicateContributor))
	})

	t.Run("blank fields are rejected", func(t *testing.T) {
		is := is.New(t)

		_, err := svc.AddNote(ctx, b.ID, book.NoteRequest{Text: " ", Contributor: "cy"})
		is.True(errors.Is(err, book.ErrResponseNoteEntryBlankFields))
	})

	t.Run("unknown book", func(t *testing.T) {
		is := is.New(t)

		_, err := svc.AddNote(ctx, "missing", book.NoteRequest{Text: "x", Contributor: "cy"})
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})

	t.Run("concurrent notes from one contributor land once", func(t *testing.T) {
		is := is.New(t)
		other := seedBook(t, svc, "Contested", 1)

		var wg sync.WaitGroup
		var mu sync.Mutex
		added := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddNote(ctx, other.ID, book.NoteRequest{Text: "me too", Contributor: "dup"})
				if err == nil {
					mu.Lock()
					added++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		is.Equal(added, 1)
	})
}

func TestNotesByIndex(t *testing.T) {
	svc, _ := newMemoryService(t)
	b := seedBook(t, svc, "Indexed", 1)

	var ids []string
	for _, who := range []string{"a", "b", "c"} {
		n, err := svc.AddNote(ctx, b.ID, book.NoteRequest{Text: "from " + who, Contributor: who})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, n.ID)
	}

	t.Run("update at index keeps identity", func(t *testing.T) {
		is := is.New(t)

		updated, err := svc.UpdateNoteAt(ctx, b.ID, 1, book.NoteRequest{Text: "edited", Contributor: "b"})
		is.NoErr(err)
		is.Equal(updated.ID, ids[1])
		is.Equal(updated.Text, "edited")
	})

	t.Run("delete at index shifts later notes", func(t *testing.T) {
		is := is.New(t)

		is.NoErr(svc.DeleteNoteAt(ctx, b.ID, 0))

		got, err := svc.GetBook(ctx, b.ID)
		is.NoErr(err)
		is.Equal(len(got.Notes), 2)
		is.Equal(got.Notes[0].ID, ids[1])
		is.Equal(got.Notes[1].ID, ids[2])
	})

	t.Run("stale index is not found", func(t *testing.T) {
		is := is.New(t)

		err := svc.DeleteNoteAt(ctx, b.ID, 2)
		is.True(errors.Is(err, book.ErrResponseNoteNotFound))
		_, err = svc.UpdateNoteAt(ctx, b.ID, -1, book.NoteRequest{Text: "x", Contributor: "y"})
		is.True(errors.Is(err, book.ErrResponseNoteNotFound))
	})

	t.Run("by id", func(t *testing.T) {
		is := is.New(t)

		updated, err := svc.UpdateNote(ctx, b.ID, ids[2], book.NoteRequest{Text: "by id", Contributor: "c"})
		is.NoErr(err)
		is.Equal(updated.Text, "by id")

		is.NoErr(svc.DeleteNote(ctx, b.ID, ids[2]))
		err = svc.DeleteNote(ctx, b.ID, ids[2])
		is.True(errors.Is(err, book.ErrResponseNoteNotFound))
	})
}
