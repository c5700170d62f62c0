package book_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/books-fulfillment/cmd/api/book"
	bookmock "github.com/books-fulfillment/cmd/api/book/mocks"
	"github.com/books-fulfillment/cmd/api/guard"
	"github.com/matryer/is"
	gomock "go.uber.org/mock/gomock"
)

func orderFor(userID, productID string) book.ConfirmOrderRequest {
	return book.ConfirmOrderRequest{
		UserID:   userID,
		FullName: "Ada Lovelace",
		Location: "London",
		Items:    []book.OrderItemRequest{{ProductID: productID}},
	}
}

func TestConfirmOrder(t *testing.T) {
	t.Run("confirms and takes one unit off the shelf", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Orderable", 2)

		o, err := svc.ConfirmOrder(ctx, orderFor("u-1", strconv.FormatInt(b.Key, 10)))
		is.NoErr(err)
		is.Equal(o.Status, book.OrderStatusReceived)
		is.True(o.ConfirmationNumber != "")
		is.Equal(o.Items[0].ProductID, b.ID)

		after, err := svc.GetBook(ctx, b.ID)
		is.NoErr(err)
		is.Equal(after.Quantity, 1)
	})

	t.Run("exactly one item", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)

		req := orderFor("u-1", "x")
		req.Items = append(req.Items, book.OrderItemRequest{ProductID: "y"})
		_, err := svc.ConfirmOrder(ctx, req)
		is.True(errors.Is(err, book.ErrResponseOrderItemsCardinality))

		req.Items = nil
		_, err = svc.ConfirmOrder(ctx, req)
		is.True(errors.Is(err, book.ErrResponseOrderItemsCardinality))
	})

	t.Run("blank fields", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)

		req := orderFor("u-1", "x")
		req.Location = " "
		_, err := svc.ConfirmOrder(ctx, req)
		is.True(errors.Is(err, book.ErrResponseNewOrderEntryBlankFields))
	})

	t.Run("second order for the same user", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Plenty", 5)

		_, err := svc.ConfirmOrder(ctx, orderFor("u-1", b.ID))
		is.NoErr(err)
		_, err = svc.ConfirmOrder(ctx, orderFor("u-1", b.ID))
		is.True(errors.Is(err, book.ErrResponseOrderUserDuplicate))

		after, err := svc.GetBook(ctx, b.ID)
		is.NoErr(err)
		is.Equal(after.Quantity, 4)
	})

	t.Run("empty shelf", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Sold out", 0)

		_, err := svc.ConfirmOrder(ctx, orderFor("u-1", b.ID))
		is.True(errors.Is(err, book.ErrResponseInsufficientInventory))

		orders, err := svc.ListOrdersByUser(ctx, "u-1")
		is.NoErr(err)
		is.Equal(len(orders), 0)
	})

	t.Run("unknown book", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)

		_, err := svc.ConfirmOrder(ctx, orderFor("u-1", "nothing"))
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})

	t.Run("two users racing for the last copy", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Last copy", 1)

		results := make(chan error, 2)
		for _, user := range []string{"u-1", "u-2"} {
			go func(user string) {
				_, err := svc.ConfirmOrder(ctx, orderFor(user, b.ID))
				results <- err
			}(user)
		}

		var succeeded, short int
		for i := 0; i < 2; i++ {
			err := <-results
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, book.ErrResponseInsufficientInventory):
				short++
			}
		}
		is.Equal(succeeded, 1)
		is.Equal(short, 1)

		after, err := svc.GetBook(ctx, b.ID)
		is.NoErr(err)
		is.Equal(after.Quantity, 0)
	})

	t.Run("one user racing with itself", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Stocked", 10)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ConfirmOrder(ctx, orderFor("greedy", b.ID))
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		is.Equal(succeeded, 1)

		after, err := svc.GetBook(ctx, b.ID)
		is.NoErr(err)
		is.Equal(after.Quantity, 9)
	})
}

func TestConfirmOrderGuard(t *testing.T) {
	t.Run("held guard short circuits", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mockGuard := bookmock.NewMockSubmissionGuard(ctrl)
		svc, _ := newTestService(mockRepo, book.WithSubmissionGuard(mockGuard))

		mockGuard.EXPECT().Acquire(gomock.Any(), "u-1").Return(false, nil)

		_, err := svc.ConfirmOrder(ctx, orderFor("u-1", "b"))
		is.True(errors.Is(err, book.ErrResponseOrderSubmissionInProgress))
		is.True(book.AsResponse(err).Retryable())
	})

	t.Run("held guard is not mistaken for an existing order", func(t *testing.T) {
		is := is.New(t)
		held := guard.NewLocal(time.Minute)
		svc, _ := newMemoryService(t, book.WithSubmissionGuard(held))
		stocked := seedBook(t, svc, "Guarded", 2)

		ok, err := held.Acquire(ctx, "u-1")
		is.NoErr(err)
		is.True(ok)

		_, err = svc.ConfirmOrder(ctx, orderFor("u-1", stocked.ID))
		is.True(errors.Is(err, book.ErrResponseOrderSubmissionInProgress))
		is.True(!errors.Is(err, book.ErrResponseOrderUserDuplicate))

		orders, err := svc.ListOrdersByUser(ctx, "u-1")
		is.NoErr(err)
		is.Equal(len(orders), 0)

		after, err := svc.GetBook(ctx, stocked.ID)
		is.NoErr(err)
		is.Equal(after.Quantity, 2)

		is.NoErr(held.Release(ctx, "u-1"))
		_, err = svc.ConfirmOrder(ctx, orderFor("u-1", stocked.ID))
		is.NoErr(err)
	})

	t.Run("guard outage falls through to the store", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mockGuard := bookmock.NewMockSubmissionGuard(ctrl)
		svc, hook := newTestService(mockRepo, book.WithSubmissionGuard(mockGuard))

		mockGuard.EXPECT().Acquire(gomock.Any(), "u-1").Return(false, errors.New("redis: connection refused"))
		mockRepo.EXPECT().ListOrdersByUser(gomock.Any(), "u-1").Return([]book.Order{{ID: "earlier"}}, nil)

		_, err := svc.ConfirmOrder(ctx, orderFor("u-1", "b"))
		is.True(errors.Is(err, book.ErrResponseOrderUserDuplicate))
		is.Equal(hook.Entries[0].Message, "order submission guard unavailable")
	})

	t.Run("acquired guard is released", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mockGuard := bookmock.NewMockSubmissionGuard(ctrl)
		svc, _ := newTestService(mockRepo, book.WithSubmissionGuard(mockGuard))

		gomock.InOrder(
			mockGuard.EXPECT().Acquire(gomock.Any(), "u-1").Return(true, nil),
			mockRepo.EXPECT().ListOrdersByUser(gomock.Any(), "u-1").Return(nil, errors.New("boom")),
			mockGuard.EXPECT().Release(gomock.Any(), "u-1").Return(nil),
		)

		_, err := svc.ConfirmOrder(ctx, orderFor("u-1", "b"))
		is.True(errors.Is(err, book.ErrResponsePersistence))
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	svc, _ := newMemoryService(t)
	b := seedBook(t, svc, "Shippable", 10)

	newOrder := func(t *testing.T, user string) book.Order {
		t.Helper()
		o, err := svc.ConfirmOrder(ctx, orderFor(user, b.ID))
		if err != nil {
			t.Fatal(err)
		}
		return o
	}

	t.Run("walks the happy path", func(t *testing.T) {
		is := is.New(t)
		o := newOrder(t, "walker")

		for _, next := range []string{"Processing", "shipped", "DELIVERED"} {
			updated, err := svc.UpdateOrderStatus(ctx, o.ID, next)
			is.NoErr(err)
			is.Equal(string(updated.Status), map[string]string{
				"Processing": "Processing",
				"shipped":    "Shipped",
				"DELIVERED":  "Delivered",
			}[next])
		}
	})

	t.Run("received can ship directly", func(t *testing.T) {
		is := is.New(t)
		o := newOrder(t, "direct")

		updated, err := svc.UpdateOrderStatus(ctx, o.ID, "Shipped")
		is.NoErr(err)
		is.Equal(updated.Status, book.OrderStatusShipped)
	})

	t.Run("same status is accepted", func(t *testing.T) {
		is := is.New(t)
		o := newOrder(t, "repeat")

		updated, err := svc.UpdateOrderStatus(ctx, o.ID, "Received")
		is.NoErr(err)
		is.Equal(updated.Status, book.OrderStatusReceived)
	})

	t.Run("terminal states stay put", func(t *testing.T) {
		is := is.New(t)
		o := newOrder(t, "cancelled")

		_, err := svc.UpdateOrderStatus(ctx, o.ID, "Cancelled")
		is.NoErr(err)
		_, err = svc.UpdateOrderStatus(ctx, o.ID, "Processing")
		is.True(errors.Is(err, book.ErrResponseOrderStatusTransition))
	})

	t.Run("unknown status", func(t *testing.T) {
		is := is.New(t)
		o := newOrder(t, "unknown-status")

		_, err := svc.UpdateOrderStatus(ctx, o.ID, "Lost")
		is.True(errors.Is(err, book.ErrResponseOrderStatusUnknown))
	})

	t.Run("unknown order", func(t *testing.T) {
		is := is.New(t)

		_, err := svc.UpdateOrderStatus(ctx, "missing", "Shipped")
		is.True(errors.Is(err, book.ErrResponseOrderNotFound))
	})

	t.Run("unknown order wins over unknown status", func(t *testing.T) {
		is := is.New(t)

		_, err := svc.UpdateOrderStatus(ctx, "missing", "bogus")
		is.True(errors.Is(err, book.ErrResponseOrderNotFound))
	})
}

func TestListOrders(t *testing.T) {
	t.Run("no orders is not found", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)

		orders, err := svc.ListOrders(ctx)
		is.True(errors.Is(err, book.ErrResponseOrderNotFound))
		is.Equal(len(orders), 0)
	})

	t.Run("lists every order", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Listed", 5)

		for _, user := range []string{"u-1", "u-2"} {
			_, err := svc.ConfirmOrder(ctx, orderFor(user, b.ID))
			is.NoErr(err)
		}

		orders, err := svc.ListOrders(ctx)
		is.NoErr(err)
		is.Equal(len(orders), 2)
	})
}

func TestUpdateOrderStatusConflict(t *testing.T) {
	t.Run("retries after a concurrent update", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		svc, _ := newTestService(mockRepo, book.WithRetryOptions(book.WithBaseDelay(time.Millisecond)))

		gomock.InOrder(
			mockRepo.EXPECT().GetOrder(gomock.Any(), "o").Return(book.Order{ID: "o", Status: book.OrderStatusReceived}, nil),
			mockRepo.EXPECT().UpdateOrderStatus(gomock.Any(), "o", book.OrderStatusReceived, book.OrderStatusShipped, fixedNow).
				Return(book.Order{}, fmt.Errorf("updating: %w", book.ErrResponseConcurrentUpdate)),
			mockRepo.EXPECT().GetOrder(gomock.Any(), "o").Return(book.Order{ID: "o", Status: book.OrderStatusProcessing}, nil),
			mockRepo.EXPECT().UpdateOrderStatus(gomock.Any(), "o", book.OrderStatusProcessing, book.OrderStatusShipped, fixedNow).
				Return(book.Order{ID: "o", Status: book.OrderStatusShipped}, nil),
		)

		updated, err := svc.UpdateOrderStatus(ctx, "o", "Shipped")
		is.NoErr(err)
		is.Equal(updated.Status, book.OrderStatusShipped)
	})

	t.Run("re-validates against the status that won", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		svc, _ := newTestService(mockRepo, book.WithRetryOptions(book.WithBaseDelay(time.Millisecond)))

		gomock.InOrder(
			mockRepo.EXPECT().GetOrder(gomock.Any(), "o").Return(book.Order{ID: "o", Status: book.OrderStatusReceived}, nil),
			mockRepo.EXPECT().UpdateOrderStatus(gomock.Any(), "o", book.OrderStatusReceived, book.OrderStatusProcessing, fixedNow).
				Return(book.Order{}, book.ErrResponseConcurrentUpdate),
			mockRepo.EXPECT().GetOrder(gomock.Any(), "o").Return(book.Order{ID: "o", Status: book.OrderStatusCancelled}, nil),
		)

		_, err := svc.UpdateOrderStatus(ctx, "o", "Processing")
		is.True(errors.Is(err, book.ErrResponseOrderStatusTransition))
	})
}

func TestListOrdersByUser(t *testing.T) {
	t.Run("items are enriched from the current catalog", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Enriched", 3)

		_, err := svc.ConfirmOrder(ctx, orderFor("reader", b.ID))
		is.NoErr(err)

		renamed := "Renamed"
		_, err = svc.UpdateBook(ctx, book.UpdateBookRequest{Reference: b.ID, Title: &renamed})
		is.NoErr(err)

		orders, err := svc.ListOrdersByUser(ctx, "reader")
		is.NoErr(err)
		is.Equal(len(orders), 1)
		is.Equal(orders[0].Items[0].Title, "Renamed")
		is.Equal(orders[0].Items[0].Author, "Author")
	})

	t.Run("deleted book leaves the item bare", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)
		b := seedBook(t, svc, "Ephemeral", 3)

		_, err := svc.ConfirmOrder(ctx, orderFor("reader", b.ID))
		is.NoErr(err)
		deleted, err := svc.DeleteBook(ctx, b.ID)
		is.NoErr(err)
		is.True(deleted)

		orders, err := svc.ListOrdersByUser(ctx, "reader")
		is.NoErr(err)
		is.Equal(orders[0].Items[0].ProductID, b.ID)
		is.Equal(orders[0].Items[0].Title, "")
	})

	t.Run("user without orders", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newMemoryService(t)

		orders, err := svc.ListOrdersByUser(ctx, "nobody")
		is.NoErr(err)
		is.Equal(len(orders), 0)
	})
}

func TestRetryOnConflict(t *testing.T) {
	t.Run("gives up after max attempts", func(t *testing.T) {
		is := is.New(t)

		calls := 0
		err := book.RetryOnConflict(ctx, func(context.Context) error {
			calls++
			return book.ErrResponseConcurrentUpdate
		}, book.WithMaxAttempts(3), book.WithBaseDelay(0))
		is.True(errors.Is(err, book.ErrResponseConcurrentUpdate))
		is.Equal(calls, 3)
	})

	t.Run("other errors are returned at once", func(t *testing.T) {
		is := is.New(t)

		calls := 0
		err := book.RetryOnConflict(ctx, func(context.Context) error {
			calls++
			return book.ErrResponseOrderNotFound
		})
		is.True(errors.Is(err, book.ErrResponseOrderNotFound))
		is.Equal(calls, 1)
	})

	t.Run("invalid options", func(t *testing.T) {
		is := is.New(t)
		noop := func(context.Context) error { return nil }

		is.Equal(book.RetryOnConflict(ctx, noop, book.WithMaxAttempts(0)), book.ErrInvalidMaxAttempts)
		is.Equal(book.RetryOnConflict(ctx, noop, book.WithBaseDelay(-1)), book.ErrNegativeBaseDelay)
		is.Equal(book.RetryOnConflict(ctx, noop, book.WithJitterFactor(1.5)), book.ErrInvalidJitterFactor)
	})

	t.Run("cancelled context stops the wait", func(t *testing.T) {
		is := is.New(t)
		cancelled, cancel := context.WithCancel(ctx)

		err := book.RetryOnConflict(cancelled, func(context.Context) error {
			cancel()
			return book.ErrResponseConcurrentUpdate
		}, book.WithBaseDelay(time.Hour))
		is.True(errors.Is(err, context.Canceled))
	})
}
