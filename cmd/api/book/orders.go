package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type OrderStatus string

const (
	OrderStatusReceived   OrderStatus = "Received"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusReceived:   {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

/* Matches a status name case-insensitively and returns its canonical spelling. */
func ParseOrderStatus(raw string) (OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	for _, st := range orderStatuses {
		if strings.EqualFold(raw, string(st)) {
			return st, nil
		}
	}
	return "", ErrResponseOrderStatusUnknown
}

// CanTransitionTo reports whether next may follow s. Re-applying the current status is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID                 string
	UserID             string
	FullName           string
	Location           string
	Items              []OrderItem
	ConfirmationNumber string
	Status             OrderStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderItem names the purchased book. Title, Author and ThumbnailURL are filled at read
// time from the current catalog entry and are never stored with the order.
type OrderItem struct {
	ProductID    string
	Title        string
	Author       string
	ThumbnailURL string
}

type ConfirmOrderRequest struct {
	UserID   string
	FullName string
	Location string
	Items    []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID string
}

/* Verifies if all ConfirmOrder entry fields are filled. */
func FilledOrderFields(req ConfirmOrderRequest) error {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Location) == "" {
		return ErrResponseNewOrderEntryBlankFields
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return ErrResponseNewOrderEntryBlankFields
		}
	}
	return nil
}

/*
ConfirmOrder takes one book off the shelf and records the order in the same transaction.
The stock decrement is conditional and the orders table holds at most one row per user,
so a shortfall or a second order for the same user rolls the whole thing back.
*/
func (s *Service) ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (Order, error) {
	if len(req.Items) != 1 {
		return Order{}, ErrResponseOrderItemsCardinality
	}
	if err := FilledOrderFields(req); err != nil {
		return Order{}, err
	}
	userID := strings.TrimSpace(req.UserID)
	log := s.log.WithField("user_id", userID)

	acquired, err := s.guard.Acquire(ctx, userID)
	if err != nil {
		// orders_user_id_key still enforces one order per user
		log.WithError(err).Warn("order submission guard unavailable")
	} else if !acquired {
		return Order{}, fmt.Errorf("order already being confirmed: %w", ErrResponseOrderSubmissionInProgress)
	} else {
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), userID); err != nil {
				log.WithError(err).Warn("releasing order submission guard")
			}
		}()
	}

	existingCtx, cancel := s.storageCtx(ctx)
	existing, err := s.repo.ListOrdersByUser(existingCtx, userID)
	cancel()
	if err != nil {
		return Order{}, s.fail("list orders by user", err, logrus.Fields{"user_id": userID})
	}
	if len(existing) > 0 {
		return Order{}, ErrResponseOrderUserDuplicate
	}

	target, err := s.resolve(ctx, req.Items[0].ProductID)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	newOrder := Order{
		ID:                 uuid.NewString(),
		UserID:             userID,
		FullName:           strings.TrimSpace(req.FullName),
		Location:           strings.TrimSpace(req.Location),
		Items:              []OrderItem{{ProductID: target.ID}},
		ConfirmationNumber: uuid.NewString(),
		Status:             OrderStatusReceived,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	txCtx, cancel := s.storageCtx(ctx)
	defer cancel()

	var created Order
	err = s.inTx(txCtx, func(repo Repository) error {
		if _, err := repo.DecrementQuantity(txCtx, target.Key, 1, now); err != nil {
			return err
		}
		created, err = repo.CreateOrder(txCtx, newOrder)
		return err
	})
	if err != nil {
		return Order{}, s.fail("confirm order", err, logrus.Fields{"user_id": userID, "book_id": target.ID})
	}

	log.WithFields(logrus.Fields{"order_id": created.ID, "book_id": target.ID}).Info("order confirmed")
	return created, nil
}

/*
UpdateOrderStatus moves an order to status if the transition table allows it. A missing order
is reported before a malformed status. The write is
a compare-and-set on the status that was read, retried when another update got there first.
*/
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status string) (Order, error) {
	var (
		updated Order
		next    OrderStatus
	)
	err := RetryOnConflict(ctx, func(ctx context.Context) error {
		ctx, cancel := s.storageCtx(ctx)
		defer cancel()

		current, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if next, err = ParseOrderStatus(status); err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(next) {
			return fmt.Errorf("order %s from %s to %s: %w", id, current.Status, next, ErrResponseOrderStatusTransition)
		}

		updated, err = s.repo.UpdateOrderStatus(ctx, id, current.Status, next, s.now())
		return err
	}, s.retryOptions...)
	if err != nil {
		return Order{}, s.fail("update order status", err, logrus.Fields{"order_id": id, "status": status})
	}
	return updated, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, s.fail("list orders", err, nil)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("listing orders: %w", ErrResponseOrderNotFound)
	}
	return orders, nil
}

/*
ListOrdersByUser returns the user's orders with every line item enriched from the current
catalog entry. A book that no longer resolves leaves the item's catalog fields empty.
*/
func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	orders, err := s.repo.ListOrdersByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, s.fail("list orders by user", err, logrus.Fields{"user_id": userID})
	}

	for i := range orders {
		for j, item := range orders[i].Items {
			b, err := Resolve(ctx, s.repo, item.ProductID)
			if err != nil {
				if errors.Is(err, ErrResponseBookNotFound) {
					continue
				}
				return nil, s.fail("enrich order item", err, logrus.Fields{"order_id": orders[i].ID, "product_id": item.ProductID})
			}
			orders[i].Items[j].Title = b.Title
			orders[i].Items[j].Author = b.Author
			orders[i].Items[j].ThumbnailURL = b.ThumbnailURL
		}
	}
	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, s.fail("get order", err, logrus.Fields{"order_id": id})
	}
	return o, nil
}
