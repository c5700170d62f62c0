package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/books-fulfillment/cmd/api/auth"
	"github.com/books-fulfillment/cmd/api/book"
)

type OrderEntry struct {
	UserID   string           `json:"user_id"`
	FullName string           `json:"full_name"`
	Location string           `json:"location"`
	Items    []OrderItemEntry `json:"items"`
}

type OrderItemEntry struct {
	ProductID string `json:"product_id"`
}

type OrderStatusEntry struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"user_id"`
	FullName           string              `json:"full_name"`
	Location           string              `json:"location"`
	Items              []OrderItemResponse `json:"items"`
	ConfirmationNumber string              `json:"confirmation_number"`
	Status             string              `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID    string `json:"product_id"`
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

/*Copy the fields of an order object to an http layer struct with json tags*/
func orderToResponse(o book.Order) OrderResponse {
	items := []OrderItemResponse{}
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID:    item.ProductID,
			Title:        item.Title,
			Author:       item.Author,
			ThumbnailURL: item.ThumbnailURL,
		})
	}

	return OrderResponse{
		ID:                 o.ID,
		UserID:             o.UserID,
		FullName:           o.FullName,
		Location:           o.Location,
		Items:              items,
		ConfirmationNumber: o.ConfirmationNumber,
		Status:             string(o.Status),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func ordersToResponse(orders []book.Order) []OrderResponse {
	results := []OrderResponse{}
	for _, o := range orders {
		results = append(results, orderToResponse(o))
	}
	return results
}

/* Converts from OrderEntry type to ConfirmOrderRequest type, with no json tags. */
func orderToConfirmReq(o OrderEntry) book.ConfirmOrderRequest {
	items := make([]book.OrderItemRequest, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, book.OrderItemRequest{ProductID: item.ProductID})
	}
	return book.ConfirmOrderRequest{
		UserID:   o.UserID,
		FullName: o.FullName,
		Location: o.Location,
		Items:    items,
	}
}

/* Reports whether the caller may act for userID: the user itself or an administrator. */
func actsFor(r *http.Request, userID string) bool {
	id, _ := auth.FromContext(r.Context())
	return id.Admin || id.Subject == strings.TrimSpace(userID)
}

/* Validates the entry, then confirms the order for the caller. */
func (h *BookHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	var entry OrderEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		invalidJSON(w, err)
		return
	}

	if strings.TrimSpace(entry.UserID) == "" {
		id, _ := auth.FromContext(r.Context())
		entry.UserID = id.Subject
	}
	if !actsFor(r, entry.UserID) {
		responseError(w, book.ErrResponseForbidden)
		return
	}

	o, err := h.bookService.ConfirmOrder(r.Context(), orderToConfirmReq(entry))
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusCreated, orderToResponse(o))
}

func (h *BookHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.bookService.ListOrders(r.Context())
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, ordersToResponse(orders))
}

func (h *BookHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.bookService.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		responseError(w, err)
		return
	}
	if !actsFor(r, o.UserID) {
		responseError(w, book.ErrResponseForbidden)
		return
	}
	responseJSON(w, http.StatusOK, orderToResponse(o))
}

func (h *BookHandler) listOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if !actsFor(r, userID) {
		responseError(w, book.ErrResponseForbidden)
		return
	}

	orders, err := h.bookService.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, ordersToResponse(orders))
}

func (h *BookHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var entry OrderStatusEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		invalidJSON(w, err)
		return
	}

	o, err := h.bookService.UpdateOrderStatus(r.Context(), r.PathValue("id"), entry.Status)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, http.StatusOK, orderToResponse(o))
}
