package http

import (
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/books-fulfillment/cmd/api/book ServiceAPI

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ServerConfig struct {
	Port           int
	RequestTimeout time.Duration
}

func NewServer(config ServerConfig, h *BookHandler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", ping)

	mux.HandleFunc("GET /books", h.public(h.listBooks))
	mux.HandleFunc("POST /books", h.authenticated(h.createBook))
	mux.HandleFunc("GET /books/pending", h.admin(h.listPendingBooks))
	mux.HandleFunc("GET /books/{ref}", h.public(h.getBook))
	mux.HandleFunc("PUT /books/{ref}", h.admin(h.updateBook))
	mux.HandleFunc("DELETE /books/{ref}", h.admin(h.deleteBook))
	mux.HandleFunc("PUT /books/{ref}/approval", h.admin(h.approveBook))
	mux.HandleFunc("POST /books/{ref}/inventory", h.admin(h.adjustInventory))

	mux.HandleFunc("POST /books/{ref}/notes", h.authenticated(h.addNote))
	mux.HandleFunc("PUT /books/{ref}/notes/{noteID}", h.authenticated(h.updateNote))
	mux.HandleFunc("DELETE /books/{ref}/notes/{noteID}", h.authenticated(h.deleteNote))
	mux.HandleFunc("PUT /books/{ref}/notes/at/{index}", h.authenticated(h.updateNoteAt))
	mux.HandleFunc("DELETE /books/{ref}/notes/at/{index}", h.authenticated(h.deleteNoteAt))

	mux.HandleFunc("POST /orders", h.authenticated(h.confirmOrder))
	mux.HandleFunc("GET /orders", h.admin(h.listOrders))
	mux.HandleFunc("GET /orders/{id}", h.authenticated(h.getOrder))
	mux.HandleFunc("GET /orders/user/{userID}", h.authenticated(h.listOrdersByUser))
	mux.HandleFunc("PUT /orders/{id}/status", h.admin(h.updateOrderStatus))

	mux.HandleFunc("POST /users/photo", h.authenticated(h.uploadPhoto))
	if h.objects != nil {
		mux.HandleFunc("GET /objects/{key...}", h.getObject)
	}

	server := http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           h.logRequests(withTimeout(config.RequestTimeout, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &server
}

/* Tests the http server connection.  */
func ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
