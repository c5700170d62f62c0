package http_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/books-fulfillment/cmd/api/auth"
	"github.com/books-fulfillment/cmd/api/book"
	bookhttp "github.com/books-fulfillment/cmd/api/http"
	httpmock "github.com/books-fulfillment/cmd/api/http/mocks"
	"github.com/books-fulfillment/cmd/api/objectstore"
	"github.com/matryer/is"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"
)

func photoForm(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if field != "" {
		file, err := form.CreateFormFile(field, "me.png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := file.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, form.FormDataContentType()
}

func TestUploadPhoto(t *testing.T) {
	t.Run("stores the photo of the caller", func(t *testing.T) {
		is := is.New(t)
		server, mockAPI, _ := newTestServer(t)

		mockAPI.EXPECT().UploadPhoto(gomock.Any(), "u1@dev.local", gomock.Any()).DoAndReturn(func(ctx context.Context, owner string, up book.Upload) (string, error) {
			is.Equal(up.Name, "me.png")
			is.Equal(string(up.Data), "png bytes")
			return "http://objects.local/u1.png", nil
		})

		body, contentType := photoForm(t, "photo", []byte("png bytes"))
		request := newRequest(http.MethodPost, "/users/photo", userToken, body)
		request.Header.Set("Content-Type", contentType)
		response := serve(server, request)
		is.Equal(response.Code, http.StatusOK)

		var got bookhttp.PhotoResponse
		is.NoErr(json.Unmarshal(response.Body.Bytes(), &got))
		is.Equal(got.URL, "http://objects.local/u1.png")
	})

	t.Run("anonymous callers are rejected", func(t *testing.T) {
		is := is.New(t)
		server, _, _ := newTestServer(t)

		body, contentType := photoForm(t, "photo", []byte("png bytes"))
		request := newRequest(http.MethodPost, "/users/photo", "", body)
		request.Header.Set("Content-Type", contentType)
		response := serve(server, request)
		is.Equal(response.Code, http.StatusUnauthorized)
	})

	t.Run("form without a photo is a bad request", func(t *testing.T) {
		is := is.New(t)
		server, _, _ := newTestServer(t)

		body, contentType := photoForm(t, "", nil)
		request := newRequest(http.MethodPost, "/users/photo", userToken, body)
		request.Header.Set("Content-Type", contentType)
		response := serve(server, request)
		is.Equal(response.Code, http.StatusBadRequest)
		is.Equal(decodeError(t, response).Code, book.ErrResponsePhotoMissing.Code)
	})

	t.Run("body that is not a form is a bad request", func(t *testing.T) {
		is := is.New(t)
		server, _, _ := newTestServer(t)

		response := serve(server, newRequest(http.MethodPost, "/users/photo", userToken, bytes.NewBufferString("{}")))
		is.Equal(response.Code, http.StatusBadRequest)
	})
}

func newObjectServer(t *testing.T) (*http.Server, *objectstore.Bolt, *logtest.Hook) {
	t.Helper()
	objects, err := objectstore.OpenBolt(filepath.Join(t.TempDir(), "objects.db"), "http://objects.local")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { objects.Close() })

	logger, hook := logtest.NewNullLogger()
	mockAPI := httpmock.NewMockServiceAPI(gomock.NewController(t))
	bookHandler := bookhttp.NewBookHandler(mockAPI, auth.DevVerifier{}, logger, bookhttp.WithObjects(objects))
	return bookhttp.NewServer(bookhttp.ServerConfig{Port: 8080, RequestTimeout: time.Second}, bookHandler), objects, hook
}

func TestGetObject(t *testing.T) {
	t.Run("streams the stored object with its content type", func(t *testing.T) {
		is := is.New(t)
		server, objects, _ := newObjectServer(t)

		_, err := objects.Upload(context.Background(), "books/b1/cover.png", book.Upload{Name: "cover.png", ContentType: "image/png", Data: []byte("png bytes")})
		is.NoErr(err)

		response := serve(server, newRequest(http.MethodGet, "/objects/books/b1/cover.png", "", nil))
		is.Equal(response.Code, http.StatusOK)
		is.Equal(response.Header().Get("Content-Type"), "image/png")
		is.Equal(response.Body.String(), "png bytes")
	})

	t.Run("unknown key is a 404", func(t *testing.T) {
		is := is.New(t)
		server, _, hook := newObjectServer(t)

		response := serve(server, newRequest(http.MethodGet, "/objects/missing.png", "", nil))
		is.Equal(response.Code, http.StatusNotFound)
		is.Equal(decodeError(t, response).Code, book.ErrResponseObjectNotFound.Code)
		for _, entry := range hook.AllEntries() {
			is.True(entry.Message != "reading object failed")
		}
	})

	t.Run("route is absent without an object store", func(t *testing.T) {
		is := is.New(t)
		server, _, _ := newTestServer(t)

		response := serve(server, newRequest(http.MethodGet, "/objects/missing.png", "", nil))
		is.Equal(response.Code, http.StatusNotFound)
	})
}
