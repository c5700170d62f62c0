package book_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/books-fulfillment/cmd/api/book"
	bookmock "github.com/books-fulfillment/cmd/api/book/mocks"
	"github.com/books-fulfillment/cmd/api/objectstore"
	"github.com/matryer/is"
	gomock "go.uber.org/mock/gomock"
)

func TestUploadPhoto(t *testing.T) {
	photo := book.Upload{Name: "me.png", ContentType: "image/png", Data: []byte("png bytes")}

	t.Run("uploads a new photo under the user's key", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockUploader := bookmock.NewMockUploader(ctrl)
		svc, _ := newTestService(bookmock.NewMockRepository(ctrl), book.WithUploader(mockUploader))

		gomock.InOrder(
			mockUploader.EXPECT().Exists(gomock.Any(), "jane.png").Return(false, nil),
			mockUploader.EXPECT().Upload(gomock.Any(), "jane.png", photo).Return("http://objects/jane.png", nil),
		)

		url, err := svc.UploadPhoto(ctx, "jane@example.com", photo)
		is.NoErr(err)
		is.Equal(url, "http://objects/jane.png")
	})

	t.Run("stored photo is kept", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockUploader := bookmock.NewMockUploader(ctrl)
		svc, _ := newTestService(bookmock.NewMockRepository(ctrl), book.WithUploader(mockUploader))

		mockUploader.EXPECT().Exists(gomock.Any(), "jane.png").Return(true, nil)
		mockUploader.EXPECT().URL("jane.png").Return("http://objects/jane.png")

		url, err := svc.UploadPhoto(ctx, "jane@example.com", photo)
		is.NoErr(err)
		is.Equal(url, "http://objects/jane.png")
	})

	t.Run("photo key matches the contributor image of new books", func(t *testing.T) {
		is := is.New(t)

		is.Equal(book.PhotoObjectKey("jane@example.com"), "jane.png")
		is.Equal(book.PhotoObjectKey(" u1 "), "u1.png")
	})

	t.Run("expected photo missing error", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		svc, _ := newTestService(bookmock.NewMockRepository(ctrl), book.WithUploader(bookmock.NewMockUploader(ctrl)))

		_, err := svc.UploadPhoto(ctx, "jane@example.com", book.Upload{Name: "empty.png"})
		is.True(errors.Is(err, book.ErrResponsePhotoMissing))
	})

	t.Run("storage failure is logged and hidden", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockUploader := bookmock.NewMockUploader(ctrl)
		svc, hook := newTestService(bookmock.NewMockRepository(ctrl), book.WithUploader(mockUploader))

		mockUploader.EXPECT().Exists(gomock.Any(), "jane.png").Return(false, errors.New("bolt: database not open"))

		_, err := svc.UploadPhoto(ctx, "jane@example.com", photo)
		is.True(errors.Is(err, book.ErrResponsePersistence))
		is.Equal(hook.LastEntry().Data["op"], "check photo")
	})

	t.Run("no uploader configured", func(t *testing.T) {
		is := is.New(t)
		svc, _ := newTestService(bookmock.NewMockRepository(gomock.NewController(t)))

		_, err := svc.UploadPhoto(ctx, "jane@example.com", photo)
		is.True(errors.Is(err, book.ErrResponsePersistence))
	})

	t.Run("second upload keeps the first photo in the object store", func(t *testing.T) {
		is := is.New(t)
		objects, err := objectstore.OpenBolt(filepath.Join(t.TempDir(), "objects.db"), "http://localhost:8080/objects")
		is.NoErr(err)
		defer objects.Close()
		svc, _ := newMemoryService(t, book.WithUploader(objects))

		first, err := svc.UploadPhoto(ctx, "jane@example.com", photo)
		is.NoErr(err)
		is.Equal(first, "http://localhost:8080/objects/jane.png")

		second, err := svc.UploadPhoto(ctx, "jane@example.com", book.Upload{Data: []byte("other bytes")})
		is.NoErr(err)
		is.Equal(second, first)

		stored, err := objects.Get(ctx, "jane.png")
		is.NoErr(err)
		is.Equal(string(stored.Data), "png bytes")
	})
}
