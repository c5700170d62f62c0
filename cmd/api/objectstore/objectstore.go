package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/books-fulfillment/cmd/api/book"
)

var (
	objectsBucket      = []byte("objects")
	contentTypesBucket = []byte("content_types")
)

/*
Bolt keeps uploaded thumbnails and photos in an embedded bolt file and
hands out public URLs rooted at baseURL.
*/
type Bolt struct {
	db      *bolt.DB
	baseURL string
}

func OpenBolt(path, baseURL string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening object store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(objectsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(contentTypesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating object store buckets: %w", err)
	}

	return &Bolt{db: db, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

/* Stores the content under objectKey, replacing any previous object, and returns its URL. */
func (s *Bolt) Upload(ctx context.Context, objectKey string, up book.Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if objectKey == "" {
		return "", errors.New("empty object key")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(objectsBucket).Put([]byte(objectKey), up.Data); err != nil {
			return err
		}
		return tx.Bucket(contentTypesBucket).Put([]byte(objectKey), []byte(up.ContentType))
	})
	if err != nil {
		return "", fmt.Errorf("storing object %s: %w", objectKey, err)
	}
	return s.URL(objectKey), nil
}

func (s *Bolt) Exists(ctx context.Context, objectKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(objectsBucket).Get([]byte(objectKey)) != nil
		return nil
	})
	return found, err
}

func (s *Bolt) URL(objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

/* Returns a copy of the stored object. */
func (s *Bolt) Get(ctx context.Context, objectKey string) (book.Upload, error) {
	if err := ctx.Err(); err != nil {
		return book.Upload{}, err
	}

	var up book.Upload
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(objectsBucket).Get([]byte(objectKey))
		if data == nil {
			return fmt.Errorf("reading object %s: %w", objectKey, book.ErrResponseObjectNotFound)
		}
		// bolt values are only valid inside the transaction
		up.Data = append([]byte(nil), data...)
		up.ContentType = string(tx.Bucket(contentTypesBucket).Get([]byte(objectKey)))
		return nil
	})
	if err != nil {
		return book.Upload{}, err
	}

	up.Name = objectKey[strings.LastIndex(objectKey, "/")+1:]
	return up, nil
}
