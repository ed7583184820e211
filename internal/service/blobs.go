package service

import (
	"io"

	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

// BlobStore — операции с содержимым файлов, нужные сервисам.
// Реализуется *blobstore.Store.
type BlobStore interface {
	Store(r io.Reader, suggestedName string) (*blobstore.StoreResult, error)
	Open(storedName string) (io.ReadSeekCloser, *blobstore.BlobInfo, error)
	Delete(storedName string) error
	List() ([]blobstore.BlobInfo, error)
}
