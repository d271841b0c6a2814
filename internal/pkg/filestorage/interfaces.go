package filestorage

import (
	"mime/multipart"
)

// Bucket names used by the application. Covers and memory images live in
// separate top-level directories so they can be served and cleaned
// independently.
const (
	BucketGroupCovers  = "group-covers"
	BucketMemoryImages = "memory-images"
)

// FileStorage defines the interface for object storage operations.
// Stored objects are write-once: there is no update, only save and delete.
type FileStorage interface {
	// Save stores a file under bucket/subPath and returns its public URL.
	Save(bucket, subPath string, fileHeader *multipart.FileHeader) (string, error)

	// Delete removes a previously stored file given its public URL.
	// Deleting a missing file is not an error.
	Delete(fileURL string) error
}
