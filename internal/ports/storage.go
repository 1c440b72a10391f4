package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// localfs: the archived path relative to the root.
	// gdrive: the Drive file ID.
	ObjectKey string
	Size      int64
}

// StorageProvider archives finished videos (localfs, gdrive).
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)

	// Share makes the object readable by anyone holding the link and returns
	// that link.
	Share(ctx context.Context, objectKey string) (string, error)

	// Check verifies the provider is reachable.
	Check(ctx context.Context) error
}
