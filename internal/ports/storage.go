package ports

import (
	"context"
	"io"
)

type PutArtifactInput struct {
	Key         string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// ArtifactStore mirrors completed render artifacts to a storage backend
// (localfs, gdrive). The local output file stays canonical; the mirror is a
// copy kept for distribution or backup, and mirror failures never change a
// job's outcome.
type ArtifactStore interface {
	Provider() string

	Put(ctx context.Context, in PutArtifactInput) error
	Open(ctx context.Context, key string) (rc io.ReadCloser, contentType string, size int64, err error)
	Delete(ctx context.Context, key string) error
}
