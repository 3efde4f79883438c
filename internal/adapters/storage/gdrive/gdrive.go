package gdrive

import (
	"context"
	"fmt"
	"io"

	"promoreel/internal/ports"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// Store implements ports.ArtifactStore backed by Google Drive. The artifact
// key is used as the Drive file name on upload; Open and Delete take the
// Drive fileId instead, since Drive has no server-side lookup by name that
// is safe against duplicates.
type Store struct {
	srv      *drive.Service
	folderID string
}

func NewStore(srv *drive.Service, folderID string) *Store {
	return &Store{srv: srv, folderID: folderID}
}

func (s *Store) Provider() string { return "gdrive" }

func (s *Store) Put(ctx context.Context, in ports.PutArtifactInput) error {
	if in.Key == "" {
		return fmt.Errorf("artifact key is required")
	}

	file := &drive.File{Name: in.Key}
	if s.folderID != "" {
		file.Parents = []string{s.folderID}
	}

	call := s.srv.Files.Create(file)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("gdrive upload failed: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, key string) (rc io.ReadCloser, contentType string, size int64, err error) {
	resp, err := s.srv.Files.Get(key).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, "", 0, err
	}

	contentType = resp.Header.Get("Content-Type")
	size = resp.ContentLength
	return resp.Body, contentType, size, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.srv.Files.Delete(key).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}
