// Package storage builds the configured artifact mirror.
package storage

import (
	"context"
	"fmt"

	"promoreel/internal/adapters/storage/gdrive"
	"promoreel/internal/adapters/storage/localfs"
	"promoreel/internal/config"
	"promoreel/internal/ports"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewMirror returns the configured artifact mirror, or (nil, nil) when
// mirroring is disabled.
func NewMirror(cfg config.StorageConfig) (ports.ArtifactStore, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil

	case "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("STORAGE_LOCAL_ROOT is required for the localfs mirror")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "gdrive":
		return newGDriveMirror(cfg.GDrive)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newGDriveMirror(cfg config.GDriveConfig) (ports.ArtifactStore, error) {
	ctx := context.Background()

	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gdrive mirror requires GDRIVE_CLIENT_ID, GDRIVE_CLIENT_SECRET and GDRIVE_REFRESH_TOKEN")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewStore(srv, cfg.FolderID), nil
}
