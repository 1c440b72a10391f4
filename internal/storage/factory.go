package storage

import (
	"context"
	"net/http"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"avatarpipe/internal/adapters/storage/gdrive"
	"avatarpipe/internal/adapters/storage/localfs"
	"avatarpipe/internal/config"
	"avatarpipe/internal/googleauth"
	"avatarpipe/internal/pkg/errors"
)

const (
	ProviderLocalFS = "localfs"
	ProviderGDrive  = "gdrive"
)

func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	provider := cfg.Storage.Provider
	if provider == "" {
		provider = ProviderGDrive
	}

	switch provider {
	case ProviderLocalFS:
		return localfs.New(cfg.Paths.ArchiveDir), nil

	case ProviderGDrive:
		httpClient, err := googleauth.HTTPClient(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		return NewGDriveProvider(ctx, httpClient, cfg.Google.DriveFolderID)

	default:
		return nil, errors.Newf(errors.CodeConfiguration, "unknown storage provider: %s", provider).
			WithField("provider", provider)
	}
}

// NewGDriveProvider builds the Drive provider over an authorised client.
func NewGDriveProvider(ctx context.Context, httpClient *http.Client, folderID string, opts ...option.ClientOption) (Provider, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "storage.gdrive", "create drive service")
	}
	return gdrive.NewClient(srv, folderID), nil
}
