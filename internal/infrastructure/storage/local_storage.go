package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// LocalStorage keeps attachments on the local filesystem. Downloads are
// streamed back through the API.
type LocalStorage struct {
	basePath string
	log      zerolog.Logger
}

var _ attachment.Storage = (*LocalStorage)(nil)

// NewLocalStorage creates basePath if needed.
func NewLocalStorage(basePath string, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("ATTACHMENT_LOCAL_PATH is required for local storage")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	logger.Info().Str("path", basePath).Msg("local storage initialized")
	return &LocalStorage{basePath: basePath, log: logger}, nil
}

func (l *LocalStorage) pathFor(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

// Upload writes body to a temporary file and renames it into place.
func (l *LocalStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	fullPath := l.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return storageError(ctx, "failed to create directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return storageError(ctx, "failed to create file", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return storageError(ctx, "failed to write file", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return storageError(ctx, "failed to move file into place", err)
	}

	l.log.Debug().
		Str("key", key).
		Int64("bytes", written).
		Msg("file uploaded to local storage")
	return nil
}

// Download opens the stored file and sniffs its content type.
func (l *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	fullPath := l.pathFor(key)

	detected, err := mimetype.DetectFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
				"attachment not found", nil, "attachment-not-found")
		}
		return nil, "", storageError(ctx, "failed to read file", err)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, "", storageError(ctx, "failed to open file", err)
	}
	return file, detected.String(), nil
}

// Health checks that the storage directory is writable.
func (l *LocalStorage) Health(ctx context.Context) error {
	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}

func storageError(ctx context.Context, msg string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal,
		msg, err, "storage-local-failed")
}
