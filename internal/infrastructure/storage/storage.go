// Package storage provides the attachment storage backends.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/domain/attachment"
)

// New selects the backend named by ATTACHMENT_STORAGE.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (attachment.Storage, error) {
	switch strings.ToLower(cfg.AttachmentStorage) {
	case "s3":
		return NewS3Storage(ctx, cfg, log)
	case "local", "":
		return NewLocalStorage(cfg.AttachmentLocalPath, log)
	default:
		return nil, fmt.Errorf("unsupported attachment storage %q", cfg.AttachmentStorage)
	}
}
