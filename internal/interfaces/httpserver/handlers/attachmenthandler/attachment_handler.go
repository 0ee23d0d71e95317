package attachmenthandler

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/infrastructure/metrics"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses/messageres"
)

type AttachmentHandler struct {
	attachments attachment.Service
	log         zerolog.Logger
}

func NewAttachmentHandler(attachments attachment.Service, log zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		log:         log.With().Str("component", "attachment-handler").Logger(),
	}
}

func (h *AttachmentHandler) Upload(ctx context.Context, actor domain.Principal, filename string, body io.Reader) (*messageres.Attachment, error) {
	descriptor, err := h.attachments.Upload(ctx, actor, attachment.UploadInput{Filename: filename, Body: body})
	if err != nil {
		return nil, err
	}
	metrics.RecordAttachment(descriptor.Size)
	resp := messageres.NewAttachment(*descriptor)
	return &resp, nil
}

func (h *AttachmentHandler) Open(ctx context.Context, actor domain.Principal, key string) (*attachment.Download, error) {
	return h.attachments.Open(ctx, actor, key)
}

func (h *AttachmentHandler) Health(ctx context.Context) error {
	return h.attachments.Health(ctx)
}
