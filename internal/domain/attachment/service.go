package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/utils/idgen"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// KeyPrefix is the first segment of every attachment storage key.
const KeyPrefix = "attachments/"

// Service turns raw uploads into descriptors and serves them back.
type Service interface {
	Upload(ctx context.Context, actor domain.Principal, input UploadInput) (*Descriptor, error)
	Open(ctx context.Context, actor domain.Principal, key string) (*Download, error)
	Health(ctx context.Context) error
}

// Options configures upload limits and how descriptor URLs are built.
type Options struct {
	MaxBytes int64
	// PublicBaseURL, when set, is joined with the key to form the descriptor URL.
	PublicBaseURL string
	// ProxyPath is the API route serving downloads when there is no public base URL.
	ProxyPath  string
	PresignTTL time.Duration
	Now        func() time.Time
}

type service struct {
	storage Storage
	opts    Options
	log     zerolog.Logger
}

// NewService wires the attachment service to a storage backend.
func NewService(storage Storage, opts Options, log zerolog.Logger) Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 25 << 20
	}
	if opts.ProxyPath == "" {
		opts.ProxyPath = "/v1/attachments"
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &service{
		storage: storage,
		opts:    opts,
		log:     log.With().Str("component", "attachment-service").Logger(),
	}
}

func (s *service) Upload(ctx context.Context, actor domain.Principal, input UploadInput) (*Descriptor, error) {
	if actor.ID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "attachment-unauthenticated")
	}
	if input.Body == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file is required", nil, "attachment-missing-file")
	}

	data, err := io.ReadAll(io.LimitReader(input.Body, s.opts.MaxBytes+1))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"failed to read upload", err, "attachment-read-failed")
	}
	if len(data) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file is empty", nil, "attachment-empty")
	}
	if int64(len(data)) > s.opts.MaxBytes {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTooLarge,
			fmt.Sprintf("file exceeds max size of %d bytes", s.opts.MaxBytes), nil, "attachment-too-large",
			map[string]any{"max_bytes": s.opts.MaxBytes})
	}

	detected := mimetype.Detect(data)
	now := s.opts.Now().UTC()
	key := fmt.Sprintf("%s%04d/%02d/%s%s", KeyPrefix, now.Year(), int(now.Month()), idgen.NewAt(idgen.PrefixAttachment, now), detected.Extension())

	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), detected.String()); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "store attachment")
	}

	descriptor := &Descriptor{
		URL:  s.urlFor(key),
		Name: displayName(input.Filename, detected.Extension()),
		Size: int64(len(data)),
		Type: detected.String(),
	}

	s.log.Info().
		Str("key", key).
		Str("uploaded_by", actor.ID).
		Int64("bytes", descriptor.Size).
		Str("type", descriptor.Type).
		Msg("attachment stored")
	return descriptor, nil
}

func (s *service) Open(ctx context.Context, actor domain.Principal, key string) (*Download, error) {
	if actor.ID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "attachment-unauthenticated")
	}

	key = strings.TrimPrefix(key, "/")
	if !ValidKey(key) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"attachment not found", nil, "attachment-bad-key")
	}

	if presigner, ok := s.storage.(Presigner); ok {
		url, err := presigner.PresignGet(ctx, key, s.opts.PresignTTL)
		if err == nil {
			return &Download{RedirectURL: url}, nil
		}
		s.log.Warn().Err(err).Str("key", key).Msg("presign failed, streaming instead")
	}

	body, contentType, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "open attachment")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{Body: body, ContentType: contentType}, nil
}

func (s *service) Health(ctx context.Context) error {
	return s.storage.Health(ctx)
}

func (s *service) urlFor(key string) string {
	if base := strings.TrimSuffix(strings.TrimSpace(s.opts.PublicBaseURL), "/"); base != "" {
		return base + "/" + key
	}
	return strings.TrimSuffix(s.opts.ProxyPath, "/") + "/" + key
}

// ValidKey reports whether key looks like one this service issued.
func ValidKey(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return false
	}
	return path.Clean(key) == key
}

func displayName(filename, ext string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "attachment" + ext
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}
