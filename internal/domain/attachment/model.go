package attachment

import (
	"context"
	"io"
	"time"
)

// Descriptor is the external reference to an uploaded file. Messages store it
// verbatim and never re-derive any of its fields.
type Descriptor struct {
	URL  string `validate:"required,max=2048"`
	Name string `validate:"required,max=255"`
	Size int64  `validate:"gte=0"`
	Type string `validate:"required,max=255"`
}

// UploadInput is a single file handed to the attachment service.
type UploadInput struct {
	Filename string
	Body     io.Reader
}

// Download is an opened attachment. RedirectURL is set instead of Body when the
// backend can serve the object directly.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	RedirectURL string
}

// Storage is the binary backend behind attachments.
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Health(ctx context.Context) error
}

// Presigner is implemented by backends that can hand out short-lived direct URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
