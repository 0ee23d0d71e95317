package idgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	PrefixChat       = "chat"
	PrefixMessage    = "msg"
	PrefixAttachment = "att"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a prefixed, lowercase ULID such as "msg_01hx...".
// IDs generated by one process sort in creation order.
func New(prefix string) string {
	return NewAt(prefix, time.Now())
}

// NewAt returns a prefixed ULID for the given timestamp.
func NewAt(prefix string, at time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(at), entropy)
	entropyMu.Unlock()
	return prefix + "_" + strings.ToLower(id.String())
}

// IsValid reports whether value is a ULID carrying the given prefix.
func IsValid(prefix, value string) bool {
	if !strings.HasPrefix(value, prefix+"_") {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(value, prefix+"_")))
	return err == nil
}
