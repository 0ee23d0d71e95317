// Package sanitize scrubs user content out of log lines.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Level controls how much user content reaches the logs.
type Level string

const (
	// LevelNone drops user content entirely.
	LevelNone Level = "none"
	// LevelHashed replaces user content with salted hashes.
	LevelHashed Level = "hashed"
	// LevelFull logs user content as is.
	LevelFull Level = "full"
)

const redacted = "[REDACTED]"

// contentParams are query parameters that carry message text.
var contentParams = map[string]struct{}{
	"q": {},
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

// ParseLevel accepts none, hashed or full. Anything else is an error.
func ParseLevel(raw string) (Level, error) {
	switch level := Level(strings.ToLower(strings.TrimSpace(raw))); level {
	case LevelNone, LevelHashed, LevelFull:
		return level, nil
	default:
		return "", fmt.Errorf("unsupported PII level %q", raw)
	}
}

type Sanitizer struct {
	level Level
	salt  string
}

// New returns a sanitizer. Unknown levels fall back to hashed.
func New(level Level, salt string) *Sanitizer {
	if _, err := ParseLevel(string(level)); err != nil {
		level = LevelHashed
	}
	return &Sanitizer{level: level, salt: salt}
}

// Text sanitizes free-form user content.
func (s *Sanitizer) Text(input string) string {
	if input == "" {
		return ""
	}
	switch s.level {
	case LevelFull:
		return input
	case LevelNone:
		return redacted
	default:
		out := emailPattern.ReplaceAllStringFunc(input, func(m string) string { return "[EMAIL:" + s.hash(m) + "]" })
		out = phonePattern.ReplaceAllStringFunc(out, func(m string) string { return "[PHONE:" + s.hash(m) + "]" })
		return "[TEXT:" + s.hash(out) + "]"
	}
}

// Query rewrites the content-bearing parameters of a raw query string.
// Unparseable input is dropped unless the level is full.
func (s *Sanitizer) Query(rawQuery string) string {
	if rawQuery == "" || s.level == LevelFull {
		return rawQuery
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return redacted
	}
	touched := false
	for key, vals := range values {
		if _, ok := contentParams[strings.ToLower(key)]; !ok {
			continue
		}
		for i := range vals {
			vals[i] = s.Text(vals[i])
		}
		touched = true
	}
	if !touched {
		return rawQuery
	}
	return values.Encode()
}

// UserID hashes ids unless the level is full.
func (s *Sanitizer) UserID(id string) string {
	if id == "" || s.level == LevelFull {
		return id
	}
	if s.level == LevelNone {
		return redacted
	}
	return s.hash(id)
}

func (s *Sanitizer) hash(data string) string {
	sum := sha256.Sum256([]byte(data + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}
