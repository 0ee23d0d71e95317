package sanitize

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, raw := range []string{"none", "HASHED", " full "} {
		_, err := ParseLevel(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseLevel("partial")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		raw   string
		check func(t *testing.T, out string)
	}{
		{
			name:  "full keeps everything",
			level: LevelFull,
			raw:   "q=launch+plans&limit=5",
			check: func(t *testing.T, out string) { assert.Equal(t, "q=launch+plans&limit=5", out) },
		},
		{
			name:  "none redacts search text",
			level: LevelNone,
			raw:   "q=launch+plans&limit=5",
			check: func(t *testing.T, out string) {
				values, err := url.ParseQuery(out)
				require.NoError(t, err)
				assert.Equal(t, redacted, values.Get("q"))
				assert.Equal(t, "5", values.Get("limit"))
			},
		},
		{
			name:  "hashed replaces search text",
			level: LevelHashed,
			raw:   "q=mail+bob%40example.com",
			check: func(t *testing.T, out string) {
				values, err := url.ParseQuery(out)
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(values.Get("q"), "[TEXT:"))
				assert.NotContains(t, out, "example.com")
			},
		},
		{
			name:  "queries without content are untouched",
			level: LevelNone,
			raw:   "since=2026-01-01T00:00:00Z",
			check: func(t *testing.T, out string) { assert.Equal(t, "since=2026-01-01T00:00:00Z", out) },
		},
		{
			name:  "malformed query is dropped",
			level: LevelHashed,
			raw:   "q=%zz",
			check: func(t *testing.T, out string) { assert.Equal(t, redacted, out) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, New(tt.level, "salt").Query(tt.raw))
		})
	}
}

func TestHashIsSaltedAndStable(t *testing.T) {
	a := New(LevelHashed, "one")
	b := New(LevelHashed, "two")

	assert.Equal(t, a.UserID("alice"), a.UserID("alice"))
	assert.NotEqual(t, a.UserID("alice"), b.UserID("alice"))
	assert.Len(t, a.UserID("alice"), 8)
	assert.Equal(t, "", a.UserID(""))
	assert.Equal(t, redacted, New(LevelNone, "").UserID("alice"))
	assert.Equal(t, "alice", New(LevelFull, "").UserID("alice"))
}

func TestUnknownLevelFallsBackToHashed(t *testing.T) {
	s := New(Level("bogus"), "")
	assert.True(t, strings.HasPrefix(s.Text("hello"), "[TEXT:"))
}
