package middlewares

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/utils/sanitize"
)

func TestLoggingMiddlewareScrubsSearchText(t *testing.T) {
	tests := []struct {
		name     string
		level    sanitize.Level
		status   int
		contains []string
		excludes []string
	}{
		{
			name:     "hashed",
			level:    sanitize.LevelHashed,
			status:   http.StatusOK,
			contains: []string{`"level":"info"`, `"path":"/v1/chats/c1/search"`, "limit=5"},
			excludes: []string{"quarterly", "alice"},
		},
		{
			name:     "full",
			level:    sanitize.LevelFull,
			status:   http.StatusNotFound,
			contains: []string{`"level":"warn"`, "quarterly", `"user_id":"alice"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			engine := gin.New()
			engine.Use(RequestID(), LoggingMiddleware(zerolog.New(&buf), sanitize.New(tt.level, "salt")))
			engine.GET("/v1/chats/:chat_id/search", func(c *gin.Context) {
				setPrincipal(c, domain.Principal{ID: "alice"})
				c.Status(tt.status)
			})

			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chats/c1/search?q=quarterly+report&limit=5", nil))

			out := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
			assert.Contains(t, out, `"request_id"`)
		})
	}
}
