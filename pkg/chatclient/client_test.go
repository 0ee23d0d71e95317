package chatclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientSendsGatewayIdentity(t *testing.T) {
	var gotUser, gotName, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-ID")
		gotName = r.Header.Get("X-User-Name")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusCreated, Message{ID: "m1", ChatID: "c1", AuthorID: "alice", Content: "hi @bob", Mentions: []string{"bob"}})
	}))
	defer srv.Close()

	client := New(srv.URL, WithGatewayIdentity("alice", "Alice"))
	msg, err := client.Send(context.Background(), "c1", SendInput{Content: "hi @bob"})
	require.NoError(t, err)

	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "Alice", gotName)
	assert.Equal(t, "/v1/chats/c1/messages", gotPath)
	assert.Equal(t, "hi @bob", gotBody["content"])
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, []string{"bob"}, msg.Mentions)
}

func TestClientBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"data": []ChatListItem{}})
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithBearerToken("tok")).ListChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		ctype    string
		body     string
		wantType string
		wantCode string
	}{
		{
			name:     "not a member",
			status:   http.StatusForbidden,
			ctype:    "application/json",
			body:     `{"error":{"message":"not a member of this chat","type":"not_a_member","code":"chat-not-member","request_id":"r1"}}`,
			wantType: "not_a_member",
			wantCode: "chat-not-member",
		},
		{
			name:     "plain text",
			status:   http.StatusBadGateway,
			ctype:    "text/plain",
			body:     `upstream down`,
			wantType: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).Edit(context.Background(), "m1", "x")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestClientSyncQuery(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 123000000, time.UTC)
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"since": r.URL.Query().Get("since"),
			"after": r.URL.Query().Get("after"),
			"limit": r.URL.Query().Get("limit"),
		}
		writeJSON(w, http.StatusOK, Snapshot{ChatID: "c1", Cursor: since, CursorID: "m9"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	snap, err := client.Sync(context.Background(), "c1", Position{Time: since, ID: "m7"}, 25)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00.123Z", query["since"])
	assert.Equal(t, "m7", query["after"])
	assert.Equal(t, "25", query["limit"])
	assert.True(t, since.Equal(snap.Next().Time))
	assert.Equal(t, "m9", snap.Next().ID)

	_, err = client.Sync(context.Background(), "c1", Position{}, 0)
	require.NoError(t, err)
	assert.Empty(t, query["since"])
	assert.Empty(t, query["after"])
	assert.Empty(t, query["limit"])
}

func TestClientUpload(t *testing.T) {
	var name, content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		name, content = header.Filename, string(raw)
		writeJSON(w, http.StatusCreated, Attachment{URL: "/v1/attachments/k", Name: header.Filename, Size: int64(len(raw)), Type: "text/plain"})
	}))
	defer srv.Close()

	att, err := New(srv.URL).Upload(context.Background(), "notes.txt", strings.NewReader("some notes"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", name)
	assert.Equal(t, "some notes", content)
	assert.Equal(t, int64(10), att.Size)
}
