// Package chatclient is a Go client for the messaging API with a polling
// timeline on top.
package chatclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response decoded from the API error envelope.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging api: %d %s: %s", e.Status, e.Type, e.Message)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Option configures a Client.
type Option func(*resty.Client)

// WithBearerToken authenticates every request with token.
func WithBearerToken(token string) Option {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

// WithGatewayIdentity sends the identity headers a trusted gateway would inject.
func WithGatewayIdentity(userID, displayName string) Option {
	return func(c *resty.Client) {
		c.SetHeader("X-User-ID", userID)
		if displayName != "" {
			c.SetHeader("X-User-Name", displayName)
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(timeout) }
}

// WithHTTPClient swaps the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *resty.Client) {
		c.SetTransport(hc.Transport)
		if hc.Timeout > 0 {
			c.SetTimeout(hc.Timeout)
		}
	}
}

// Client calls the messaging API.
type Client struct {
	http *resty.Client
}

// New creates a Resty-backed client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "messaging-chatclient/1.0").
		SetTimeout(30 * time.Second).
		SetError(&errorEnvelope{})
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error != nil {
		apiErr := *env.Error
		apiErr.Status = resp.StatusCode()
		return &apiErr
	}
	return &APIError{Status: resp.StatusCode(), Type: http.StatusText(resp.StatusCode()), Message: resp.String()}
}

func (c *Client) GetOrCreateDirect(ctx context.Context, userID string) (*ResolvedChat, error) {
	var out ResolvedChat
	resp, err := c.request(ctx).SetBody(map[string]string{"userId": userID}).SetResult(&out).Post("/v1/chats/direct")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrCreateProject(ctx context.Context, projectID string) (*ResolvedChat, error) {
	var out ResolvedChat
	resp, err := c.request(ctx).SetBody(map[string]string{"projectId": projectID}).SetResult(&out).Post("/v1/chats/project")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateGroup(ctx context.Context, input GroupInput) (*ChatInfo, error) {
	var out ChatInfo
	resp, err := c.request(ctx).SetBody(input).SetResult(&out).Post("/v1/chats/group")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListChats(ctx context.Context) ([]ChatListItem, error) {
	var out struct {
		Data []ChatListItem `json:"data"`
	}
	resp, err := c.request(ctx).SetResult(&out).Get("/v1/chats")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Send(ctx context.Context, chatID string, input SendInput) (*Message, error) {
	var out Message
	resp, err := c.request(ctx).
		SetPathParam("chat_id", chatID).
		SetBody(input).
		SetResult(&out).
		Post("/v1/chats/{chat_id}/messages")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Edit(ctx context.Context, messageID, content string) (*Message, error) {
	var out Message
	resp, err := c.request(ctx).
		SetPathParam("message_id", messageID).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Patch("/v1/messages/{message_id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, messageID string) (*Message, error) {
	var out Message
	resp, err := c.request(ctx).
		SetPathParam("message_id", messageID).
		SetResult(&out).
		Delete("/v1/messages/{message_id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns a page of messages, oldest first. An empty before starts
// from the newest message.
func (c *Client) History(ctx context.Context, chatID string, limit int, before string) (*MessagePage, error) {
	var out MessagePage
	req := c.request(ctx).SetPathParam("chat_id", chatID).SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	if before != "" {
		req.SetQueryParam("before", before)
	}
	resp, err := req.Get("/v1/chats/{chat_id}/messages")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Search(ctx context.Context, chatID, query string) ([]Message, error) {
	var out struct {
		Data []Message `json:"data"`
	}
	resp, err := c.request(ctx).
		SetPathParam("chat_id", chatID).
		SetQueryParam("q", query).
		SetResult(&out).
		Get("/v1/chats/{chat_id}/search")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// MarkRead moves the caller's read marker to now and returns the new unread count.
func (c *Client) MarkRead(ctx context.Context, chatID string) (int64, error) {
	var out struct {
		Unread int64 `json:"unread"`
	}
	resp, err := c.request(ctx).SetPathParam("chat_id", chatID).SetResult(&out).Post("/v1/chats/{chat_id}/read")
	if err := check(resp, err); err != nil {
		return 0, err
	}
	return out.Unread, nil
}

func (c *Client) SetTyping(ctx context.Context, chatID string, typing bool) error {
	resp, err := c.request(ctx).
		SetPathParam("chat_id", chatID).
		SetBody(map[string]bool{"isTyping": typing}).
		Put("/v1/chats/{chat_id}/typing")
	return check(resp, err)
}

// Sync fetches everything that changed in chatID after the given position. A
// zero position returns the chat from the beginning.
func (c *Client) Sync(ctx context.Context, chatID string, after Position, limit int) (*Snapshot, error) {
	var out Snapshot
	req := c.request(ctx).SetPathParam("chat_id", chatID).SetResult(&out)
	if !after.Time.IsZero() {
		req.SetQueryParam("since", after.Time.UTC().Format(time.RFC3339Nano))
		if after.ID != "" {
			req.SetQueryParam("after", after.ID)
		}
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/v1/chats/{chat_id}/sync")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends body as a multipart attachment and returns its descriptor.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (*Attachment, error) {
	var out Attachment
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "").
		SetFileReader("file", filename, body).
		SetResult(&out).
		Post("/v1/attachments")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
