package chatclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSync serves queued snapshots and records the positions it was asked for.
type fakeSync struct {
	mu     sync.Mutex
	queue  []Snapshot
	sinces []string
	afters []string
	fail   bool
}

func (f *fakeSync) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces = append(f.sinces, r.URL.Query().Get("since"))
	f.afters = append(f.afters, r.URL.Query().Get("after"))
	if f.fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]string{"message": "boom", "type": "internal_error"}})
		return
	}
	if len(f.queue) == 0 {
		writeJSON(w, http.StatusOK, Snapshot{ChatID: "c1"})
		return
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	writeJSON(w, http.StatusOK, next)
}

func (f *fakeSync) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sinces...)
}

func (f *fakeSync) seenAfter() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.afters...)
}

func TestPollerPollAdvancesCursor(t *testing.T) {
	m1 := msgAt("m1", 0, 0, "one")
	m2 := msgAt("m2", time.Second, time.Second, "two")
	fake := &fakeSync{queue: []Snapshot{
		{ChatID: "c1", Messages: []Message{m1, m2}, Cursor: m2.UpdatedAt, Unread: 2, Typing: []Typist{{UserID: "bob"}}},
		{ChatID: "c1", Messages: []Message{m2}, Cursor: m2.UpdatedAt, Unread: 2},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	var updates [][]Message
	var typing []Typist
	var unread int64
	p := NewPoller(New(srv.URL), "c1", nil, PollerOptions{
		OnUpdate: func(changed []Message) { updates = append(updates, changed) },
		OnTyping: func(t []Typist) { typing = t },
		OnUnread: func(n int64) { unread = n },
	})

	ctx := context.Background()
	require.NoError(t, p.Poll(ctx))
	assert.True(t, m2.UpdatedAt.Equal(p.Cursor().Time))
	assert.Equal(t, 2, p.Timeline().Len())
	assert.Len(t, typing, 1)
	assert.Equal(t, int64(2), unread)

	// A lagging cursor returns m2 again; merging it changes nothing.
	require.NoError(t, p.Poll(ctx))
	assert.Len(t, updates, 1)
	assert.Empty(t, typing)

	sinces := fake.seen()
	require.Len(t, sinces, 2)
	assert.Empty(t, sinces[0])
	assert.Equal(t, m2.UpdatedAt.Format(time.RFC3339Nano), sinces[1])
}

func TestPollerKeepsCursorOnError(t *testing.T) {
	fake := &fakeSync{fail: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	p := NewPoller(New(srv.URL), "c1", nil, PollerOptions{})
	err := p.Poll(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.True(t, p.Cursor().IsZero())
}

func TestPollerDrainsPagesSharingOneInstant(t *testing.T) {
	m1 := msgAt("m1", 0, 0, "one")
	m2 := msgAt("m2", 0, 0, "two")
	m3 := msgAt("m3", 0, 0, "three")
	at := m1.UpdatedAt
	fake := &fakeSync{queue: []Snapshot{
		{ChatID: "c1", Messages: []Message{m1, m2}, Cursor: at, CursorID: "m2", HasMore: true},
		{ChatID: "c1", Messages: []Message{m3}, Cursor: at, CursorID: "m3"},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	p := NewPoller(New(srv.URL), "c1", nil, PollerOptions{Limit: 2})
	p.tick(context.Background())

	assert.Equal(t, 3, p.Timeline().Len())
	assert.True(t, at.Equal(p.Cursor().Time))
	assert.Equal(t, "m3", p.Cursor().ID)
	afters := fake.seenAfter()
	require.Len(t, afters, 2, "a full page with the same timestamp still advances")
	assert.Empty(t, afters[0])
	assert.Equal(t, "m2", afters[1])
}

func TestPollerStartStop(t *testing.T) {
	fake := &fakeSync{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	var polls atomic.Int32
	p := NewPoller(New(srv.URL), "c1", nil, PollerOptions{
		Interval: 10 * time.Millisecond,
		OnTyping: func([]Typist) { polls.Add(1) },
	})

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	require.Eventually(t, func() bool { return polls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
	stopped := polls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, polls.Load())
}

func TestPollerStopBeforeStart(t *testing.T) {
	p := NewPoller(New("http://127.0.0.1:0"), "c1", nil, PollerOptions{})
	p.Stop()
	p.Start(context.Background())
	p.Stop()
}

func TestPollerReportsErrors(t *testing.T) {
	fake := &fakeSync{fail: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	errs := make(chan error, 8)
	p := NewPoller(New(srv.URL), "c1", nil, PollerOptions{
		Interval: 10 * time.Millisecond,
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})
	p.Start(context.Background())
	defer p.Stop()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error callback")
	}
}
