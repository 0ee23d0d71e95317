package chatclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msgAt(id string, created, updated time.Duration, content string) Message {
	return Message{ID: id, ChatID: "c1", Content: content, CreatedAt: t0.Add(created), UpdatedAt: t0.Add(updated)}
}

func TestTimelineMergeConflicts(t *testing.T) {
	original := msgAt("m1", 0, 0, "hello")
	edited := msgAt("m1", 0, time.Second, "hello there")
	edited.IsEdited = true
	tombstone := msgAt("m1", 0, time.Second, "This message was deleted")
	tombstone.IsDeleted = true

	tests := []struct {
		name    string
		first   Message
		second  Message
		want    string
		changed int
	}{
		{name: "newer wins", first: original, second: edited, want: "hello there", changed: 1},
		{name: "older ignored", first: edited, second: original, want: "hello there", changed: 0},
		{name: "tombstone wins tie", first: edited, second: tombstone, want: "This message was deleted", changed: 1},
		{name: "live loses tie to tombstone", first: tombstone, second: edited, want: "This message was deleted", changed: 0},
		{name: "same copy is a no-op", first: edited, second: edited, want: "hello there", changed: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewTimeline()
			require.Equal(t, 1, tl.Merge(tt.first))
			assert.Equal(t, tt.changed, tl.Merge(tt.second))

			got, ok := tl.Get("m1")
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Content)
			assert.Equal(t, 1, tl.Len())
		})
	}
}

func TestTimelineOrderIndependent(t *testing.T) {
	a := msgAt("a", 0, 0, "a")
	b := msgAt("b", time.Second, time.Second, "b")
	bEdited := msgAt("b", time.Second, 2*time.Second, "b2")
	c := msgAt("c", time.Second, time.Second, "c")

	forward := NewTimeline()
	forward.Merge(a, b, bEdited, c)

	backward := NewTimeline()
	backward.Merge(c, bEdited, b, a)
	backward.Merge(a, b, c)

	assert.Equal(t, forward.Messages(), backward.Messages())

	ids := make([]string, 0, 3)
	for _, m := range forward.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids, "ties on createdAt break by id")
	got, _ := forward.Get("b")
	assert.Equal(t, "b2", got.Content)
}

func TestTimelineMessagesIsACopy(t *testing.T) {
	tl := NewTimeline()
	tl.Merge(msgAt("a", 0, 0, "a"))

	out := tl.Messages()
	out[0].Content = "mutated"

	got, _ := tl.Get("a")
	assert.Equal(t, "a", got.Content)
}
