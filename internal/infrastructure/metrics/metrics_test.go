package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMessageOp(t *testing.T) {
	before := testutil.ToFloat64(MessageOps.WithLabelValues("edited"))
	RecordMessageOp("edited")
	assert.Equal(t, before+1, testutil.ToFloat64(MessageOps.WithLabelValues("edited")))
}

func TestRecordTypingStates(t *testing.T) {
	typing := testutil.ToFloat64(TypingSignals.WithLabelValues("typing"))
	stopped := testutil.ToFloat64(TypingSignals.WithLabelValues("stopped"))

	RecordTyping(true)
	RecordTyping(false)
	RecordTyping(false)

	assert.Equal(t, typing+1, testutil.ToFloat64(TypingSignals.WithLabelValues("typing")))
	assert.Equal(t, stopped+2, testutil.ToFloat64(TypingSignals.WithLabelValues("stopped")))
}

func TestRecordRequestUnmatchedRoute(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("unmatched", "GET", "404"))
	RecordRequest("", "GET", 404, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("unmatched", "GET", "404")))
}

func TestRecordPresenceStoreError(t *testing.T) {
	before := testutil.ToFloat64(PresenceStoreErrors.WithLabelValues("set"))
	RecordPresenceStoreError("set", errors.New("redis down"))
	assert.Equal(t, before+1, testutil.ToFloat64(PresenceStoreErrors.WithLabelValues("set")))
}
