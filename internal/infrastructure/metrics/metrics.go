// Package metrics provides Prometheus metrics for the messaging-api service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route, method and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPDuration tracks request latency by route and method.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// ChatsResolved counts get-or-create and create calls by kind and outcome.
	ChatsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_chats_resolved_total",
			Help: "Chats returned by get-or-create and create operations",
		},
		[]string{"kind", "outcome"},
	)

	ChatsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_chats_deleted_total",
			Help: "Total number of group chats deleted",
		},
	)

	// MessageOps counts message writes by operation.
	MessageOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_message_operations_total",
			Help: "Message writes by operation",
		},
		[]string{"op"},
	)

	AttachmentsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_attachments_uploaded_total",
			Help: "Total number of attachments uploaded",
		},
	)

	AttachmentBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "messaging_attachment_size_bytes",
			Help:    "Size of uploaded attachments",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	TypingSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_typing_signals_total",
			Help: "Typing signals received",
		},
		[]string{"state"},
	)

	// PresenceStoreErrors counts presence backend failures that were swallowed.
	PresenceStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_presence_store_errors_total",
			Help: "Presence store failures",
		},
		[]string{"op"},
	)

	SyncPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_sync_polls_total",
			Help: "Total number of sync snapshots served",
		},
	)
)

// RecordRequest records one handled HTTP request.
func RecordRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordChatResolved records a returned chat.
func RecordChatResolved(kind, outcome string) {
	ChatsResolved.WithLabelValues(kind, outcome).Inc()
}

// RecordMessageOp records a successful message write: sent, edited or deleted.
func RecordMessageOp(op string) {
	MessageOps.WithLabelValues(op).Inc()
}

// RecordAttachment records an accepted upload.
func RecordAttachment(size int64) {
	AttachmentsUploaded.Inc()
	AttachmentBytes.Observe(float64(size))
}

// RecordTyping records a typing signal.
func RecordTyping(isTyping bool) {
	state := "stopped"
	if isTyping {
		state = "typing"
	}
	TypingSignals.WithLabelValues(state).Inc()
}

// RecordPresenceStoreError is suitable as the presence OnStoreError hook.
func RecordPresenceStoreError(op string, _ error) {
	PresenceStoreErrors.WithLabelValues(op).Inc()
}
