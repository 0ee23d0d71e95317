package middlewares

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/worknest/messaging-api/internal/utils/sanitize"
)

// Route parameters copied onto the request span.
var spanParams = map[string]string{
	"chat_id":    "messaging.chat.id",
	"message_id": "messaging.message.id",
}

// TracingMiddleware starts a server span per request, continuing any trace
// propagated by the caller.
func TracingMiddleware(serviceName string, scrub *sanitize.Sanitizer) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		route := c.FullPath()
		name := c.Request.Method + " " + route
		if route == "" {
			name = c.Request.Method + " unmatched"
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.HTTPUserAgent(c.Request.UserAgent()),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		for param, key := range spanParams {
			if value := c.Param(param); value != "" {
				span.SetAttributes(attribute.String(key, value))
			}
		}
		if requestID := RequestIDFromContext(c); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if principal, ok := PrincipalFromContext(c); ok {
			span.SetAttributes(attribute.String("enduser.id", scrub.UserID(principal.ID)))
		}
		if status < 500 {
			span.SetStatus(codes.Unset, "")
			return
		}
		span.SetStatus(codes.Error, c.Errors.String())
		if last := c.Errors.Last(); last != nil {
			span.RecordError(last)
		}
	}
}
