package telemetry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "request_id"
	RequestIDHeader        = "X-Request-ID"
)

// RequestID middleware assigns each request a unique id, reusing an incoming
// X-Request-ID header when an upstream proxy already set one. The id is
// stored in the context and echoed as a response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from context, or "" when absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}

	return ""
}
