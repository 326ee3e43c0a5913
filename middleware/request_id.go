package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is honored when the caller already assigned an id,
// so the trail can be correlated across hops.
const requestIDHeader = "X-Request-ID"

// RequestID assigns every request an id and echoes it back in the
// response headers. The id threads through logs and the audit trail.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
