package middleware

import (
	"net/http"

	"github.com/mixdeskhq/mixdesk/pkg/requestid"
)

// RequestID takes the request ID from the x-request-id header, or
// generates one, and injects it into the request context so handlers
// and outbound composer calls can correlate log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestid.Header)
		if reqID == "" {
			reqID = requestid.Generate()
		}

		ctx := requestid.ToContext(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
