package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const subjectKey contextKey = "mcp_subject"

// ContextWithSubject returns a context carrying the authenticated subject.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext extracts the authenticated subject from a context.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// Middleware authenticates inbound HTTP requests and injects the resolved
// subject into the request context. Requests that fail authentication are
// rejected with 401 before reaching the handler.
//
// The credential is read from the Authorization header ("Bearer <token>").
// Because EventSource clients cannot set request headers, a "key" query
// parameter is accepted as a fallback on the channel-open path.
func Middleware(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := ExtractCredential(r)

			subject, err := authenticator.Authenticate(r.Context(), credential)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := ContextWithSubject(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractCredential pulls the bearer credential from a request. The
// Authorization header wins; the "key" query parameter is the fallback.
func ExtractCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return strings.TrimSpace(header)
	}

	return r.URL.Query().Get("key")
}
