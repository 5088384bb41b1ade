package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oakcrest/wopihost/internal/auth"
	"github.com/oakcrest/wopihost/internal/wopi"
)

type contextKey string

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// FileIDKey is the context key for the file ID extracted from the URL.
	FileIDKey contextKey = "file_id"
	// RequestKey is the context key for the parsed wopi.Request, so
	// downstream handlers never re-derive the operation kind from raw
	// header state.
	RequestKey contextKey = "wopi_request"
)

// WOPIAuth wraps the access gate as HTTP middleware: it parses the request
// into a wopi.Request, resolves whether the operation requires write
// access, and runs auth.Gate.Validate before letting the request through.
// Failure returns 401 Invalid Token and terminates the handler chain.
func WOPIAuth(gate *auth.Gate, encoder *wopi.Encoder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := wopi.Parse(r.Method, r.URL.Path, r.URL.RawQuery, r.Header)
			if err != nil || req.ID == "" {
				encoder.BadRequest(w, "")
				return
			}

			token := req.AccessToken
			if token == "" {
				if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
					token = strings.TrimPrefix(authz, "Bearer ")
				}
			}

			userID, ok := gate.Validate(r.Context(), token, req.ID, req.Kind.WriteRequired())
			if !ok {
				encoder.InvalidToken(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, FileIDKey, req.ID)
			ctx = context.WithValue(ctx, RequestKey, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs every incoming WOPI request with its outcome.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("wopi request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"override", r.Header.Get(wopi.HeaderOverride),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
