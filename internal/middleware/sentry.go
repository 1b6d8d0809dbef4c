// Package middleware contains the HTTP middleware shared by the API routes.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

// SentryMiddleware attaches a Sentry hub to each request and reports 5xx responses.
// With repanic set, panics are reported and then passed on to RecoveryMiddleware.
func SentryMiddleware(repanic bool) func(http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         repanic,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})

	return func(next http.Handler) http.Handler {
		return sentryHandler.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			hub := sentry.GetHubFromContext(r.Context())
			if hub != nil {
				hub.Scope().SetRequest(r)
				hub.Scope().SetTag("http.method", r.Method)
				hub.Scope().SetTag("http.path", r.URL.Path)
				for _, param := range []string{"sourceLocation", "destinationLocation"} {
					if v := r.URL.Query().Get(param); v != "" {
						hub.Scope().SetTag("copy."+param, v)
					}
				}
			}

			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode >= http.StatusInternalServerError && hub != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetLevel(sentry.LevelError)
					hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", wrapped.statusCode, r.Method, r.URL.Path))
				})
			}
		}))
	}
}

// responseWriter wraps http.ResponseWriter to capture status codes
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// CaptureError reports err to Sentry with the given tags on a cloned scope
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub = hub.Clone()

	for k, v := range tags {
		hub.Scope().SetTag(k, v)
	}
	hub.CaptureException(err)
}
