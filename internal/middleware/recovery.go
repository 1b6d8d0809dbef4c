package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

const internalErrorProblem = `{"title":"Internal Server Error","status":500}`

// RecoveryMiddleware turns a panic into a 500 problem response. It must wrap
// SentryMiddleware so that panics reported there still reach the client as a 500.
func RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logrus.WithFields(logrus.Fields{
						"panic":  err,
						"method": r.Method,
						"path":   r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/problem+json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(internalErrorProblem))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
