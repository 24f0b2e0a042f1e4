package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recoverer turns a handler panic into an enveloped 500 and logs the stack.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panicked",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("requestId", RequestIDFromContext(r.Context())),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				if r.Header.Get("Connection") == "Upgrade" {
					return
				}
				writeAuthError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
