package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

// Recovery turns a handler panic into a 500 error envelope.
func Recovery(base *transport.BaseHandler) func(http.Handler) http.Handler {
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
				logger.From(r.Context()).ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"method", r.Method,
					"url", r.URL.Path,
					"stack", string(debug.Stack()))

				err, ok := rec.(error)
				if !ok {
					err = errors.New(fmt.Sprint(rec))
				}
				base.WriteAppError(w, r, err)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
