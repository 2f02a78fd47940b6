package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery returns a middleware that recovers from panics, logs them with a
// stack trace, and reports them through onPanic. A nil onPanic responds with
// a plain 500 Internal Server Error.
//
// http.ErrAbortHandler is re-raised so the server drops the connection
// instead of writing a second response.
func Recovery(onPanic ErrorWriter) Middleware {
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
				zctx.From(r.Context()).Error("Panic recovered",
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				w.Header().Set("Connection", "close")
				if onPanic == nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				onPanic(w, r, errors.Errorf("panic: %v", rec))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
