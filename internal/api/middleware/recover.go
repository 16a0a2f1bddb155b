package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/directorio/hub/internal/api/response"
)

// Recover turns a handler panic into a 500 Problem Details response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}

			if rvr == http.ErrAbortHandler { //nolint:errorlint,err113 // sentinel panic value
				panic(rvr)
			}

			slog.ErrorContext(r.Context(), "http: panic recovered",
				"panic_value", rvr,
				"stack_trace", string(debug.Stack()),
			)

			response.RespondInternalServerError(w, "internal error")
		}()

		next.ServeHTTP(w, r)
	})
}
