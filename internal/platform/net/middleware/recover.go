package middleware

import (
	"net/http"
	"runtime/debug"

	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
	phttp "seochecker/internal/platform/net/http"
)

// Recover turns a handler panic into a 500 envelope and logs the stack
// http.ErrAbortHandler is re-panicked so net/http can drop the connection
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.C(r.Context()).Error().
				Str("request_id", phttp.RequestID(r)).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			phttp.Write(w, r, phttp.Error(perr.PanicErrf("internal error")))
		}()
		next.ServeHTTP(w, r)
	})
}
