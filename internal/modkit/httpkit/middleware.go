package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"seochecker/internal/platform/net/middleware"
)

// CommonStack is the middleware every API scope runs behind
// RequestID comes first so the recover envelope and the access log both carry it
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recover,
		middleware.AccessLog(500 * time.Millisecond),
		middleware.NoCache,
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes,
		middleware.Timeout(30 * time.Second),
	}
}
