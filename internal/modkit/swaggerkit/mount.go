package swaggerkit

import (
	"net/http"

	"seochecker/internal/modkit/httpkit"
	phttp "seochecker/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// DocsPath serves the UI; the document lives at DocsPath/doc.json
const DocsPath = httpkit.APIRoot + "/docs"

// Mount serves the UI and the normalised document when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	specURL := DocsPath + "/doc.json"

	r.Get(DocsPath, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, DocsPath+"/", http.StatusPermanentRedirect)
	})
	r.Get(specURL, serveDocJSON())
	r.Handle(DocsPath+"/*", httpSwagger.Handler(
		httpSwagger.URL(specURL),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DeepLinking(true),
	))
}
