// Package swaggerkit serves the OpenAPI document and the swagger UI
package swaggerkit

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"seochecker/internal/modkit/httpkit"
)

//go:embed openapi.json
var openapiJSON string

// SpecMutator edits the parsed document before it is served
type SpecMutator func(map[string]any)

var (
	mutators  []SpecMutator
	docReader = func() string { return openapiJSON }
)

// Register adds m to the mutators applied on every doc.json request
func Register(m SpecMutator) {
	if m != nil {
		mutators = append(mutators, m)
	}
}

type obj = map[string]any

func serveDocJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var spec obj
		if err := json.Unmarshal([]byte(docReader()), &spec); err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}
		normalize(spec)
		for _, m := range mutators {
			m(spec)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(spec)
	}
}

// normalize pins the document to OAS 3.0.3, which the bundled UI renders,
// sets the /api/v1 server and adds the envelope error responses every route can produce
func normalize(spec obj) {
	delete(spec, "swagger")
	spec["openapi"] = "3.0.3"
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{obj{"url": httpkit.APIPrefix(httpkit.CurrentVersion)}}
	}

	child(child(spec, "components"), "schemas")["ErrorResponse"] = obj{
		"type":     "object",
		"required": []any{"status_code", "status"},
		"properties": obj{
			"status_code": obj{"type": "integer"},
			"status":      obj{"type": "string"},
			"code":        obj{"type": "integer"},
			"error":       obj{"type": "string"},
			"field":       obj{"type": "string"},
			"request_id":  obj{"type": "string"},
		},
	}

	paths, _ := spec["paths"].(obj)
	for path, item := range paths {
		ops, ok := item.(obj)
		if !ok {
			continue
		}
		for _, op := range ops {
			o, ok := op.(obj)
			if !ok {
				continue
			}
			resps := child(o, "responses")
			setDefault(resps, http.StatusBadRequest, 5, "name is a required field")
			setDefault(resps, http.StatusInternalServerError, 1, "internal error")
			if strings.Contains(path, "{id}") {
				setDefault(resps, http.StatusNotFound, 7, "analysis 3f2c... not found")
			}
		}
	}
}

// setDefault documents an error status unless the operation already does
func setDefault(resps obj, status, code int, msg string) {
	key := strconv.Itoa(status)
	if _, ok := resps[key]; ok {
		return
	}
	text := http.StatusText(status)
	resps[key] = obj{
		"description": text,
		"content": obj{"application/json": obj{
			"schema":  obj{"$ref": "#/components/schemas/ErrorResponse"},
			"example": obj{"status_code": status, "status": text, "code": code, "error": msg},
		}},
	}
}

// child returns m[key] as an object, creating it when absent
func child(m obj, key string) obj {
	c, ok := m[key].(obj)
	if !ok {
		c = obj{}
		m[key] = c
	}
	return c
}
