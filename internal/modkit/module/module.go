// Package module defines the contract between the composition root and API modules
package module

import phttp "seochecker/internal/platform/net/http"

// Module mounts routes and exposes a port set for cross wiring
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
