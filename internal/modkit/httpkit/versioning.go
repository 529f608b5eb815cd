package httpkit

import (
	"strings"

	"seochecker/internal/platform/net/middleware"
)

// APIRoot holds every versioned API and the docs
const APIRoot = "/api"

// CurrentVersion is the version the analysis routes are served under
const CurrentVersion = "v1"

// APIPrefix returns the mount point of version; "v1", "/v1" and "1" are the same
// and an empty version means CurrentVersion
func APIPrefix(version string) string {
	v := strings.Trim(version, "/")
	if v == "" {
		v = CurrentVersion
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return APIRoot + "/" + v
}

// MountAPI registers mount under APIPrefix(version) behind mw and returns the prefix
func MountAPI(r Router, version string, mw []middleware.Middleware, mount func(Router)) string {
	prefix := APIPrefix(version)
	r.Route(prefix, func(api Router) {
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
	return prefix
}

// MountAPIV1 mounts under CurrentVersion
func MountAPIV1(r Router, mw []middleware.Middleware, mount func(Router)) string {
	return MountAPI(r, CurrentVersion, mw, mount)
}
