// Package version provides information about the build version of the service.
package version

// BuildInfo holds version information about the service build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. The version, commit, and date variables
// are set at build time:
//
//	-ldflags "-X 'seochecker/internal/core/version.version=v0.1.0'
//	  -X 'seochecker/internal/core/version.commit=abcd' -X 'seochecker/internal/core/version.date=2025-09-02'"
func Info() BuildInfo {
	return BuildInfo{
		Service: "seochecker-api",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// UserAgent identifies outbound provider calls
func UserAgent() string { return "seochecker/" + version }

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
