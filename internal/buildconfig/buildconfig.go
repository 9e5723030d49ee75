// Package buildconfig exposes version information injected at link time:
//
//	go build -ldflags "-X github.com/cubomagico/memoria/internal/buildconfig.version=1.2.0 \
//	  -X github.com/cubomagico/memoria/internal/buildconfig.commit=$(git rev-parse --short HEAD)"
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
)

func Version() string { return version }

func Commit() string { return commit }

// VersionInfo is reported by /health and memctl version.
func VersionInfo() map[string]string {
	return map[string]string{
		"service": "memoria",
		"version": version,
		"commit":  commit,
	}
}
