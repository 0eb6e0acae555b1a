// Package buildinfo holds version metadata injected at build time:
//
//	go build -ldflags "-X github.com/diagramforge/diagramforge/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/diagramforge/diagramforge/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/diagramforge/diagramforge/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds that skip the ldflags report "dev".
package buildinfo

import "fmt"

var (
	// Version is the release tag, or "dev" for untagged builds.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "none"

	// Date is the UTC build timestamp.
	Date = "unknown"
)

// String formats the build information for log output.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template is the cobra --version output template.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
