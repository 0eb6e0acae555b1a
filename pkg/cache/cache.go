// Package cache provides compiled-diagram caching keyed by source
// content hash, with file-based and no-op backends.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when an item is not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented cache with optional per-entry TTL.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// CompileKeyOpts captures everything besides the source text that can
// change a compile's output.
type CompileKeyOpts struct {
	TemplatesHash   string  `json:"templates_hash,omitempty"`
	MaxIncludeDepth int     `json:"max_include_depth,omitempty"`
	MaxGraphNodes   int     `json:"max_graph_nodes,omitempty"`
	MaxGraphEdges   int     `json:"max_graph_edges,omitempty"`
	NodeGap         float64 `json:"node_gap,omitempty"`
	RankGap         float64 `json:"rank_gap,omitempty"`
	Padding         float64 `json:"padding,omitempty"`
	Background      string  `json:"background,omitempty"`
	FontFamily      string  `json:"font_family,omitempty"`
	FontPath        string  `json:"font_path,omitempty"`
}

// Keyer generates cache keys for compiled diagrams.
type Keyer interface {
	// CompileKey keys a compile result by source hash and options.
	CompileKey(sourceHash string, opts CompileKeyOpts) string
}

// DefaultKeyer generates globally scoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// CompileKey generates a key for a compiled diagram.
func (k *DefaultKeyer) CompileKey(sourceHash string, opts CompileKeyOpts) string {
	return hashKey("compile", sourceHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix so different tenants of the
// serve surface get separate cache namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. The prefix is
// prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// CompileKey generates a prefixed key for a compiled diagram.
func (k *ScopedKeyer) CompileKey(sourceHash string, opts CompileKeyOpts) string {
	return k.prefix + k.inner.CompileKey(sourceHash, opts)
}
