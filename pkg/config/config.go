// Package config loads optional project configuration from a
// diagramforge.toml file. All settings have working defaults, so a
// missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is the config file looked up next to the input
// document and in the working directory.
const DefaultFileName = "diagramforge.toml"

// Defaults mirrored from the compile and layout packages so a zeroed
// config file section behaves exactly like no file at all.
const (
	DefaultMaxIncludeDepth = 10
	DefaultMaxGraphNodes   = 2000
	DefaultMaxGraphEdges   = 8000
	DefaultNodeGap         = 30.0
	DefaultRankGap         = 50.0
	DefaultBackground      = "#fff"
)

// Config is the full project configuration.
type Config struct {
	Diagram DiagramConfig `toml:"diagram"`
	Graph   GraphConfig   `toml:"graph"`
	Include IncludeConfig `toml:"include"`
	Font    FontConfig    `toml:"font"`
	Cache   CacheConfig   `toml:"cache"`
	Serve   ServeConfig   `toml:"serve"`
}

// DiagramConfig sets document-level fallbacks used when the diagram
// itself does not declare them.
type DiagramConfig struct {
	// Padding is added symmetrically around the content bounds.
	Padding float64 `toml:"padding"`
	// Background fills the viewport; "none" disables the rect.
	Background string `toml:"background"`
}

// GraphConfig bounds graph expansion and sets layout spacing fallbacks.
type GraphConfig struct {
	MaxNodes int     `toml:"max_nodes"`
	MaxEdges int     `toml:"max_edges"`
	NodeGap  float64 `toml:"node_gap"`
	RankGap  float64 `toml:"rank_gap"`
}

// IncludeConfig bounds include expansion.
type IncludeConfig struct {
	MaxDepth int `toml:"max_depth"`
}

// FontConfig sets the fallback font for text measurement.
type FontConfig struct {
	Family string `toml:"family"`
	// Path points at a font file for exact glyph metrics. Empty uses
	// the heuristic measurer.
	Path string `toml:"path"`
}

// CacheConfig controls the compile cache.
type CacheConfig struct {
	// Dir is the cache directory; empty uses the user cache dir.
	Dir string `toml:"dir"`
	// Disabled turns caching off entirely.
	Disabled bool `toml:"disabled"`
	// TTLHours expires entries; zero keeps them forever.
	TTLHours int `toml:"ttl_hours"`
}

// ServeConfig configures the HTTP wrapper.
type ServeConfig struct {
	Addr string `toml:"addr"`
	// Store selects the document backend: memory, redis, or mongo.
	Store    string `toml:"store"`
	RedisURL string `toml:"redis_url"`
	MongoURI string `toml:"mongo_uri"`
	MongoDB  string `toml:"mongo_db"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	out := c
	if out.Diagram.Background == "" {
		out.Diagram.Background = DefaultBackground
	}
	if out.Graph.MaxNodes <= 0 {
		out.Graph.MaxNodes = DefaultMaxGraphNodes
	}
	if out.Graph.MaxEdges <= 0 {
		out.Graph.MaxEdges = DefaultMaxGraphEdges
	}
	if out.Graph.NodeGap <= 0 {
		out.Graph.NodeGap = DefaultNodeGap
	}
	if out.Graph.RankGap <= 0 {
		out.Graph.RankGap = DefaultRankGap
	}
	if out.Include.MaxDepth <= 0 {
		out.Include.MaxDepth = DefaultMaxIncludeDepth
	}
	if out.Serve.Addr == "" {
		out.Serve.Addr = ":8080"
	}
	if out.Serve.Store == "" {
		out.Serve.Store = "memory"
	}
	return out
}

// Load reads a config file and applies defaults.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return c.WithDefaults(), nil
}

// Discover looks for DefaultFileName next to the input document and
// then in the working directory. Returns the default config when no
// file is found.
func Discover(inputPath string) (Config, string, error) {
	var candidates []string
	if inputPath != "" && inputPath != "-" {
		candidates = append(candidates, filepath.Join(filepath.Dir(inputPath), DefaultFileName))
	}
	candidates = append(candidates, DefaultFileName)

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		c, err := Load(path)
		if err != nil {
			return Config{}, path, err
		}
		return c, path, nil
	}
	return Default(), "", nil
}
