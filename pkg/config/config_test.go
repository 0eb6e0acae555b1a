package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	c := Default()

	if c.Graph.MaxNodes != DefaultMaxGraphNodes {
		t.Errorf("MaxNodes = %d, want %d", c.Graph.MaxNodes, DefaultMaxGraphNodes)
	}
	if c.Graph.MaxEdges != DefaultMaxGraphEdges {
		t.Errorf("MaxEdges = %d, want %d", c.Graph.MaxEdges, DefaultMaxGraphEdges)
	}
	if c.Include.MaxDepth != DefaultMaxIncludeDepth {
		t.Errorf("MaxDepth = %d, want %d", c.Include.MaxDepth, DefaultMaxIncludeDepth)
	}
	if c.Diagram.Background != "#fff" {
		t.Errorf("Background = %q, want #fff", c.Diagram.Background)
	}
	if c.Serve.Store != "memory" {
		t.Errorf("Store = %q, want memory", c.Serve.Store)
	}
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	c := Config{
		Graph:   GraphConfig{MaxNodes: 10, MaxEdges: 20},
		Include: IncludeConfig{MaxDepth: 3},
	}.WithDefaults()

	if c.Graph.MaxNodes != 10 || c.Graph.MaxEdges != 20 {
		t.Errorf("graph limits = %d/%d, want 10/20", c.Graph.MaxNodes, c.Graph.MaxEdges)
	}
	if c.Include.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want 3", c.Include.MaxDepth)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	content := `
[diagram]
padding = 12.0
background = "none"

[graph]
max_nodes = 100

[include]
max_depth = 5

[font]
family = "Inter"

[serve]
addr = ":9999"
store = "redis"
redis_url = "redis://localhost:6379"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Diagram.Padding != 12 {
		t.Errorf("Padding = %v, want 12", c.Diagram.Padding)
	}
	if c.Diagram.Background != "none" {
		t.Errorf("Background = %q, want none", c.Diagram.Background)
	}
	if c.Graph.MaxNodes != 100 {
		t.Errorf("MaxNodes = %v, want 100", c.Graph.MaxNodes)
	}
	if c.Graph.MaxEdges != DefaultMaxGraphEdges {
		t.Errorf("MaxEdges = %v, want default %d", c.Graph.MaxEdges, DefaultMaxGraphEdges)
	}
	if c.Include.MaxDepth != 5 {
		t.Errorf("MaxDepth = %v, want 5", c.Include.MaxDepth)
	}
	if c.Font.Family != "Inter" {
		t.Errorf("Family = %q, want Inter", c.Font.Family)
	}
	if c.Serve.Addr != ":9999" || c.Serve.Store != "redis" {
		t.Errorf("serve = %q/%q, want :9999/redis", c.Serve.Addr, c.Serve.Store)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte("[diagram\npadding ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed TOML")
	}
}

func TestDiscoverNextToInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(cfgPath, []byte("[include]\nmax_depth = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, found, err := Discover(filepath.Join(dir, "diagram.xml"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if found != cfgPath {
		t.Errorf("found = %q, want %q", found, cfgPath)
	}
	if c.Include.MaxDepth != 7 {
		t.Errorf("MaxDepth = %d, want 7", c.Include.MaxDepth)
	}
}

func TestDiscoverFallsBackToDefaults(t *testing.T) {
	c, found, err := Discover(filepath.Join(t.TempDir(), "diagram.xml"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if found != "" && filepath.Base(found) != DefaultFileName {
		t.Errorf("unexpected config path %q", found)
	}
	if c.Graph.MaxNodes <= 0 {
		t.Error("defaults not applied")
	}
}
