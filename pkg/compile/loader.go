package compile

import (
	"os"
	"path/filepath"
)

// FileLoader abstracts include file access so compiles can run against
// the real filesystem, an in-memory fixture set, or a document store.
type FileLoader interface {
	// Load returns the file's contents.
	Load(path string) (string, error)
	// Canonicalize normalizes a path so the include cycle guard can
	// compare entries on the active chain.
	Canonicalize(path string) (string, error)
}

// OSLoader reads includes from the local filesystem.
type OSLoader struct{}

func (OSLoader) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (OSLoader) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path), err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
