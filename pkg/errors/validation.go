package errors

import (
	"strings"
	"unicode"
)

// maxIncludeSrcLength bounds include src attributes; anything longer is
// almost certainly corrupt input.
const maxIncludeSrcLength = 500

// ValidateIncludeSrc validates an include src attribute before it is
// resolved against the filesystem.
//
// The validation rules are intentionally conservative:
//   - No empty values
//   - No control characters or null bytes
//   - No backslashes (Windows-style separators)
//   - Maximum length of 500 characters
//
// Relative-path resolution and cycle detection are handled by the
// include resolver itself.
func ValidateIncludeSrc(src string) error {
	if src == "" {
		return New(CodeIncludeArgs, "include src cannot be empty")
	}

	if len(src) > maxIncludeSrcLength {
		return New(CodeIncludeArgs, "include src too long (max %d characters)", maxIncludeSrcLength)
	}

	for _, r := range src {
		if r == '\x00' || unicode.IsControl(r) {
			return New(CodeIncludeArgs, "include src contains invalid control characters")
		}
	}

	if strings.Contains(src, "\\") {
		return New(CodeIncludeArgs, "include src cannot contain backslashes")
	}

	return nil
}

// maxDocumentNameLength bounds document names on the serve surface.
const maxDocumentNameLength = 256

// ValidateDocumentName validates a stored document's display name.
// Empty names are allowed; the store assigns ids independently.
func ValidateDocumentName(name string) error {
	if len(name) > maxDocumentNameLength {
		return New(CodeInvalidAttr, "document name too long (max %d characters)", maxDocumentNameLength)
	}

	for _, r := range name {
		if r == '\x00' || unicode.IsControl(r) {
			return New(CodeInvalidAttr, "document name contains invalid control characters")
		}
	}

	return nil
}
