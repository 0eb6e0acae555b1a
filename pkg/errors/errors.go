// Package errors provides structured error types for the diagramforge compiler.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP surfaces
//   - Stable, machine-readable error codes for programmatic handling
//   - User-friendly error messages with positional/identifier context
//   - Error wrapping with cause preservation
//
// # Error Codes
//
// Error codes are stable strings following the E_* convention:
//   - E_PARSE: malformed input syntax
//   - E_TEMPLATE_*, E_ID_*: semantic validation failures
//   - E_INCLUDE_*: include resolution failures (cycle, depth, root, ...)
//   - E_GRAPH_*: graph declaration and layout validation failures
//   - E_ANCHOR_*, E_ARROW_*: anchor and connector resolution failures
//   - E_INTERNAL: invariant violations inside the compiler itself; these
//     indicate a defect in diagramforge, not bad input, and are reported
//     separately from user errors
//
// # Usage
//
//	err := errors.New(errors.CodeGraphSelfEdge, "edge %q -> %q is a self-edge", from, to)
//	if errors.Is(err, errors.CodeGraphSelfEdge) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.CodeIncludeNotFound, readErr, "failed to read include %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a stable, machine-readable error code.
type Code string

// Error codes for different failure categories.
const (
	// Parse errors
	CodeParse Code = "E_PARSE"

	// Semantic validation errors
	CodeTemplateUnknown Code = "E_TEMPLATE_UNKNOWN"
	CodeTemplateArgs    Code = "E_TEMPLATE_ARGS"
	CodeIDCollision     Code = "E_ID_COLLISION"
	CodeInvalidAttr     Code = "E_INVALID_ATTR"
	CodeInvalidRoot     Code = "E_INVALID_ROOT"

	// Include errors
	CodeIncludeArgs        Code = "E_INCLUDE_ARGS"
	CodeIncludeNotFound    Code = "E_INCLUDE_NOT_FOUND"
	CodeIncludeParse       Code = "E_INCLUDE_PARSE"
	CodeIncludeRoot        Code = "E_INCLUDE_ROOT"
	CodeIncludeCycle       Code = "E_INCLUDE_CYCLE"
	CodeIncludeDepth       Code = "E_INCLUDE_DEPTH"
	CodeIncludeIDCollision Code = "E_INCLUDE_ID_COLLISION"

	// Graph errors
	CodeGraphArgs             Code = "E_GRAPH_ARGS"
	CodeGraphChildUnsupported Code = "E_GRAPH_CHILD_UNSUPPORTED"
	CodeGraphNested           Code = "E_GRAPH_NESTED_UNSUPPORTED"
	CodeGraphNodeMissingID    Code = "E_GRAPH_NODE_MISSING_ID"
	CodeGraphDuplicateNode    Code = "E_GRAPH_DUPLICATE_NODE"
	CodeGraphIDCollision      Code = "E_GRAPH_ID_COLLISION"
	CodeGraphUnknownNode      Code = "E_GRAPH_UNKNOWN_NODE"
	CodeGraphSelfEdge         Code = "E_GRAPH_SELF_EDGE"
	CodeGraphTooLarge         Code = "E_GRAPH_TOO_LARGE"

	// Anchor and connector errors
	CodeAnchorArgs      Code = "E_ANCHOR_ARGS"
	CodeAnchorDuplicate Code = "E_ANCHOR_DUPLICATE"
	CodeAnchorTarget    Code = "E_ANCHOR_TARGET"
	CodeArrowArgs       Code = "E_ARROW_ARGS"
	CodeArrowEndpoint   Code = "E_ARROW_ENDPOINT"

	// Internal invariant violations (compiler defects, not user input)
	CodeInternal Code = "E_INTERNAL"
)

// Error is a structured error with a stable code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message with context (ids, values, chains)
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUserError reports whether the error is attributable to user input,
// as opposed to an internal invariant violation.
func IsUserError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code != CodeInternal
	}
	return false
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
