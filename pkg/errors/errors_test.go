package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(CodeGraphSelfEdge, "edge %q -> %q is a self-edge", "a", "a")
	got := err.Error()
	if !strings.HasPrefix(got, "E_GRAPH_SELF_EDGE: ") {
		t.Errorf("Error() = %q, want E_GRAPH_SELF_EDGE prefix", got)
	}
	if !strings.Contains(got, `"a" -> "a"`) {
		t.Errorf("Error() = %q, want quoted ids", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Wrap(CodeIncludeNotFound, cause, "failed to read include %s", "sub.xml")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := New(CodeIncludeCycle, "include cycle detected")
	wrapped := fmt.Errorf("compile: %w", err)

	if !Is(wrapped, CodeIncludeCycle) {
		t.Error("Is(wrapped, CodeIncludeCycle) = false, want true")
	}
	if Is(wrapped, CodeIncludeDepth) {
		t.Error("Is(wrapped, CodeIncludeDepth) = true, want false")
	}
	if Is(fmt.Errorf("plain"), CodeIncludeCycle) {
		t.Error("Is(plain, CodeIncludeCycle) = true, want false")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(CodeParse, "bad xml")); got != CodeParse {
		t.Errorf("GetCode() = %q, want %q", got, CodeParse)
	}
	if got := GetCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(New(CodeGraphArgs, "bad gap")) {
		t.Error("IsUserError(E_GRAPH_ARGS) = false, want true")
	}
	if IsUserError(New(CodeInternal, "geometry read before layout")) {
		t.Error("IsUserError(E_INTERNAL) = true, want false")
	}
	if IsUserError(fmt.Errorf("plain")) {
		t.Error("IsUserError(plain) = true, want false")
	}
}

func TestUserMessage(t *testing.T) {
	err := New(CodeAnchorArgs, "anchor %q cannot combine absolute and relative modes", "a1")
	if got := UserMessage(err); strings.Contains(got, "E_ANCHOR") {
		t.Errorf("UserMessage() = %q, want message without code prefix", got)
	}
}
