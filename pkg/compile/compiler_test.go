package compile

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/metrics"
)

const testNS = "urn:example:diag"

// memLoader serves include fixtures from a map keyed by cleaned path.
type memLoader map[string]string

func (m memLoader) Load(path string) (string, error) {
	source, ok := m[path]
	if !ok {
		return "", fs.ErrNotExist
	}
	return source, nil
}

func (m memLoader) Canonicalize(path string) (string, error) {
	return filepath.Clean(path), nil
}

func testCompiler(files memLoader) *Compiler {
	return New(Options{Loader: files, Measurer: metrics.Fixed{CharWidth: 1}})
}

func compileSrc(t *testing.T, src string) (string, error) {
	t.Helper()
	return testCompiler(nil).Compile(src, "")
}

func mustCompile(t *testing.T, src string) string {
	t.Helper()
	out, err := compileSrc(t, src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return out
}

// findElements parses compiled output and returns every element with
// the given local name, in document order.
func findElements(t *testing.T, out, local string) []*dsl.Element {
	t.Helper()
	root, err := dsl.ParseString(out)
	if err != nil {
		t.Fatalf("output is not valid XML: %v\n%s", err, out)
	}
	var found []*dsl.Element
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.Local == local {
			found = append(found, e)
		}
		return true
	})
	return found
}

func TestCompileMinimal(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/></d:diagram>`)
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10" width="10" height="10">
  <rect x="0" y="0" width="10" height="10" fill="#fff"/>
  <rect width="10" height="10"/>
</svg>
`
	if out != want {
		t.Errorf("Compile() =\n%s\nwant\n%s", out, want)
	}
}

func TestCompileParseError(t *testing.T) {
	_, err := compileSrc(t, `<d:diagram xmlns:d="urn:example:diag"><oops</d:diagram>`)
	if !errors.Is(err, errors.CodeParse) {
		t.Errorf("error = %v, want E_PARSE", err)
	}
}

func TestCompileRootValidation(t *testing.T) {
	if _, err := compileSrc(t, `<d:chart xmlns:d="urn:example:diag"/>`); !errors.Is(err, errors.CodeInvalidRoot) {
		t.Errorf("non-diagram root: error = %v, want E_INVALID_ROOT", err)
	}
	if _, err := compileSrc(t, `<diagram/>`); !errors.Is(err, errors.CodeInvalidRoot) {
		t.Errorf("unqualified root: error = %v, want E_INVALID_ROOT", err)
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <d:flex direction="column" gap="5" padding="5">
    <rect width="30" height="20"/>
    <text font-size="10">hello world</text>
  </d:flex>
  <d:graph direction="LR">
    <d:node id="n1"><rect width="20" height="10"/></d:node>
    <d:node id="n2"><rect width="20" height="10"/></d:node>
    <d:edge from="n1" to="n2" label="ok"/>
  </d:graph>
</d:diagram>`
	if a, b := mustCompile(t, src), mustCompile(t, src); a != b {
		t.Error("repeated compiles differ")
	}
}

func TestExplicitRootDimensionsKeptWhenSufficient(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" width="100" height="80"><rect width="10" height="10"/></d:diagram>`)
	svgs := findElements(t, out, "svg")
	if got, _ := svgs[0].Attr("", "width"); got != "100" {
		t.Errorf("width = %q, want explicit 100 kept", got)
	}
	if got, _ := svgs[0].Attr("", "height"); got != "80" {
		t.Errorf("height = %q, want explicit 80 kept", got)
	}
	if got, _ := svgs[0].Attr("", "viewBox"); got != "0 0 10 10" {
		t.Errorf("viewBox = %q, want 0 0 10 10", got)
	}
}

func TestExplicitRootDimensionsGrownWhenTooSmall(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" width="5"><rect width="10" height="10"/></d:diagram>`)
	svgs := findElements(t, out, "svg")
	if got, _ := svgs[0].Attr("", "width"); got != "10" {
		t.Errorf("width = %q, want computed 10 (explicit 5 too small)", got)
	}
}

func TestDiagramPadding(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" d:padding="4"><rect width="10" height="10"/></d:diagram>`)
	svgs := findElements(t, out, "svg")
	if got, _ := svgs[0].Attr("", "viewBox"); got != "-4 -4 18 18" {
		t.Errorf("viewBox = %q, want -4 -4 18 18", got)
	}
}

func TestBackgroundNoneSkipsRect(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" d:background="none"><rect width="10" height="10"/></d:diagram>`)
	if strings.Contains(out, `fill="#fff"`) {
		t.Errorf("background rect emitted despite none:\n%s", out)
	}
}

func TestBackgroundCustomColor(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" d:background="#123456"><rect width="10" height="10"/></d:diagram>`)
	rects := findElements(t, out, "rect")
	if got, _ := rects[0].Attr("", "fill"); got != "#123456" {
		t.Errorf("background fill = %q, want #123456", got)
	}
}

func TestDuplicateIDWithoutIncludes(t *testing.T) {
	_, err := compileSrc(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <rect id="x" width="10" height="10"/>
  <rect id="x" width="10" height="10"/>
</d:diagram>`)
	if !errors.Is(err, errors.CodeIDCollision) {
		t.Errorf("error = %v, want E_ID_COLLISION", err)
	}
}

func TestDSLNamespaceAbsentFromOutput(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" d:background="none">
  <d:flex direction="row" padding="3">
    <text d:wrap="false" font-size="10">hi</text>
  </d:flex>
</d:diagram>`)
	if strings.Contains(out, testNS) || strings.Contains(out, "d:") {
		t.Errorf("DSL namespace leaked into output:\n%s", out)
	}
}

func TestGraphEndToEnd(t *testing.T) {
	out := mustCompile(t, `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg" d:background="none">
  <d:graph direction="TB">
    <d:node id="a"><rect width="40" height="20"/></d:node>
    <d:node id="b"><rect width="40" height="20"/></d:node>
    <d:edge from="a" to="b"/>
  </d:graph>
</d:diagram>`)
	if !strings.Contains(out, `id="a"`) || !strings.Contains(out, `id="b"`) {
		t.Errorf("node wrappers missing from output:\n%s", out)
	}
	if !strings.Contains(out, "M 28 36 L 28 86") {
		t.Errorf("clipped edge path missing from output:\n%s", out)
	}
	svgs := findElements(t, out, "svg")
	// Node content rect sits at padding offset 8; second node starts at
	// rank offset 86.
	if got, _ := svgs[0].Attr("", "viewBox"); got != "8 8 40 106" {
		t.Errorf("viewBox = %q, want 8 8 40 106", got)
	}
}

func TestCompileFile(t *testing.T) {
	files := memLoader{
		"doc.xml": `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/></d:diagram>`,
	}
	out, err := testCompiler(files).CompileFile("doc.xml")
	if err != nil {
		t.Fatalf("CompileFile() error = %v", err)
	}
	if !strings.Contains(out, `viewBox="0 0 10 10"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}
