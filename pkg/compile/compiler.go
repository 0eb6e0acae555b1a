// Package compile orchestrates the diagram pipeline: template
// expansion, include resolution, graph and flex layout, anchor and
// connector resolution, viewport calculation, and final serialization.
//
// A Compiler is stateless across invocations and safe for concurrent
// use; the only per-run mutable state (include stack, id registry)
// lives in values owned by a single Compile call.
package compile

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/layout"
	"github.com/diagramforge/diagramforge/pkg/metrics"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

// DefaultMaxIncludeDepth bounds the include recursion chain.
const DefaultMaxIncludeDepth = 10

// Options configures a Compiler. Zero values select defaults: OS file
// loading, the heuristic font measurer, a discarding logger, and the
// standard guardrails.
type Options struct {
	Loader   FileLoader
	Measurer metrics.Measurer
	Logger   *log.Logger

	MaxGraphNodes   int
	MaxGraphEdges   int
	MaxIncludeDepth int

	// NodeGap and RankGap replace the stock graph spacing when set;
	// per-graph node-gap and rank-gap attributes still win.
	NodeGap float64
	RankGap float64

	// DefaultPadding and DefaultBackground apply when the document
	// declares no padding or background of its own.
	DefaultPadding    float64
	DefaultBackground string

	// FontFamily and FontPath seed text measurement for documents that
	// declare no font anywhere on the root.
	FontFamily string
	FontPath   string

	// SharedTemplates are extra diagram documents whose root-level
	// template definitions are registered for every compile, including
	// recursively for included files. Local definitions shadow them.
	SharedTemplates []string
}

// Compiler converts diagram markup into plain SVG.
type Compiler struct {
	loader            FileLoader
	measurer          metrics.Measurer
	logger            *log.Logger
	graphOpts         layout.GraphOptions
	maxIncludeDepth   int
	defaultPadding    float64
	defaultBackground string
	fontFamily        string
	fontPath          string
	sharedTemplates   []string
}

// New builds a Compiler from options, filling in defaults.
func New(opts Options) *Compiler {
	if opts.Loader == nil {
		opts.Loader = OSLoader{}
	}
	if opts.Measurer == nil {
		opts.Measurer = metrics.Heuristic{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.MaxIncludeDepth == 0 {
		opts.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	return &Compiler{
		loader:   opts.Loader,
		measurer: opts.Measurer,
		logger:   opts.Logger,
		graphOpts: layout.GraphOptions{
			MaxNodes: opts.MaxGraphNodes,
			MaxEdges: opts.MaxGraphEdges,
			NodeGap:  opts.NodeGap,
			RankGap:  opts.RankGap,
		},
		maxIncludeDepth:   opts.MaxIncludeDepth,
		defaultPadding:    opts.DefaultPadding,
		defaultBackground: opts.DefaultBackground,
		fontFamily:        opts.FontFamily,
		fontPath:          opts.FontPath,
		sharedTemplates:   opts.SharedTemplates,
	}
}

// runContext is the per-invocation mutable state threaded through
// recursive include compiles.
type runContext struct {
	stack []string // canonical paths of the active include chain
	depth int
}

// Compile converts one document to SVG text. sourcePath anchors
// relative include resolution; empty means the current directory.
func (c *Compiler) Compile(source, sourcePath string) (string, error) {
	root, err := c.compileTree(source, sourcePath, runContext{})
	if err != nil {
		return "", err
	}
	return svg.Marshal(root), nil
}

// CompileFile loads and compiles a document from the loader.
func (c *Compiler) CompileFile(path string) (string, error) {
	canonical, err := c.loader.Canonicalize(path)
	if err != nil {
		canonical = path
	}
	source, err := c.loader.Load(canonical)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return c.Compile(source, canonical)
}

// compileTree runs the full pipeline and returns the resolved svg root
// element. Includes call back into it recursively with an extended run
// context.
func (c *Compiler) compileTree(source, sourcePath string, rc runContext) (*dsl.Element, error) {
	root, err := dsl.ParseString(source)
	if err != nil {
		return nil, err
	}
	ns := root.Space
	if ns == "" {
		return nil, errors.New(errors.CodeInvalidRoot,
			"document root must be bound to a DSL namespace")
	}
	if root.Local != "diagram" {
		return nil, errors.New(errors.CodeInvalidRoot,
			"document root must be <diagram> (got <%s>)", root.Local)
	}

	originalWidth := root.AttrOr("", "width", "")
	originalHeight := root.AttrOr("", "height", "")
	padding := c.defaultPadding
	if v, ok := root.Attr(ns, "padding"); ok {
		if n, ok := dsl.ParseLength(v); ok && n > 0 {
			padding = n
		}
	}

	templates := map[string][]*dsl.Element{}
	if err := c.registerSharedTemplates(ns, templates); err != nil {
		return nil, err
	}
	collectTemplates(root, ns, templates)
	if err := expandInstances(root, ns, templates, 0); err != nil {
		return nil, err
	}

	baseDir := "."
	if sourcePath != "" {
		baseDir = filepath.Dir(sourcePath)
	}
	hasIncludes, err := c.expandIncludes(root, ns, baseDir, rc)
	if err != nil {
		return nil, err
	}
	if err := checkUniqueIDs(root, ns, hasIncludes); err != nil {
		return nil, err
	}

	rules := layout.CollectStyleRules(root)
	engine := layout.NewEngine(ns, c.measurer, rules, c.logger)
	idState := layout.CollectIDState(root, ns)
	if err := engine.ExpandGraphs(root, idState, c.graphOpts); err != nil {
		return nil, err
	}

	anchors, err := collectAnchors(root, ns)
	if err != nil {
		return nil, err
	}
	arrows, err := collectArrows(root, ns)
	if err != nil {
		return nil, err
	}

	svgRoot := dsl.NewElement(dsl.SVGNamespace, "svg")
	copyRootAttrs(root, svgRoot, ns)

	rootFamily, rootPath := layout.FontInfo(root, ns, rules)
	if rootFamily == "" {
		rootFamily = c.fontFamily
	}
	if rootPath == "" {
		rootPath = c.fontPath
	}
	for _, child := range root.Children {
		r := engine.RenderDocumentChild(child, rootFamily, rootPath)
		if r.Element != nil {
			svgRoot.Append(r.Element)
		}
	}

	if len(anchors) > 0 || len(arrows) > 0 {
		if err := c.emitConnectors(svgRoot, arrows, anchors, rules); err != nil {
			return nil, err
		}
	}

	c.applyBounds(svgRoot, originalWidth, originalHeight, padding, rules)
	applyBackground(root, svgRoot, ns, c.defaultBackground)

	c.logger.Debug("compiled document",
		"source", sourcePath, "includes", hasIncludes,
		"anchors", len(anchors), "connectors", len(arrows))
	return svgRoot, nil
}

// checkUniqueIDs enforces global id uniqueness over the merged tree.
// The error code distinguishes collisions introduced by includes.
// Anchor ids are validated by the anchor resolver, which owns their
// collision semantics.
func checkUniqueIDs(root *dsl.Element, ns string, hasIncludes bool) error {
	seen := map[string]bool{}
	var dup string
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.Is(ns, "anchor") {
			return true
		}
		id := e.ID()
		if id == "" {
			return true
		}
		if seen[id] {
			dup = id
			return false
		}
		seen[id] = true
		return true
	})
	if dup == "" {
		return nil
	}
	if hasIncludes {
		return errors.New(errors.CodeIncludeIDCollision,
			"duplicate id %q found after include expansion", dup)
	}
	return errors.New(errors.CodeIDCollision, "duplicate id %q in document", dup)
}

// copyRootAttrs transfers the diagram root's attributes to the svg root,
// dropping DSL-namespaced ones and namespace prefixes.
func copyRootAttrs(src, dst *dsl.Element, ns string) {
	for _, a := range src.Attrs {
		if a.Space == ns {
			continue
		}
		dst.SetAttr("", a.Local, a.Value)
	}
}
