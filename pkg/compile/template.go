package compile

import (
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
)

// maxTemplateDepth guards against templates that instantiate
// themselves, directly or via another template.
const maxTemplateDepth = 64

// registerSharedTemplates parses the compiler's shared template sources
// and registers their root-level definitions. Later sources shadow
// earlier ones; the caller layers local definitions on top.
func (c *Compiler) registerSharedTemplates(ns string, templates map[string][]*dsl.Element) error {
	for _, source := range c.sharedTemplates {
		root, err := dsl.ParseString(source)
		if err != nil {
			return errors.Wrap(errors.CodeTemplateArgs, err, "invalid shared template source")
		}
		if root.Space != ns || root.Local != "diagram" {
			return errors.New(errors.CodeTemplateArgs,
				"shared template source must use the document namespace and a <diagram> root")
		}
		collectTemplates(root, ns, templates)
	}
	return nil
}

// collectTemplates removes root-level template definitions from the
// tree and stores their bodies detached. Unnamed definitions are
// dropped like any other unknown DSL element.
func collectTemplates(root *dsl.Element, ns string, templates map[string][]*dsl.Element) {
	kept := root.Children[:0]
	for _, child := range root.Children {
		if child.Is(ns, "template") {
			name := strings.TrimSpace(child.AttrOr("", "name", ""))
			if name != "" {
				body := make([]*dsl.Element, len(child.Children))
				for i, el := range child.Children {
					body[i] = el.Clone()
				}
				templates[name] = body
			}
			continue
		}
		kept = append(kept, child)
	}
	root.Children = kept
}

// expandInstances replaces every instance element with its template
// body, recursively, so bodies may themselves contain or even be
// instances.
func expandInstances(node *dsl.Element, ns string, templates map[string][]*dsl.Element, depth int) error {
	var out []*dsl.Element
	for _, child := range node.Children {
		expanded, err := expandElement(child, ns, templates, depth)
		if err != nil {
			return err
		}
		out = append(out, expanded...)
	}
	node.Children = out
	return nil
}

// expandElement resolves one element: instances expand to their body
// (recursively), everything else keeps its place with its own children
// expanded.
func expandElement(el *dsl.Element, ns string, templates map[string][]*dsl.Element, depth int) ([]*dsl.Element, error) {
	if !el.Is(ns, "instance") {
		if err := expandInstances(el, ns, templates, depth); err != nil {
			return nil, err
		}
		return []*dsl.Element{el}, nil
	}
	if depth > maxTemplateDepth {
		return nil, errors.New(errors.CodeTemplateArgs,
			"template expansion exceeded depth %d (self-referencing template?)", maxTemplateDepth)
	}
	body, err := instantiate(el, ns, templates)
	if err != nil {
		return nil, err
	}
	var out []*dsl.Element
	for _, b := range body {
		expanded, err := expandElement(b, ns, templates, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// instantiate clones a template body for one instance: the instance's
// own attributes are applied on top of each top-level cloned element,
// then slot occurrences are spliced with the instance's param text.
func instantiate(instance *dsl.Element, ns string, templates map[string][]*dsl.Element) ([]*dsl.Element, error) {
	name := strings.TrimSpace(instance.AttrOr("", "template", ""))
	if name == "" {
		return nil, errors.New(errors.CodeTemplateArgs,
			"instance requires a non-empty template attribute")
	}
	body, ok := templates[name]
	if !ok {
		return nil, errors.New(errors.CodeTemplateUnknown,
			"instance references undefined template %q", name)
	}

	params := gatherParams(instance, ns)
	clones := make([]*dsl.Element, len(body))
	for i, el := range body {
		clone := el.Clone()
		for _, a := range instance.Attrs {
			if a.Space == "" && a.Local == "template" {
				continue
			}
			clone.SetAttr(a.Space, a.Local, a.Value)
		}
		applyParams(clone, params, ns)
		clones[i] = clone
	}
	return clones, nil
}

// gatherParams reads the instance's param children into a name->text
// map. Text content includes nested elements, trimmed.
func gatherParams(instance *dsl.Element, ns string) map[string]string {
	params := map[string]string{}
	for _, child := range instance.Children {
		if !child.Is(ns, "param") {
			continue
		}
		name := child.AttrOr("", "name", "")
		if name == "" {
			continue
		}
		params[name] = strings.TrimSpace(textContent(child))
	}
	return params
}

// applyParams splices slot elements with their param value (missing
// params splice the empty string) throughout the subtree.
func applyParams(node *dsl.Element, params map[string]string, ns string) {
	var kept []*dsl.Element
	for _, child := range node.Children {
		if child.Is(ns, "slot") {
			value := params[child.AttrOr("", "name", "")]
			if len(kept) == 0 {
				node.Text += value
			} else {
				kept[len(kept)-1].Tail += value
			}
			continue
		}
		applyParams(child, params, ns)
		kept = append(kept, child)
	}
	node.Children = kept
}

func textContent(e *dsl.Element) string {
	var b strings.Builder
	var rec func(*dsl.Element)
	rec = func(el *dsl.Element) {
		b.WriteString(el.Text)
		for _, c := range el.Children {
			rec(c)
			b.WriteString(c.Tail)
		}
	}
	rec(e)
	return b.String()
}
