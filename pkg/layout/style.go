package layout

import (
	"regexp"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dsl"
)

// DefaultFontFamily is used when no family is declared anywhere on the
// text's inheritance chain.
const DefaultFontFamily = "sans-serif"

// DefaultFontSize is the font size assumed when nothing declares one.
const DefaultFontSize = 16.0

// StyleRule is one class selector's declarations extracted from a
// <style> element. Only simple class selectors are honored.
type StyleRule struct {
	Class        string
	Declarations map[string]string
}

var (
	cssRuleRe     = regexp.MustCompile(`([^{}]+)\{([^{}]*)\}`)
	cssClassRe    = regexp.MustCompile(`\.([A-Za-z_][A-Za-z0-9_-]*)`)
	fontSizeRe    = regexp.MustCompile(`font-size:\s*([0-9.]+)`)
	fontFamilyRe  = regexp.MustCompile(`font-family:\s*([^;]+)`)
	whitespaceSet = " \t\n\r"
)

// CollectStyleRules extracts class rules from every <style> element in
// the tree. Rules keep document order so later rules win on conflict.
func CollectStyleRules(root *dsl.Element) []StyleRule {
	var rules []StyleRule
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.Local != "style" {
			return true
		}
		css := gatherText(e)
		for _, m := range cssRuleRe.FindAllStringSubmatch(css, -1) {
			decls := map[string]string{}
			for _, decl := range strings.Split(m[2], ";") {
				key, value, ok := strings.Cut(decl, ":")
				if !ok {
					continue
				}
				key = strings.ToLower(strings.TrimSpace(key))
				value = strings.TrimSpace(value)
				if key != "" && value != "" {
					decls[key] = value
				}
			}
			if len(decls) == 0 {
				continue
			}
			for _, selector := range strings.Split(m[1], ",") {
				for _, cm := range cssClassRe.FindAllStringSubmatch(selector, -1) {
					copied := make(map[string]string, len(decls))
					for k, v := range decls {
						copied[k] = v
					}
					rules = append(rules, StyleRule{Class: cm[1], Declarations: copied})
				}
			}
		}
		return true
	})
	return rules
}

// classStyleValue resolves a property from the element's class list,
// last matching rule wins.
func classStyleValue(e *dsl.Element, rules []StyleRule, prop string) string {
	classAttr, _ := e.Attr("", "class")
	if classAttr == "" {
		return ""
	}
	classes := map[string]bool{}
	for _, c := range strings.Fields(classAttr) {
		classes[c] = true
	}
	resolved := ""
	for _, rule := range rules {
		if classes[rule.Class] {
			if v, ok := rule.Declarations[prop]; ok {
				resolved = v
			}
		}
	}
	return resolved
}

// fontSize resolves the effective font size of a text element from its
// font-size attribute, inline style, or class rules.
func fontSize(e *dsl.Element, rules []StyleRule) float64 {
	if v, ok := e.Attr("", "font-size"); ok {
		if n, ok := dsl.ParseLength(v); ok {
			return n
		}
		return DefaultFontSize
	}
	if style, ok := e.Attr("", "style"); ok {
		if m := fontSizeRe.FindStringSubmatch(style); m != nil {
			if n, ok := dsl.ParseLength(m[1]); ok {
				return n
			}
		}
	}
	if v := classStyleValue(e, rules, "font-size"); v != "" {
		if n, ok := dsl.ParseLength(v); ok {
			return n
		}
	}
	return DefaultFontSize
}

// fontInfo resolves the declared font family and font path of an
// element without applying inheritance; empty strings mean undeclared.
func fontInfo(e *dsl.Element, ns string, rules []StyleRule) (family, path string) {
	path, _ = e.Attr(ns, "font-path")
	family, _ = e.Attr("", "font-family")
	if family == "" {
		family, _ = e.Attr(ns, "font-family")
	}
	if family == "" {
		if style, ok := e.Attr("", "style"); ok {
			if m := fontFamilyRe.FindStringSubmatch(style); m != nil {
				family = m[1]
			}
		}
	}
	if family == "" {
		family = classStyleValue(e, rules, "font-family")
	}
	family = stripQuotes(strings.Trim(family, whitespaceSet))
	return family, path
}

// FontInfo exposes fontInfo to callers outside the engine; the compiler
// uses it to read the document root's font declaration.
func FontInfo(e *dsl.Element, ns string, rules []StyleRule) (family, path string) {
	return fontInfo(e, ns, rules)
}

func stripQuotes(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// gatherText concatenates an element's text content including all
// descendants, trimmed at the outer edges.
func gatherText(e *dsl.Element) string {
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
	return strings.TrimSpace(b.String())
}
