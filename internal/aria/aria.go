// Package aria is the default accessibility-tree extractor: it walks a
// page's HTML with goquery and renders a YAML-like snapshot annotated with
// [ref=eN] markers, alongside the CSS-selector map the registry's ref
// resolver uses to locate the same elements for interaction.
package aria

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const interactableSelector = `a[href], button, input, select, textarea, [role], [onclick], [contenteditable]`

// Extractor produces accessibility snapshots from raw HTML.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Snapshot walks htmlContent and returns a textual accessibility snapshot
// plus the ref→CSS-selector map used to resolve refs back to elements.
func (e *Extractor) Snapshot(htmlContent string) (string, map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", nil, fmt.Errorf("aria: parse document: %w", err)
	}

	refs := make(map[string]string)
	var lines []string

	doc.Find(interactableSelector).Each(func(i int, s *goquery.Selection) {
		ref := fmt.Sprintf("e%d", i+1)
		role := elementRole(s)
		name := accessibleName(s)

		line := fmt.Sprintf("- %s %q [ref=%s]", role, name, ref)
		if _, hasDisabled := s.Attr("disabled"); hasDisabled || s.AttrOr("aria-disabled", "") == "true" {
			line += " (disabled)"
		}
		lines = append(lines, line)

		if node := s.Get(0); node != nil {
			refs[ref] = cssPath(node)
		}
	})

	if len(lines) == 0 {
		return "(no interactable elements found)", refs, nil
	}
	return strings.Join(lines, "\n"), refs, nil
}

var inputRoles = map[string]string{
	"checkbox": "checkbox",
	"radio":    "radio",
	"submit":   "button",
	"button":   "button",
	"reset":    "button",
	"range":    "slider",
}

func elementRole(s *goquery.Selection) string {
	if role, ok := s.Attr("role"); ok && role != "" {
		return role
	}

	tag := goquery.NodeName(s)
	switch tag {
	case "a":
		return "link"
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "input":
		typ := strings.ToLower(s.AttrOr("type", "text"))
		if role, ok := inputRoles[typ]; ok {
			return role
		}
		return "textbox"
	default:
		return tag
	}
}

func accessibleName(s *goquery.Selection) string {
	if label, ok := s.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return normalize(label)
	}
	if text := normalize(s.Text()); text != "" {
		return text
	}
	if placeholder, ok := s.Attr("placeholder"); ok && placeholder != "" {
		return normalize(placeholder)
	}
	if value, ok := s.Attr("value"); ok && value != "" {
		return normalize(value)
	}
	if alt, ok := s.Attr("alt"); ok && alt != "" {
		return normalize(alt)
	}
	if title, ok := s.Attr("title"); ok && title != "" {
		return normalize(title)
	}
	return ""
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cssPath builds a selector path from the document root down to n, using
// tag:nth-of-type(k) segments so each path uniquely identifies one node
// without relying on ids or classes being present.
func cssPath(n *html.Node) string {
	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		index := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == cur.Data {
				index++
			}
		}
		segments = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", cur.Data, index)}, segments...)
		if cur.Data == "html" {
			break
		}
	}
	return strings.Join(segments, " > ")
}
