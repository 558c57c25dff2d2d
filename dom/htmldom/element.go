package htmldom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/overlay/dom"
)

// Element wraps an element node.
type Element struct {
	n *html.Node
}

func wrap(n *html.Node) *Element { return &Element{n: n} }

// Node exposes the underlying node.
func (e *Element) Node() *html.Node { return e.n }

func (e *Element) Key() string { return fmt.Sprintf("%p", e.n) }

func (e *Element) Tag() string { return e.n.Data }

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) SetAttr(name, value string) error {
	for i, a := range e.n.Attr {
		if a.Key == name {
			e.n.Attr[i].Val = value
			return nil
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

func (e *Element) RemoveAttr(name string) error {
	attrs := e.n.Attr[:0]
	for _, a := range e.n.Attr {
		if a.Key != name {
			attrs = append(attrs, a)
		}
	}
	e.n.Attr = attrs
	return nil
}

func (e *Element) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.n)
	return b.String()
}

func (e *Element) SetText(text string) error {
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

func (e *Element) Style(prop string) string {
	raw, _ := e.Attr("style")
	for _, d := range parseStyle(raw) {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

func (e *Element) SetStyle(prop, value string) error {
	raw, _ := e.Attr("style")
	decls := parseStyle(raw)
	found := false
	out := decls[:0]
	for _, d := range decls {
		if d.prop == prop {
			found = true
			if value == "" {
				continue
			}
			d.value = value
		}
		out = append(out, d)
	}
	if !found && value != "" {
		out = append(out, decl{prop: prop, value: value})
	}
	if len(out) == 0 {
		return e.RemoveAttr("style")
	}
	return e.SetAttr("style", formatStyle(out))
}

func (e *Element) Parent() dom.Element {
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return wrap(p)
}

func (e *Element) Matches(selector string) bool {
	sel := compile(selector)
	return sel != nil && sel.Match(e.n)
}

func (e *Element) Query(selector string) dom.Element {
	for _, el := range e.QueryAll(selector) {
		return el
	}
	return nil
}

func (e *Element) QueryAll(selector string) []dom.Element {
	sel := compile(selector)
	if sel == nil {
		return nil
	}
	var out []dom.Element
	for _, n := range sel.MatchAll(e.n) {
		if n == e.n {
			continue
		}
		out = append(out, wrap(n))
	}
	return out
}

func (e *Element) Append(tag string) (dom.Element, error) {
	c := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	e.n.AppendChild(c)
	return wrap(c), nil
}

func (e *Element) Adopt(child dom.Element) error {
	ce, ok := child.(*Element)
	if !ok {
		return fmt.Errorf("htmldom: adopt: foreign element %T", child)
	}
	if ce.n.Parent != nil {
		ce.n.Parent.RemoveChild(ce.n)
	}
	e.n.AppendChild(ce.n)
	return nil
}

func (e *Element) Remove() error {
	if e.n.Parent != nil {
		e.n.Parent.RemoveChild(e.n)
	}
	return nil
}

func (e *Element) Connected() bool {
	n := e.n
	for n.Parent != nil {
		n = n.Parent
	}
	return n.Type == html.DocumentNode
}

func (e *Element) Bounds() (dom.Rect, bool) { return dom.Rect{}, false }

// OuterHTML renders the element, for tests.
func (e *Element) OuterHTML() string {
	var buf bytes.Buffer
	_ = html.Render(&buf, e.n)
	return buf.String()
}

type decl struct {
	prop, value string
}

func parseStyle(raw string) []decl {
	var out []decl
	for _, part := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" {
			continue
		}
		out = append(out, decl{prop: strings.ToLower(k), value: v})
	}
	return out
}

func formatStyle(decls []decl) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.value
	}
	return strings.Join(parts, "; ") + ";"
}
