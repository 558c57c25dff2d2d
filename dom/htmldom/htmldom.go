// Package htmldom implements the dom capabilities on an in-memory
// golang.org/x/net/html tree. It has no layout engine and no event loop:
// it backs the offline render mode and the package tests.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/overlay/dom"
)

// Document is a parsed HTML document.
type Document struct {
	node     *html.Node
	url      string
	viewport dom.Viewport

	mu      sync.Mutex
	notices []string
}

// Parse reads an HTML document. url is reported by URL() and used for
// profile matching.
func Parse(r io.Reader, url string) (*Document, error) {
	n, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	return &Document{node: n, url: url, viewport: dom.Viewport{Width: 1280, Height: 800}}, nil
}

// MustParseString parses s and panics on error. Intended for tests.
func MustParseString(s, url string) *Document {
	d, err := Parse(strings.NewReader(s), url)
	if err != nil {
		panic(err)
	}
	return d
}

// SetURL changes the reported location, as a client-side router would.
func (d *Document) SetURL(url string) { d.url = url }

// SetViewport changes the reported window size.
func (d *Document) SetViewport(vp dom.Viewport) { d.viewport = vp }

func (d *Document) URL() string { return d.url }

func (d *Document) Root() dom.Element {
	for c := d.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return wrap(c)
		}
	}
	return nil
}

func (d *Document) Query(selector string) dom.Element {
	sel := compile(selector)
	if sel == nil {
		return nil
	}
	if n := sel.MatchFirst(d.node); n != nil {
		return wrap(n)
	}
	return nil
}

// ElementByXPath resolves absolute paths of the form
// /html/body/div[2]/span[1] and ignores a trailing text() step.
func (d *Document) ElementByXPath(xpath string) dom.Element {
	cur := d.node
	for _, step := range strings.Split(strings.Trim(xpath, "/"), "/") {
		if step == "" || strings.HasPrefix(step, "text()") {
			continue
		}
		tag, idx := step, 1
		if i := strings.IndexByte(step, '['); i >= 0 && strings.HasSuffix(step, "]") {
			n, err := strconv.Atoi(step[i+1 : len(step)-1])
			if err != nil {
				return nil
			}
			tag, idx = step[:i], n
		}
		var next *html.Node
		seen := 0
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && strings.EqualFold(c.Data, tag) {
				seen++
				if seen == idx {
					next = c
					break
				}
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	if cur == d.node {
		return nil
	}
	return wrap(cur)
}

func (d *Document) InjectStyle(id, css string) error {
	head := d.Query("head")
	if head == nil {
		return fmt.Errorf("htmldom: no head element")
	}
	if existing := d.Query("style#" + id); existing != nil {
		return existing.SetText(css)
	}
	st, err := head.Append("style")
	if err != nil {
		return err
	}
	if err := st.SetAttr("id", id); err != nil {
		return err
	}
	return st.SetText(css)
}

func (d *Document) RemoveStyle(id string) error {
	if existing := d.Query("style#" + id); existing != nil {
		return existing.Remove()
	}
	return nil
}

func (d *Document) Viewport() dom.Viewport { return d.viewport }

func (d *Document) Notify(msg string) error {
	d.mu.Lock()
	d.notices = append(d.notices, msg)
	d.mu.Unlock()
	return nil
}

// Notices returns the messages passed to Notify.
func (d *Document) Notices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.notices...)
}

// Render serialises the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.node)
}

// String renders the document, for tests and diffs.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = html.Render(&buf, d.node)
	return buf.String()
}

var selectorCache sync.Map // string → cascadia.Selector (nil for invalid)

func compile(selector string) cascadia.Selector {
	if v, ok := selectorCache.Load(selector); ok {
		sel, _ := v.(cascadia.Selector)
		return sel
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		selectorCache.Store(selector, cascadia.Selector(nil))
		return nil
	}
	selectorCache.Store(selector, sel)
	return sel
}
