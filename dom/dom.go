// Package dom defines the capabilities overlay needs from a host document
// it does not own. Two backends implement it: htmldom (an in-memory tree,
// used offline and in tests) and rodom (a live Chrome page driven over CDP).
//
// Reads never fail: a node that vanished or cannot be queried reads as
// empty, which callers treat as "not a subject". Writes return errors so the
// caller can log them.
package dom

// InjectedAttr marks every node created by an annotator. Matchers skip
// anything at or below such a node so that injected output is never
// mistaken for host content.
const InjectedAttr = "data-ovl-injected"

// AttrPrefix is the namespace of all attributes written by overlay.
const AttrPrefix = "data-ovl-"

// Element is a handle on a host element. Handles are not owned: the host
// page may remove the element at any time.
type Element interface {
	// Key identifies the underlying node. Two handles on the same node
	// return the same key.
	Key() string
	Tag() string
	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	RemoveAttr(name string) error
	// Text is the concatenated text content of the subtree.
	Text() string
	// SetText replaces all children with a single text node.
	SetText(text string) error
	Style(prop string) string
	SetStyle(prop, value string) error
	Parent() Element
	Matches(selector string) bool
	Query(selector string) Element
	QueryAll(selector string) []Element
	// Append creates a child element with the given tag as last child.
	Append(tag string) (Element, error)
	// Adopt moves an existing element to be the last child of this one.
	Adopt(child Element) error
	Remove() error
	Connected() bool
	// Bounds reports the layout box in viewport coordinates. Backends
	// without layout return false.
	Bounds() (Rect, bool)
}

// Document is the host page.
type Document interface {
	URL() string
	Root() Element
	Query(selector string) Element
	// ElementByXPath resolves a path produced by the bridge script.
	ElementByXPath(xpath string) Element
	// InjectStyle installs or replaces a stylesheet identified by id.
	InjectStyle(id, css string) error
	RemoveStyle(id string) error
	Viewport() Viewport
	// Notify shows a short message to the user of the page.
	Notify(msg string) error
}

// Rect is a layout box in CSS pixels.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Width of the box.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height of the box.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Viewport is the visible window size in CSS pixels.
type Viewport struct {
	Width, Height float64
}

// IsInjected reports whether el or one of its ancestors was created by an
// annotator.
func IsInjected(el Element) bool {
	for e := el; e != nil; e = e.Parent() {
		if _, ok := e.Attr(InjectedAttr); ok {
			return true
		}
	}
	return false
}

// Contains reports whether el is root or a descendant of root.
func Contains(root, el Element) bool {
	if root == nil {
		return false
	}
	key := root.Key()
	for e := el; e != nil; e = e.Parent() {
		if e.Key() == key {
			return true
		}
	}
	return false
}

// QueryHost returns the first descendant of el matching selector that was
// not created by an annotator, or nil.
func QueryHost(el Element, selector string) Element {
	for _, c := range el.QueryAll(selector) {
		if !IsInjected(c) {
			return c
		}
	}
	return nil
}

// Closest returns the nearest inclusive ancestor of el matching selector.
func Closest(el Element, selector string) Element {
	for e := el; e != nil; e = e.Parent() {
		if e.Matches(selector) {
			return e
		}
	}
	return nil
}
