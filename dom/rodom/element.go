package rodom

import (
	"fmt"
	"strconv"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/overlay/dom"
)

// Element adapts a rod element to dom.Element.
type Element struct {
	el  *rod.Element
	key string
}

// Rod exposes the wrapped element.
func (e *Element) Rod() *rod.Element { return e.el }

// Key is the CDP backend node id, stable for the lifetime of the node.
func (e *Element) Key() string {
	if e.key != "" {
		return e.key
	}
	node, err := e.el.Describe(0, false)
	if err != nil {
		return string(e.el.Object.ObjectID)
	}
	e.key = strconv.Itoa(int(node.BackendNodeID))
	return e.key
}

func (e *Element) str(js string, args ...any) string {
	res, err := e.el.Eval(js, args...)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (e *Element) call(op, js string, args ...any) error {
	if _, err := e.el.Eval(js, args...); err != nil {
		return fmt.Errorf("rodom: %s: %w", op, err)
	}
	return nil
}

func (e *Element) Tag() string {
	return e.str(`() => this.tagName.toLowerCase()`)
}

func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *Element) SetAttr(name, value string) error {
	return e.call("set attribute", `(n, v) => { if (this.getAttribute(n) !== v) this.setAttribute(n, v); }`, name, value)
}

func (e *Element) RemoveAttr(name string) error {
	return e.call("remove attribute", `(n) => { if (this.hasAttribute(n)) this.removeAttribute(n); }`, name)
}

func (e *Element) Text() string {
	return e.str(`() => this.textContent`)
}

func (e *Element) SetText(text string) error {
	return e.call("set text", `(t) => { if (this.textContent !== t) this.textContent = t; }`, text)
}

func (e *Element) Style(prop string) string {
	return e.str(`(p) => this.style.getPropertyValue(p)`, prop)
}

func (e *Element) SetStyle(prop, value string) error {
	return e.call("set style", `(p, v) => {
		if (v === '') { this.style.removeProperty(p); return; }
		if (this.style.getPropertyValue(p) !== v) this.style.setProperty(p, v);
	}`, prop, value)
}

func (e *Element) Parent() dom.Element {
	p, err := e.el.Parent()
	if err != nil || p == nil {
		return nil
	}
	return &Element{el: p}
}

func (e *Element) Matches(selector string) bool {
	ok, err := e.el.Matches(selector)
	return err == nil && ok
}

func (e *Element) Query(selector string) dom.Element {
	has, el, err := e.el.Has(selector)
	if err != nil || !has {
		return nil
	}
	return &Element{el: el}
}

func (e *Element) QueryAll(selector string) []dom.Element {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el})
	}
	return out
}

func (e *Element) Append(tag string) (dom.Element, error) {
	el, err := e.el.ElementByJS(rod.Eval(`(tag) => {
		const c = document.createElement(tag);
		this.appendChild(c);
		return c;
	}`, tag))
	if err != nil {
		return nil, fmt.Errorf("rodom: append %s: %w", tag, err)
	}
	return &Element{el: el}, nil
}

func (e *Element) Adopt(child dom.Element) error {
	ce, ok := child.(*Element)
	if !ok {
		return fmt.Errorf("rodom: adopt: foreign element %T", child)
	}
	return e.call("adopt", `(c) => { if (this.lastElementChild !== c) this.appendChild(c); }`, ce.el.Object)
}

func (e *Element) Remove() error {
	if err := e.el.Remove(); err != nil {
		return fmt.Errorf("rodom: remove: %w", err)
	}
	return nil
}

func (e *Element) Connected() bool {
	res, err := e.el.Eval(`() => this.isConnected`)
	return err == nil && res.Value.Bool()
}

func (e *Element) Bounds() (dom.Rect, bool) {
	res, err := e.el.Eval(`() => {
		const r = this.getBoundingClientRect();
		return {l: r.left, t: r.top, r: r.right, b: r.bottom};
	}`)
	if err != nil {
		return dom.Rect{}, false
	}
	v := res.Value
	return dom.Rect{Left: v.Get("l").Num(), Top: v.Get("t").Num(), Right: v.Get("r").Num(), Bottom: v.Get("b").Num()}, true
}
