package annotate

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/overlay/dom"
)

// ActionAttr names the action a click or hover on an injected control
// reports through the page bridge.
const ActionAttr = dom.AttrPrefix + "action"

// inject appends a marked element to parent.
func inject(parent dom.Element, tag, class string) (dom.Element, error) {
	el, err := parent.Append(tag)
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", tag, err)
	}
	if err := el.SetAttr(dom.InjectedAttr, ""); err != nil {
		return nil, err
	}
	if class != "" {
		if err := el.SetAttr("class", class); err != nil {
			return nil, err
		}
	}
	return el, nil
}

// ownInjected returns the injected element directly owned by el that
// matches class, or nil.
func ownInjected(el dom.Element, class string) dom.Element {
	key := el.Key()
	for _, c := range el.QueryAll("." + class + "[" + dom.InjectedAttr + "]") {
		if p := c.Parent(); p != nil && p.Key() == key {
			return c
		}
	}
	return nil
}

// HostText is el's text content without the text of injected nodes.
func HostText(el dom.Element) string {
	text := el.Text()
	for _, inj := range el.QueryAll("[" + dom.InjectedAttr + "]") {
		if p := inj.Parent(); p != nil && dom.IsInjected(p) {
			continue
		}
		text = strings.Replace(text, inj.Text(), "", 1)
	}
	return strings.TrimSpace(text)
}

// setAttr writes an attribute only when it differs.
func setAttr(el dom.Element, name, value string) error {
	if cur, ok := el.Attr(name); ok && cur == value {
		return nil
	}
	return el.SetAttr(name, value)
}

// setStyle writes a style property only when it differs.
func setStyle(el dom.Element, prop, value string) error {
	if el.Style(prop) == value {
		return nil
	}
	return el.SetStyle(prop, value)
}

// setText writes text only when it differs.
func setText(el dom.Element, text string) error {
	if el.Text() == text {
		return nil
	}
	return el.SetText(text)
}
