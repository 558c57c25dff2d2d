package annotate

import (
	"github.com/hazyhaar/overlay/dom"
)

// Matcher evaluates an ordered rule list against a subtree.
type Matcher struct {
	rules []*Rule
}

// NewMatcher creates a Matcher. Rule order is priority order.
func NewMatcher(rules ...*Rule) *Matcher {
	return &Matcher{rules: rules}
}

// Rules returns the rule list.
func (m *Matcher) Rules() []*Rule { return m.rules }

// FindSubjects returns every subject at or below root. An element can be a
// subject of several rules; each (element, rule) pair is returned once.
func (m *Matcher) FindSubjects(root dom.Element) []Subject {
	if root == nil || dom.IsInjected(root) {
		return nil
	}
	seen := make(map[string]bool)
	var out []Subject
	add := func(s Subject) {
		k := s.Key()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, s)
	}
	for _, r := range m.rules {
		if s, ok := r.Resolve(root); ok {
			add(s)
		}
		for _, el := range root.QueryAll(r.Resolver.Selector()) {
			if dom.IsInjected(el) {
				continue
			}
			if s, ok := r.Resolve(el); ok {
				add(s)
			}
		}
	}
	return out
}

// FindKind is FindSubjects restricted to one kind.
func (m *Matcher) FindKind(root dom.Element, kind Kind) []Subject {
	var out []Subject
	for _, s := range m.FindSubjects(root) {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// ResolveNearest walks from el towards root and returns the subjects of the
// first element that resolves under any rule. It returns nothing when the
// walk crosses injected output or leaves the document without meeting root.
func (m *Matcher) ResolveNearest(el, root dom.Element) []Subject {
	if root == nil {
		return nil
	}
	rootKey := root.Key()
	var found []Subject
	for e := el; e != nil; e = e.Parent() {
		if _, ok := e.Attr(dom.InjectedAttr); ok {
			return nil
		}
		if found == nil {
			for _, r := range m.rules {
				if s, ok := r.Resolve(e); ok {
					found = append(found, s)
				}
			}
		}
		if e.Key() == rootKey {
			return found
		}
	}
	return nil
}

// Invalidate forwards a change to every caching resolver.
func (m *Matcher) Invalidate(el dom.Element) {
	for _, r := range m.rules {
		if inv, ok := r.Resolver.(Invalidator); ok {
			inv.Invalidate(el)
		}
	}
}

// Reset clears every resolver cache.
func (m *Matcher) Reset() {
	for _, r := range m.rules {
		if inv, ok := r.Resolver.(Invalidator); ok {
			inv.Reset()
		}
	}
}
