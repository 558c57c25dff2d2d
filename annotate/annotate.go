// Package annotate finds subjects in a host document and decorates them.
//
// A Rule pairs a Resolver, which decides whether an element is a subject,
// with an Annotator, which applies the derived presentation. Annotators are
// idempotent: the source value they rendered is fingerprinted in a
// data-ovl-* attribute on the subject and an unchanged value produces no
// writes at all, which is what stops the mutation feedback loop.
package annotate

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/overlay/dom"
)

// Kind classifies a subject.
type Kind string

const (
	KindSignal   Kind = "signal"
	KindCurrency Kind = "currency"
	KindCopy     Kind = "copy"
	KindStatus   Kind = "status"
)

// Subject is a host element selected for annotation.
type Subject struct {
	El   dom.Element
	Kind Kind
	// Label is resolver context: measure name, column header, item label.
	Label string
	// Source is the element whose text is the subject's value. Nil means El.
	Source dom.Element
	Rule   *Rule
}

// Key identifies the subject within a pending set.
func (s Subject) Key() string {
	name := ""
	if s.Rule != nil {
		name = s.Rule.Name
	}
	return s.El.Key() + "/" + name
}

// SourceEl returns the element holding the subject's value.
func (s Subject) SourceEl() dom.Element {
	if s.Source != nil {
		return s.Source
	}
	return s.El
}

// Resolver decides whether an element is a subject.
type Resolver interface {
	// Selector lists candidate elements for subtree scans.
	Selector() string
	// TryResolve returns the subject rooted at el, if any.
	TryResolve(el dom.Element) (Subject, bool)
}

// Invalidator is implemented by resolvers that cache derived structure.
type Invalidator interface {
	// Invalidate drops cached state affected by a change at el.
	Invalidate(el dom.Element)
	// Reset drops all cached state.
	Reset()
}

// Annotator applies a presentation to a subject.
type Annotator interface {
	Annotate(s Subject) error
}

// Styler is implemented by annotators that need page CSS.
type Styler interface {
	CSS() string
}

// Installer is implemented by annotators that add page-level controls.
type Installer interface {
	Install(doc dom.Document) error
	Uninstall(doc dom.Document) error
}

// Action is a user interaction reported by the page.
type Action struct {
	Name     string
	Target   dom.Element
	Modifier bool
	Value    string
	// Claim is shared by the watchers of one tab receiving the same action.
	// When set, only the first watcher able to handle it does.
	Claim *atomic.Bool
}

// Clipboard writes text to a clipboard.
type Clipboard interface {
	Write(ctx context.Context, text string) error
}

// Env carries the loop services an Actor may use.
type Env struct {
	Doc       dom.Document
	Clipboard Clipboard
	// After runs fn on the owning loop once d has elapsed.
	After func(d time.Duration, fn func())
	// Refresh re-annotates every subject of the given kind.
	Refresh func(kind Kind)
	Logger  *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e Env) after(d time.Duration, fn func()) {
	if e.After == nil {
		time.AfterFunc(d, fn)
		return
	}
	e.After(d, fn)
}

// Actor is implemented by annotators that react to page actions.
type Actor interface {
	Actions() []string
	Act(ctx context.Context, a Action, env Env) error
}

// Rule binds a resolver to an annotator.
type Rule struct {
	Name      string
	Kind      Kind
	Resolver  Resolver
	Annotator Annotator
}

// Resolve runs the rule's resolver and stamps the result.
func (r *Rule) Resolve(el dom.Element) (Subject, bool) {
	s, ok := r.Resolver.TryResolve(el)
	if !ok {
		return Subject{}, false
	}
	s.Kind = r.Kind
	s.Rule = r
	return s, true
}
