// Package reconcile keeps an annotation layer consistent with a live host
// document.
//
// A Watcher is a small state machine. While Inactive it does nothing.
// When the page is relevant it enters Discovering and polls for its root
// container with exponential backoff. Once the root is found it is Active:
// it injects the stylesheet, scans the root once, and from then on turns
// each mutation batch into a set of pending subjects that is flushed after
// a short window. It never rescans the whole document for a mutation.
//
// All work happens on the goroutine running Run. Other goroutines talk to
// the watcher through Observe, Navigate, Act, Refresh and Do.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/dom"
)

// State of a Watcher.
type State int

const (
	Inactive State = iota
	Discovering
	Active
)

func (s State) String() string {
	switch s {
	case Discovering:
		return "discovering"
	case Active:
		return "active"
	default:
		return "inactive"
	}
}

// StyleID is the default id of the stylesheet a watcher injects.
const StyleID = "ovl-style"

// Config for a Watcher.
type Config struct {
	// RootSelector locates the container to observe. Default: "body".
	RootSelector string
	// Relevant reports whether a URL is one the rules apply to. Nil means
	// every URL.
	Relevant func(url string) bool
	// CSS is page CSS added to the annotators' own.
	CSS string
	// StyleID identifies the injected stylesheet. Default: StyleID.
	StyleID string
	// FlushDelay is the batching window. Default: 50ms.
	FlushDelay time.Duration
	// MaxPending flushes immediately at this many pending subjects.
	// Default: 1000.
	MaxPending int
	// ProbeMin and ProbeMax bound the root-discovery backoff.
	// Defaults: 100ms and 5s.
	ProbeMin  time.Duration
	ProbeMax  time.Duration
	Clipboard annotate.Clipboard
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.RootSelector == "" {
		c.RootSelector = "body"
	}
	if c.StyleID == "" {
		c.StyleID = StyleID
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = 50 * time.Millisecond
	}
	if c.MaxPending <= 0 {
		c.MaxPending = 1000
	}
	if c.ProbeMin <= 0 {
		c.ProbeMin = 100 * time.Millisecond
	}
	if c.ProbeMax <= 0 {
		c.ProbeMax = 5 * time.Second
	}
	if c.ProbeMax < c.ProbeMin {
		c.ProbeMax = c.ProbeMin
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats are counters exposed to the admin surfaces.
type Stats struct {
	State     string    `json:"state"`
	URL       string    `json:"url"`
	Pending   int       `json:"pending"`
	Flushes   int       `json:"flushes"`
	Annotated int       `json:"annotated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Probes    int       `json:"probes"`
	LastFlush time.Time `json:"last_flush,omitempty"`
}

// Watcher reconciles one document.
type Watcher struct {
	cfg     Config
	doc     dom.Document
	matcher *annotate.Matcher
	logger  *slog.Logger

	ctx   context.Context
	inbox chan func()
	done  chan struct{}

	// Loop-owned state.
	state State
	url   string
	root  dom.Element
	batch *batcher
	probe *prober

	statsMu sync.Mutex
	stats   Stats
}

// New creates an inactive Watcher. Call Run, then Navigate.
func New(doc dom.Document, matcher *annotate.Matcher, cfg Config) *Watcher {
	cfg.defaults()
	return &Watcher{
		cfg:     cfg,
		doc:     doc,
		matcher: matcher,
		logger:  cfg.Logger,
		ctx:     context.Background(),
		inbox:   make(chan func(), 256),
		done:    make(chan struct{}),
		batch:   newBatcher(cfg.FlushDelay, cfg.MaxPending),
		probe:   newProber(cfg.ProbeMin, cfg.ProbeMax),
	}
}

// Run is the watcher loop. It returns when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	defer close(w.done)
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case fn := <-w.inbox:
			fn()

		case <-w.batch.timerC():
			w.flush()

		case <-w.probe.timerC():
			w.probe.fired()
			w.discover()
		}
	}
}

// Do runs fn on the watcher loop. It drops fn once the loop has exited.
func (w *Watcher) Do(fn func()) {
	select {
	case w.inbox <- fn:
	case <-w.done:
	}
}

// Observe queues a mutation batch.
func (w *Watcher) Observe(changes []Change) {
	w.Do(func() { w.handleChanges(changes) })
}

// Navigate reports the current location of the page.
func (w *Watcher) Navigate(url string) {
	w.Do(func() { w.navigate(url) })
}

// Act dispatches a user action reported by the page.
func (w *Watcher) Act(a annotate.Action) {
	w.Do(func() { w.act(a) })
}

// Refresh re-annotates every subject of kind, for example after the rate
// or the display mode changed.
func (w *Watcher) Refresh(kind annotate.Kind) {
	w.Do(func() { w.refresh(kind) })
}

// SetCSS replaces the page CSS, restyling the page at once when active.
func (w *Watcher) SetCSS(css string) {
	w.Do(func() {
		w.cfg.CSS = css
		if w.state == Active {
			w.injectStyle()
		}
	})
}

// Stats returns a copy of the counters.
func (w *Watcher) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

func (w *Watcher) updateStats(fn func(*Stats)) {
	w.statsMu.Lock()
	fn(&w.stats)
	w.stats.State = w.state.String()
	w.stats.URL = w.url
	w.stats.Pending = w.batch.len()
	w.statsMu.Unlock()
}

// navigate applies the relevance predicate to a new location.
func (w *Watcher) navigate(url string) {
	w.url = url
	relevant := w.cfg.Relevant == nil || w.cfg.Relevant(url)
	switch {
	case !relevant:
		if w.state != Inactive {
			w.logger.Info("watcher: page no longer relevant", "url", url)
			w.deactivate()
		}
	case w.state == Active && w.root.Connected():
		// Same root survives client-side routing.
	default:
		if w.state == Active {
			w.deactivate()
		}
		w.startDiscovery()
	}
	w.updateStats(func(*Stats) {})
}

// startDiscovery cancels any pending probe and starts a new backoff cycle
// with an immediate attempt.
func (w *Watcher) startDiscovery() {
	w.probe.start()
	w.state = Discovering
	w.discover()
}

func (w *Watcher) discover() {
	if w.state != Discovering {
		return
	}
	w.updateStats(func(s *Stats) { s.Probes++ })
	if root := w.doc.Query(w.cfg.RootSelector); root != nil {
		w.activate(root)
		return
	}
	d := w.probe.next()
	w.logger.Debug("watcher: root not found, retrying", "selector", w.cfg.RootSelector, "in", d)
}

func (w *Watcher) activate(root dom.Element) {
	w.probe.stop()
	w.state = Active
	w.root = root
	w.matcher.Reset()

	w.injectStyle()
	w.install()

	subjects := w.matcher.FindSubjects(root)
	w.logger.Info("watcher: active", "url", w.url, "root", w.cfg.RootSelector, "subjects", len(subjects))
	for _, s := range subjects {
		w.enqueue(s)
	}
	w.updateStats(func(*Stats) {})
}

func (w *Watcher) injectStyle() {
	css := w.css()
	var err error
	if css == "" {
		err = w.doc.RemoveStyle(w.cfg.StyleID)
	} else {
		err = w.doc.InjectStyle(w.cfg.StyleID, css)
	}
	if err != nil {
		w.logger.Warn("watcher: inject style", "error", err)
	}
}

func (w *Watcher) deactivate() {
	w.probe.stop()
	w.batch.take()
	w.matcher.Reset()
	if w.state == Active {
		for _, inst := range w.installers() {
			if err := inst.Uninstall(w.doc); err != nil {
				w.logger.Debug("watcher: uninstall", "error", err)
			}
		}
		if err := w.doc.RemoveStyle(w.cfg.StyleID); err != nil {
			w.logger.Debug("watcher: remove style", "error", err)
		}
	}
	w.state = Inactive
	w.root = nil
	w.updateStats(func(*Stats) {})
}

func (w *Watcher) shutdown() {
	w.probe.stop()
	w.batch.stop()
}

// css gathers the annotators' stylesheets, once per annotator.
func (w *Watcher) css() string {
	var b strings.Builder
	seen := make(map[annotate.Styler]bool)
	for _, r := range w.matcher.Rules() {
		st, ok := r.Annotator.(annotate.Styler)
		if !ok || seen[st] {
			continue
		}
		seen[st] = true
		b.WriteString(st.CSS())
	}
	b.WriteString(w.cfg.CSS)
	return strings.TrimSpace(b.String())
}

func (w *Watcher) installers() []annotate.Installer {
	var out []annotate.Installer
	seen := make(map[annotate.Installer]bool)
	for _, r := range w.matcher.Rules() {
		inst, ok := r.Annotator.(annotate.Installer)
		if !ok || seen[inst] {
			continue
		}
		seen[inst] = true
		out = append(out, inst)
	}
	return out
}

func (w *Watcher) install() {
	for _, inst := range w.installers() {
		if err := inst.Install(w.doc); err != nil {
			w.logger.Warn("watcher: install", "error", err)
		}
	}
}

// handleChanges turns a mutation batch into pending subjects. Cost is
// proportional to the size of the changed regions.
func (w *Watcher) handleChanges(changes []Change) {
	if w.state != Active {
		return
	}
	if !w.root.Connected() {
		w.logger.Info("watcher: root left the document, rediscovering")
		w.deactivate()
		w.startDiscovery()
		return
	}
	for _, c := range changes {
		if c.Op == OpReset {
			w.logger.Info("watcher: document reset, rediscovering")
			w.deactivate()
			w.startDiscovery()
			return
		}
		if c.Node == nil || !dom.Contains(w.root, c.Node) {
			continue
		}
		switch c.Op {
		case OpInsert:
			if dom.IsInjected(c.Node) {
				continue
			}
			w.matcher.Invalidate(c.Node)
			for _, s := range w.matcher.FindSubjects(c.Node) {
				w.enqueue(s)
			}
			w.enqueueNearest(c.Node)
		case OpText:
			w.matcher.Invalidate(c.Node)
			w.enqueueNearest(c.Node)
		case OpAttr:
			if strings.HasPrefix(c.Name, dom.AttrPrefix) {
				continue
			}
			w.enqueueNearest(c.Node)
		case OpRemove:
			w.matcher.Invalidate(c.Node)
		}
	}
}

func (w *Watcher) enqueueNearest(el dom.Element) {
	for _, s := range w.matcher.ResolveNearest(el, w.root) {
		w.enqueue(s)
	}
}

func (w *Watcher) enqueue(s annotate.Subject) {
	if w.batch.add(s) {
		w.flush()
	}
}

// flush annotates the current pending set. Subjects queued while it runs
// belong to the next cycle.
func (w *Watcher) flush() {
	batch := w.batch.take()
	if len(batch) == 0 {
		return
	}
	var annotated, skipped, failed int
	for _, s := range batch {
		if !s.El.Connected() {
			skipped++
			continue
		}
		err := s.Rule.Annotator.Annotate(s)
		switch {
		case err == nil:
			annotated++
		case errors.Is(err, annotate.ErrUnsupportedFormat):
			skipped++
			w.logger.Debug("watcher: subject skipped", "rule", s.Rule.Name, "error", err)
		default:
			failed++
			w.logger.Warn("watcher: annotate", "rule", s.Rule.Name, "error", err)
		}
	}
	w.updateStats(func(st *Stats) {
		st.Flushes++
		st.Annotated += annotated
		st.Skipped += skipped
		st.Failed += failed
		st.LastFlush = time.Now()
	})
	w.logger.Debug("watcher: flushed", "subjects", len(batch), "annotated", annotated, "skipped", skipped, "failed", failed)
}

func (w *Watcher) refresh(kind annotate.Kind) {
	if w.state != Active {
		return
	}
	w.install()
	for _, s := range w.matcher.FindKind(w.root, kind) {
		w.enqueue(s)
	}
}

// act dispatches an action to the first annotator that handles it.
func (w *Watcher) act(a annotate.Action) {
	if w.state != Active {
		return
	}
	env := annotate.Env{
		Doc:       w.doc,
		Clipboard: w.cfg.Clipboard,
		After: func(d time.Duration, fn func()) {
			time.AfterFunc(d, func() { w.Do(fn) })
		},
		Refresh: w.refresh,
		Logger:  w.logger,
	}
	actor := w.actor(a.Name)
	if actor == nil {
		w.logger.Debug("watcher: unhandled action", "action", a.Name)
		return
	}
	if a.Claim != nil && !a.Claim.CompareAndSwap(false, true) {
		return
	}
	if err := actor.Act(w.ctx, a, env); err != nil {
		w.logger.Warn("watcher: action", "action", a.Name, "error", err)
	}
}

// actor returns the first annotator handling the named action.
func (w *Watcher) actor(name string) annotate.Actor {
	for _, r := range w.matcher.Rules() {
		actor, ok := r.Annotator.(annotate.Actor)
		if !ok {
			continue
		}
		for _, n := range actor.Actions() {
			if n == name {
				return actor
			}
		}
	}
	return nil
}

// String describes the watcher for logs.
func (w *Watcher) String() string {
	return fmt.Sprintf("watcher(%s %s)", w.state, w.url)
}
