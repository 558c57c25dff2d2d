package overlay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/consoles"
	"github.com/hazyhaar/overlay/dom"
	"github.com/hazyhaar/overlay/overlay/mutation"
	"github.com/hazyhaar/overlay/reconcile"
)

// Document is a page a session can annotate: the dom capabilities plus
// resolution of the paths the bridge reports.
type Document interface {
	dom.Document
	ElementByXPath(xpath string) dom.Element
}

// Session annotates one browser tab. It runs one watcher per profile; the
// profiles' relevance predicates decide which of them are active.
type Session struct {
	ID       string
	TargetID string
	Owned    bool
	Started  time.Time

	doc      Document
	bindings []*binding
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	url     string
	closers []func() error
	closed  bool
}

type binding struct {
	profile string
	watcher *reconcile.Watcher
}

// SessionInfo describes a session for the admin surfaces.
type SessionInfo struct {
	ID       string         `json:"id"`
	TargetID string         `json:"target_id"`
	URL      string         `json:"url"`
	Owned    bool           `json:"owned"`
	Started  time.Time      `json:"started"`
	Profiles []ProfileStats `json:"profiles"`
}

// ProfileStats are the watcher counters of one profile in a session.
type ProfileStats struct {
	Profile string `json:"profile"`
	reconcile.Stats
}

// newSession starts a watcher per profile on doc. The watchers stop when
// ctx is cancelled through cancel or Close.
func newSession(ctx context.Context, cancel context.CancelFunc, id, targetID string, doc Document, profiles []*consoles.Profile, deps consoles.Deps, base reconcile.Config) *Session {
	logger := base.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)
	base.Logger = logger

	s := &Session{
		ID:       id,
		TargetID: targetID,
		Started:  time.Now(),
		doc:      doc,
		logger:   logger,
		cancel:   cancel,
	}
	for _, p := range profiles {
		w := reconcile.New(doc, annotate.NewMatcher(p.Rules(deps)...), p.WatcherConfig(base))
		s.bindings = append(s.bindings, &binding{profile: p.ID, watcher: w})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run(ctx)
		}()
	}
	return s
}

// onClose registers cleanup run by Close after the watchers stopped.
func (s *Session) onClose(fn func() error) {
	s.mu.Lock()
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// URL is the last location reported by the page.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Navigate reports a location to every watcher.
func (s *Session) Navigate(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	for _, b := range s.bindings {
		b.watcher.Navigate(url)
	}
}

// Dispatch routes a bridge message to the watchers.
func (s *Session) Dispatch(msg *mutation.Message) {
	switch msg.Kind {
	case mutation.KindChanges:
		changes := s.resolve(msg.Records)
		if len(changes) == 0 {
			return
		}
		for _, b := range s.bindings {
			b.watcher.Observe(changes)
		}

	case mutation.KindNavigate:
		s.Navigate(msg.URL)

	case mutation.KindReady:
		// A new document replaced the old one: every handle is stale.
		for _, b := range s.bindings {
			b.watcher.Observe([]reconcile.Change{{Op: reconcile.OpReset}})
		}
		s.Navigate(msg.URL)

	case mutation.KindAction:
		a := annotate.Action{
			Name:     msg.Action.Name,
			Modifier: msg.Action.Modifier,
			Value:    msg.Action.Value,
			Claim:    new(atomic.Bool),
		}
		if msg.Action.XPath != "" {
			a.Target = s.doc.ElementByXPath(msg.Action.XPath)
		}
		s.logger.Debug("session: action", "name", a.Name, "modifier", a.Modifier)
		for _, b := range s.bindings {
			b.watcher.Act(a)
		}
	}
}

var recordOps = map[mutation.Op]reconcile.Op{
	mutation.OpInsert: reconcile.OpInsert,
	mutation.OpRemove: reconcile.OpRemove,
	mutation.OpText:   reconcile.OpText,
	mutation.OpAttr:   reconcile.OpAttr,
}

// resolve turns records into changes, resolving each path once. Records
// whose node is already gone are dropped.
func (s *Session) resolve(records []mutation.Record) []reconcile.Change {
	seen := make(map[string]dom.Element)
	out := make([]reconcile.Change, 0, len(records))
	for _, r := range records {
		el, ok := seen[r.XPath]
		if !ok {
			el = s.doc.ElementByXPath(r.XPath)
			seen[r.XPath] = el
		}
		if el == nil {
			continue
		}
		out = append(out, reconcile.Change{Op: recordOps[r.Op], Node: el, Name: r.Name})
	}
	return out
}

// Refresh re-annotates subjects of kind in every active watcher.
func (s *Session) Refresh(kind annotate.Kind) {
	for _, b := range s.bindings {
		b.watcher.Refresh(kind)
	}
}

// SetProfileCSS replaces the page CSS of one profile.
func (s *Session) SetProfileCSS(profile, css string) {
	for _, b := range s.bindings {
		if b.profile == profile {
			b.watcher.SetCSS(css)
		}
	}
}

// Info returns the session description with per-profile counters.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:       s.ID,
		TargetID: s.TargetID,
		URL:      s.URL(),
		Owned:    s.Owned,
		Started:  s.Started,
	}
	for _, b := range s.bindings {
		info.Profiles = append(info.Profiles, ProfileStats{Profile: b.profile, Stats: b.watcher.Stats()})
	}
	return info
}

// Close stops the watchers and runs the cleanup functions.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	var first error
	for _, fn := range closers {
		if err := fn(); err != nil {
			s.logger.Debug("session: close", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	s.logger.Info("session: closed", "target", s.TargetID)
	return first
}
