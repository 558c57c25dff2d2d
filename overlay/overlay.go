// Package overlay is the overlayd daemon. It drives Chrome, attaches a
// session to every tab showing a known vendor console, and keeps each
// session's annotation layer in step with the page and the shared rate.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/clipboard"
	"github.com/hazyhaar/overlay/consoles"
	"github.com/hazyhaar/overlay/dom/rodom"
	"github.com/hazyhaar/overlay/idgen"
	"github.com/hazyhaar/overlay/kv"
	"github.com/hazyhaar/overlay/overlay/internal/bridge"
	"github.com/hazyhaar/overlay/overlay/internal/browser"
	"github.com/hazyhaar/overlay/overlay/internal/config"
	"github.com/hazyhaar/overlay/rate"
	"github.com/hazyhaar/overlay/reconcile"
)

// Daemon is the top-level orchestrator. Create one per overlayd instance.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	mgr     *browser.Manager
	book    *rate.Book
	store   kv.Store
	cat     *consoles.Catalogue
	base    reconcile.Config
	newID   idgen.Generator
	closeDB func() error

	httpClient *http.Client

	mu       sync.Mutex
	ctx      context.Context
	sessions map[string]*Session // keyed by target id
	stopRate func()
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStore replaces the store selected by the configuration.
func WithStore(s kv.Store) Option { return func(d *Daemon) { d.store = s } }

// WithHTTPClient sets the client used for rate fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Daemon) { d.httpClient = c }
}

// New builds a Daemon from configuration. It does not touch the browser
// until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		newID:    idgen.Prefixed("ses_", idgen.Default),
		sessions: make(map[string]*Session),
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(d)
	}

	if d.store == nil {
		d.store = openStore(cfg.Store.Path, logger)
		if c, ok := d.store.(interface{ Close() error }); ok {
			d.closeDB = c.Close
		}
	}

	d.book = rate.NewBook(d.store, rate.Config{
		Endpoint: cfg.FX.Endpoint,
		Path:     cfg.FX.Path,
		TTL:      cfg.FX.TTL,
		Default:  cfg.FX.Default,
		Client:   d.httpClient,
		Logger:   logger,
	})
	mode, err := rate.ParseMode(cfg.FX.Mode)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	d.book.SetMode(mode)

	profiles, err := ApplyProfiles(consoles.Builtin(), cfg.Profiles)
	if err != nil {
		return nil, err
	}
	if d.cat, err = consoles.NewCatalogue(profiles); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	bmode, err := browser.ParseMode(cfg.Browser.Mode)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	d.mgr = browser.NewManager(browser.Config{
		Mode:             bmode,
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	d.base = reconcile.Config{
		FlushDelay: cfg.Debounce.Window,
		MaxPending: cfg.Debounce.MaxPending,
		ProbeMin:   cfg.Probe.Min,
		ProbeMax:   cfg.Probe.Max,
		Logger:     logger,
	}
	return d, nil
}

// openStore opens the SQLite store, falling back to an in-memory store
// without a path and to kv.Nop when the database cannot be opened.
func openStore(path string, logger *slog.Logger) kv.Store {
	if path == "" {
		return kv.NewMemory()
	}
	s, err := kv.OpenSQLite(path)
	if err != nil {
		logger.Warn("overlay: store unavailable, rate will not persist", "path", path, "error", err)
		return kv.Nop{}
	}
	return s
}

// Book is the shared rate state.
func (d *Daemon) Book() *rate.Book { return d.book }

// Catalogue is the active profile set.
func (d *Daemon) Catalogue() *consoles.Catalogue { return d.cat }

// Deps are the services handed to profile rules.
func (d *Daemon) Deps() consoles.Deps { return consoles.Deps{Rates: d.book} }

// WatcherBase is the daemon-wide watcher configuration.
func (d *Daemon) WatcherBase() reconcile.Config { return d.base }

// Init loads persisted state and subscribes sessions to rate changes.
// Start calls it; offline rendering calls it alone.
func (d *Daemon) Init(ctx context.Context) {
	d.book.Init(ctx)
	d.mu.Lock()
	d.ctx = ctx
	if d.stopRate == nil {
		d.stopRate = d.book.OnChange(func() { d.refreshAll(annotate.KindCurrency) })
	}
	d.mu.Unlock()
}

// Start launches or connects to the browser, opens the configured pages
// and begins attaching to console tabs.
func (d *Daemon) Start(ctx context.Context) error {
	d.Init(ctx)
	d.book.RefreshIfStale(ctx)

	if _, err := d.mgr.Start(ctx); err != nil {
		return fmt.Errorf("overlay: start browser: %w", err)
	}
	d.mgr.OnRecycle(d.detachAll, func(*rod.Browser) { go d.openPages(ctx) })

	d.openPages(ctx)
	go d.scanLoop(ctx)

	d.logger.Info("overlay: started", "mode", d.mgr.Mode(), "profiles", len(d.cat.All()))
	return nil
}

// Stop closes every session, the browser and the store.
func (d *Daemon) Stop() {
	d.detachAll()
	d.mu.Lock()
	if d.stopRate != nil {
		d.stopRate()
		d.stopRate = nil
	}
	d.mu.Unlock()
	if err := d.mgr.Close(); err != nil {
		d.logger.Warn("overlay: close browser", "error", err)
	}
	if d.closeDB != nil {
		if err := d.closeDB(); err != nil {
			d.logger.Warn("overlay: close store", "error", err)
		}
	}
}

// openPages opens the configured pages in new tabs and attaches to them.
func (d *Daemon) openPages(ctx context.Context) {
	for _, p := range d.cfg.Pages {
		tab, err := browser.Open(ctx, d.mgr, p.URL)
		if err != nil {
			d.logger.Error("overlay: open page", "url", p.URL, "error", err)
			continue
		}
		if err := d.attachTab(ctx, tab); err != nil {
			d.logger.Error("overlay: attach page", "url", p.URL, "error", err)
			tab.Close()
		}
	}
}

func (d *Daemon) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Browser.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scan(ctx)
		}
	}
}

// scan attaches to new console tabs and drops sessions whose tab is gone.
func (d *Daemon) scan(ctx context.Context) {
	pages, err := d.mgr.Scan()
	if err != nil {
		d.logger.Debug("overlay: scan", "error", err)
		return
	}
	live := make(map[string]bool, len(pages))
	for _, p := range pages {
		live[p.TargetID] = true
		if d.attached(p.TargetID) || !d.cat.Hosted(p.URL) {
			continue
		}
		if err := d.attachTab(ctx, browser.Attach(p.Page)); err != nil {
			d.logger.Warn("overlay: attach tab", "url", p.URL, "error", err)
		}
	}

	d.mu.Lock()
	var gone []*Session
	for id, s := range d.sessions {
		if !live[id] {
			gone = append(gone, s)
			delete(d.sessions, id)
		}
	}
	d.mu.Unlock()
	for _, s := range gone {
		s.Close()
	}

	if len(d.sessionList()) > 0 {
		d.book.RefreshIfStale(ctx)
	}
}

func (d *Daemon) attached(targetID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[targetID]
	return ok
}

// attachTab installs the bridge in a tab and starts its session.
func (d *Daemon) attachTab(ctx context.Context, tab *browser.Tab) error {
	url, err := tab.URL()
	if err != nil {
		return err
	}
	sctx, cancel := context.WithCancel(ctx)
	doc := rodom.New(sctx, tab.Page)

	var clip clipboard.Writer = clipboard.Fallback{clipboard.NewPage(tab.Page), clipboard.System{}}
	if d.cfg.Clipboard == "system" {
		clip = clipboard.Fallback{clipboard.System{}, clipboard.NewPage(tab.Page)}
	}

	s := d.attachDocument(sctx, cancel, tab.TargetID, doc, clip)
	s.Owned = tab.Owned()

	br := bridge.New(tab.Page, s.logger)
	s.onClose(tab.Close)
	s.onClose(br.Uninstall)
	if err := br.Install(); err != nil {
		d.detach(tab.TargetID)
		return err
	}
	go br.Listen(sctx, s.Dispatch)

	s.Navigate(url)
	d.logger.Info("overlay: attached", "session", s.ID, "url", url, "owned", s.Owned)
	return nil
}

// attachDocument registers a session for doc under targetID.
func (d *Daemon) attachDocument(ctx context.Context, cancel context.CancelFunc, targetID string, doc Document, clip clipboard.Writer) *Session {
	base := d.base
	base.Clipboard = clip

	d.mu.Lock()
	defer d.mu.Unlock()
	s := newSession(ctx, cancel, d.newID(), targetID, doc, d.cat.All(), d.Deps(), base)
	d.sessions[targetID] = s
	return s
}

func (d *Daemon) detach(targetID string) {
	d.mu.Lock()
	s, ok := d.sessions[targetID]
	delete(d.sessions, targetID)
	d.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (d *Daemon) detachAll() {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]*Session)
	d.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (d *Daemon) sessionList() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func (d *Daemon) refreshAll(kind annotate.Kind) {
	for _, s := range d.sessionList() {
		s.Refresh(kind)
	}
}

// Sessions describes the attached tabs, oldest first.
func (d *Daemon) Sessions() []SessionInfo {
	list := d.sessionList()
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	return out
}

// ProfileInfo is a catalogue entry as shown by the admin surfaces.
type ProfileInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Patterns     []string `json:"patterns"`
	HashContains string   `json:"hash_contains,omitempty"`
	RootSelector string   `json:"root_selector"`
	HasCSS       bool     `json:"has_css"`
	CSSEnabled   bool     `json:"css_enabled"`
}

// Profiles lists the catalogue.
func (d *Daemon) Profiles() []ProfileInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []ProfileInfo
	for _, p := range d.cat.All() {
		out = append(out, ProfileInfo{
			ID:           p.ID,
			Name:         p.Name,
			Patterns:     p.Patterns,
			HashContains: p.HashContains,
			RootSelector: p.RootSelector,
			HasCSS:       p.CSS != "",
			CSSEnabled:   p.CSSEnabled,
		})
	}
	return out
}

// SetProfileStyle switches a profile's page CSS in every session.
func (d *Daemon) SetProfileStyle(id string, enabled bool) error {
	d.mu.Lock()
	p, err := d.cat.Get(id)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	p.CSSEnabled = enabled
	css := p.PageCSS()
	d.mu.Unlock()

	for _, s := range d.sessionList() {
		s.SetProfileCSS(id, css)
	}
	d.logger.Info("overlay: profile style", "profile", id, "enabled", enabled)
	return nil
}
