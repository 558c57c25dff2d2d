// Package browser manages the Chrome overlayd drives: a launched instance
// (headless or headful under Xvfb) that it may recycle, or a user's Chrome
// reached over its remote debugging port, which it never restarts.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Mode selects how tabs are created.
type Mode int

const (
	// ModeHeadless launches headless Chrome and opens stealth tabs.
	ModeHeadless Mode = iota
	// ModeHeadful launches a visible Chrome under Xvfb.
	ModeHeadful
	// ModeRemote attaches to an existing Chrome. Its tabs belong to the
	// user and are never created, closed or recycled by overlayd.
	ModeRemote
)

func (m Mode) String() string {
	switch m {
	case ModeHeadful:
		return "headful"
	case ModeRemote:
		return "remote"
	default:
		return "headless"
	}
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "headless":
		return ModeHeadless, nil
	case "headful":
		return ModeHeadful, nil
	case "remote":
		return ModeRemote, nil
	}
	return 0, fmt.Errorf("browser: unknown mode %q", s)
}

// Config configures the browser manager.
type Config struct {
	Mode Mode
	// RemoteURL is the DevTools address of an external Chrome, either a
	// ws:// URL or host:port. Required in ModeRemote.
	RemoteURL string

	// MemoryLimit in bytes. A launched Chrome is recycled when its JS heap
	// exceeds it. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a launched Chrome.
	// Default: 4h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types to block in opened tabs
	// (images, fonts, media).
	ResourceBlocking []string

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome connection.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *display
	startAt time.Time
	closed  bool

	beforeRecycle func()
	afterRecycle  func(*rod.Browser)
}

// NewManager creates a Manager. Call Start to connect.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Mode reports the configured mode.
func (m *Manager) Mode() Mode { return m.cfg.Mode }

// OnRecycle sets hooks run under the manager lock around a recycle: before
// the old Chrome is killed and after the new one is connected. Either may
// be nil. after must not call back into the Manager synchronously.
func (m *Manager) OnRecycle(before func(), after func(*rod.Browser)) {
	m.mu.Lock()
	m.beforeRecycle, m.afterRecycle = before, after
	m.mu.Unlock()
}

// Start launches or connects to Chrome. A launched Chrome is checked for
// recycling until ctx is done.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errClosed
	}
	if m.cfg.Mode == ModeRemote && m.cfg.RemoteURL == "" {
		return nil, fmt.Errorf("browser: remote mode needs a remote URL")
	}
	if err := m.connectLocked(); err != nil {
		return nil, err
	}
	if m.cfg.Mode != ModeRemote {
		go m.monitor(ctx)
	}
	return m.browser, nil
}

var errClosed = errors.New("browser: manager is closed")

// Browser returns the current handle, nil before Start or after Close.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Uptime since the current Chrome was started or connected.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.startAt.IsZero() {
		return 0
	}
	return time.Since(m.startAt)
}

// Recycle restarts a launched Chrome. A remote Chrome is never restarted.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}
	if m.cfg.Mode == ModeRemote {
		return fmt.Errorf("browser: refusing to recycle a remote browser")
	}

	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt))
	if m.beforeRecycle != nil {
		m.beforeRecycle()
	}
	m.releaseLocked()
	if err := m.connectLocked(); err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	if m.afterRecycle != nil {
		m.afterRecycle(m.browser)
	}
	return nil
}

// Close disconnects, and for a launched Chrome kills it and its display.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.releaseLocked()
	return nil
}

// controlURL resolves the DevTools websocket, launching Chrome (and the
// virtual display in headful mode) unless remote.
func (m *Manager) controlURL() (string, error) {
	if m.cfg.Mode == ModeRemote {
		u, err := launcher.ResolveURL(m.cfg.RemoteURL)
		if err != nil {
			return "", fmt.Errorf("browser: resolve %s: %w", m.cfg.RemoteURL, err)
		}
		return u, nil
	}

	l := launcher.New().
		Headless(m.cfg.Mode == ModeHeadless).
		Set("disable-blink-features", "AutomationControlled")
	if m.cfg.Mode == ModeHeadful {
		if m.xvfb == nil {
			d, err := startDisplay(m.cfg.XvfbDisplay)
			if err != nil {
				return "", fmt.Errorf("browser: %w", err)
			}
			m.xvfb = d
			m.cfg.Logger.Info("browser: display started", "display", d.name)
		}
		l = l.Env("DISPLAY=" + m.cfg.XvfbDisplay)
	}
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("browser: launch: %w", err)
	}
	m.lnch = l
	return u, nil
}

func (m *Manager) connectLocked() error {
	u, err := m.controlURL()
	if err != nil {
		return err
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	m.cfg.Logger.Info("browser: connected", "mode", m.cfg.Mode, "url", u)
	return nil
}

// releaseLocked drops the connection. A remote Chrome belongs to the user
// and keeps running.
func (m *Manager) releaseLocked() {
	if m.browser != nil && m.cfg.Mode != ModeRemote {
		m.browser.Close()
	}
	m.browser = nil
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	if m.xvfb != nil {
		m.xvfb.stop()
		m.xvfb = nil
	}
}

// recycleReason says why a launched Chrome should be restarted, or "".
func recycleReason(cfg Config, uptime time.Duration, heap int64) string {
	switch {
	case uptime > cfg.RecycleInterval:
		return "lifetime"
	case heap > cfg.MemoryLimit:
		return "memory"
	}
	return ""
}

func (m *Manager) monitor(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		b := m.Browser()
		if b == nil {
			return
		}
		reason := recycleReason(m.cfg, m.Uptime(), heapUsage(b))
		if reason == "" {
			continue
		}
		m.cfg.Logger.Info("browser: recycle needed", "reason", reason)
		if err := m.Recycle(ctx); err != nil {
			m.cfg.Logger.Error("browser: recycle failed", "error", err)
			if errors.Is(err, errClosed) {
				return
			}
		}
	}
}

// heapUsage sums the used JS heap over the open pages. Pages that fail to
// answer count as zero.
func heapUsage(b *rod.Browser) int64 {
	pages, err := b.Pages()
	if err != nil {
		return 0
	}
	var total int64
	for _, p := range pages {
		res, err := proto.RuntimeGetHeapUsage{}.Call(p)
		if err != nil {
			continue
		}
		total += int64(res.UsedSize)
	}
	return total
}
