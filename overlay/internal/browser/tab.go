package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab is a page overlayd annotates. Owned tabs were opened by overlayd and
// are closed with it; attached tabs belong to the user.
type Tab struct {
	Page     *rod.Page
	TargetID string
	owned    bool
}

// Open creates a stealth tab and navigates it to pageURL.
func Open(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := blockResources(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, TargetID: string(page.TargetID), owned: true}, nil
}

// Attach wraps a page that already exists in the browser.
func Attach(page *rod.Page) *Tab {
	return &Tab{Page: page, TargetID: string(page.TargetID)}
}

// URL is the tab's current location.
func (t *Tab) URL() (string, error) {
	info, err := t.Page.Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

// Owned reports whether overlayd opened the tab.
func (t *Tab) Owned() bool { return t.owned }

// Close closes an owned tab. Attached tabs are left open.
func (t *Tab) Close() error {
	if t.Page == nil || !t.owned {
		return nil
	}
	return t.Page.Close()
}

// PageInfo is a tab candidate found by Scan.
type PageInfo struct {
	TargetID string
	URL      string
	Page     *rod.Page
}

// Scan lists the page targets of the current browser.
func (m *Manager) Scan() ([]PageInfo, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	out := make([]PageInfo, 0, len(pages))
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if info.Type != "page" {
			continue
		}
		out = append(out, PageInfo{TargetID: string(p.TargetID), URL: info.URL, Page: p})
	}
	return out, nil
}
