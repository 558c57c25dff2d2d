// Package clipboard writes text to a clipboard. System uses the clipboard
// of the machine running overlayd; Page uses the browser page's async
// clipboard API, which is what a user of a remote Chrome expects.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ErrUnsupported means no clipboard backend is available.
var ErrUnsupported = errors.New("clipboard: unsupported")

// Writer writes text to a clipboard.
type Writer interface {
	Write(ctx context.Context, text string) error
}

// System writes to the host clipboard (xclip, xsel, wl-copy, pbcopy or the
// Windows API).
type System struct{}

func (System) Write(ctx context.Context, text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: system: %w", err)
	}
	return nil
}

// Page writes through navigator.clipboard in a browser page. The write
// permission is granted over CDP on first use, since the page never sees
// a user gesture of its own.
type Page struct {
	page *rod.Page

	mu      sync.Mutex
	granted string
}

// NewPage returns a writer bound to page.
func NewPage(page *rod.Page) *Page {
	return &Page{page: page}
}

func (p *Page) Write(ctx context.Context, text string) error {
	page := p.page.Context(ctx)
	if err := p.grant(page); err != nil {
		return err
	}
	_, err := page.Evaluate(rod.Eval(`t => navigator.clipboard.writeText(t)`, text).ByPromise())
	if err != nil {
		return fmt.Errorf("clipboard: page: %w", err)
	}
	return nil
}

func (p *Page) grant(page *rod.Page) error {
	info, err := page.Info()
	if err != nil {
		return fmt.Errorf("clipboard: page info: %w", err)
	}
	origin := Origin(info.URL)
	p.mu.Lock()
	defer p.mu.Unlock()
	if origin == "" || origin == p.granted {
		return nil
	}
	err = proto.BrowserGrantPermissions{
		Origin: origin,
		Permissions: []proto.BrowserPermissionType{
			proto.BrowserPermissionTypeClipboardReadWrite,
			proto.BrowserPermissionTypeClipboardSanitizedWrite,
		},
	}.Call(page.Browser())
	if err != nil {
		return fmt.Errorf("clipboard: grant %s: %w", origin, err)
	}
	p.granted = origin
	return nil
}

// Fallback tries each writer in turn and returns the last error.
type Fallback []Writer

func (f Fallback) Write(ctx context.Context, text string) error {
	err := ErrUnsupported
	for _, w := range f {
		if err = w.Write(ctx, text); err == nil {
			return nil
		}
	}
	return err
}
