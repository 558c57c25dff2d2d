// Package bridge connects a page to overlayd. It installs a script that
// observes the document with a MutationObserver, hooks client-side routing
// and reports clicks on injected controls, all through one CDP binding.
package bridge

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/overlay/overlay/mutation"
)

//go:embed bridge.js
var bridgeJS string

// BindingName is the window function the script reports through.
const BindingName = "__overlay_binding"

// Bridge is the Go end of one page's bridge.
type Bridge struct {
	page   *rod.Page
	logger *slog.Logger
	remove func() error
}

// New creates a bridge for page.
func New(page *rod.Page, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{page: page, logger: logger}
}

// Install adds the binding, registers the script for future documents and
// runs it in the current one.
func (b *Bridge) Install() error {
	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(b.page); err != nil {
		return fmt.Errorf("bridge: add binding: %w", err)
	}
	remove, err := b.page.EvalOnNewDocument(bridgeJS)
	if err != nil {
		return fmt.Errorf("bridge: register script: %w", err)
	}
	b.remove = remove
	if _, err := b.page.Eval(`() => {` + bridgeJS + `}`); err != nil {
		return fmt.Errorf("bridge: run script: %w", err)
	}
	return nil
}

// Listen delivers every valid message to handle until ctx is done. Invalid
// payloads are logged and dropped.
func (b *Bridge) Listen(ctx context.Context, handle func(*mutation.Message)) {
	b.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		msg, err := mutation.Parse([]byte(e.Payload))
		if err != nil {
			b.logger.Warn("bridge: bad payload", "error", err)
			return
		}
		if msg.Kind == mutation.KindChanges {
			msg.Records = mutation.Compress(msg.Records)
		}
		handle(msg)
	})()
}

// Uninstall stops injecting the script into new documents. The running
// script stays until the next navigation.
func (b *Bridge) Uninstall() error {
	var err error
	if b.remove != nil {
		err = b.remove()
		b.remove = nil
	}
	if rerr := (proto.RuntimeRemoveBinding{Name: BindingName}).Call(b.page); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return fmt.Errorf("bridge: uninstall: %w", err)
	}
	return nil
}
