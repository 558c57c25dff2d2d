package reconcile

import (
	"context"
	"errors"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/dom"
)

// ErrNotRelevant is returned by Once when the document is not one the
// configuration applies to, or has no root container.
var ErrNotRelevant = errors.New("reconcile: document not relevant")

// Once annotates a static document in a single pass, without a loop: it
// activates on doc's URL, injects the stylesheet and controls, and flushes
// every subject of the root. Used for offline rendering.
func Once(ctx context.Context, doc dom.Document, matcher *annotate.Matcher, cfg Config) (Stats, error) {
	w := New(doc, matcher, cfg)
	w.ctx = ctx
	defer w.shutdown()

	w.navigate(doc.URL())
	if w.state != Active {
		w.deactivate()
		return w.Stats(), ErrNotRelevant
	}
	w.flush()
	return w.Stats(), ctx.Err()
}
