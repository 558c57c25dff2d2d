package annotate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/overlay/dom"
	"github.com/hazyhaar/overlay/dom/htmldom"
	"github.com/hazyhaar/overlay/rate"
)

func page(body string) *htmldom.Document {
	return htmldom.MustParseString("<html><head></head><body>"+body+"</body></html>", "https://console.example.test/")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// annotateAll runs every subject's annotator once.
func annotateAll(t *testing.T, m *Matcher, root dom.Element) []Subject {
	t.Helper()
	subjects := m.FindSubjects(root)
	for _, s := range subjects {
		if err := s.Rule.Annotator.Annotate(s); err != nil {
			t.Fatalf("Annotate(%s): %v", s.Rule.Name, err)
		}
	}
	return subjects
}

func countAll(root dom.Element, selector string) int {
	return len(root.QueryAll(selector))
}

func newBook() *rate.Book {
	return rate.NewBook(nil, rate.Config{Logger: quietLogger()})
}

type fakeClipboard struct {
	writes []string
	err    error
}

func (c *fakeClipboard) Write(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, text)
	return nil
}

var errClipboardDenied = errors.New("clipboard denied")

// deferred collects After callbacks so tests control time.
type deferred struct {
	fns   []func()
	delay []time.Duration
}

func (d *deferred) After(delay time.Duration, fn func()) {
	d.delay = append(d.delay, delay)
	d.fns = append(d.fns, fn)
}

func (d *deferred) runAll() {
	fns := d.fns
	d.fns = nil
	for _, fn := range fns {
		fn()
	}
}
