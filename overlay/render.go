package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/dom/htmldom"
	"github.com/hazyhaar/overlay/reconcile"
)

// ErrNoProfile is returned by Render when no profile matches the document.
var ErrNoProfile = errors.New("overlay: no profile matches the document")

const maxDocument = 16 << 20

// RenderResult reports one profile applied to a document.
type RenderResult struct {
	Profile string `json:"profile"`
	reconcile.Stats
	Err string `json:"error,omitempty"`
}

// LoadDocument reads an HTML document from a file or an http(s) URL. A
// non-empty pageURL replaces the document's location, which decides the
// matching profiles.
func LoadDocument(ctx context.Context, client *http.Client, src, pageURL string) (*htmldom.Document, error) {
	var r io.Reader
	location := src
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("overlay: load: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("overlay: load: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("overlay: load %s: status %d", src, resp.StatusCode)
		}
		r = io.LimitReader(resp.Body, maxDocument)
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("overlay: load: %w", err)
		}
		defer f.Close()
		r = io.LimitReader(f, maxDocument)
		location = ""
	}
	if pageURL != "" {
		location = pageURL
	}
	doc, err := htmldom.Parse(r, location)
	if err != nil {
		return nil, fmt.Errorf("overlay: parse: %w", err)
	}
	return doc, nil
}

// Render annotates doc in a single pass with every profile matching its
// location. A profile whose root is missing is reported, not fatal.
func (d *Daemon) Render(ctx context.Context, doc *htmldom.Document) ([]RenderResult, error) {
	d.mu.Lock()
	profiles := d.cat.Match(doc.URL())
	d.mu.Unlock()
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoProfile, doc.URL())
	}

	var out []RenderResult
	for _, p := range profiles {
		m := annotate.NewMatcher(p.Rules(d.Deps())...)
		st, err := reconcile.Once(ctx, doc, m, p.WatcherConfig(d.base))
		res := RenderResult{Profile: p.ID, Stats: st}
		if err != nil {
			res.Err = err.Error()
			d.logger.Warn("overlay: render", "profile", p.ID, "error", err)
		}
		out = append(out, res)
	}
	return out, nil
}

// previewPolicy keeps markup, inline styles and the injected stylesheets
// and drops scripts and event handlers.
func previewPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowUnsafe(true)
	p.AllowElements("html", "head", "body", "title", "style", "button", "span", "div")
	p.AllowNoAttrs().OnElements("html", "head", "body", "title", "style", "span", "div")
	p.AllowAttrs("id", "class", "style", "title", "type").Globally()
	p.AllowAttrs("target").OnElements("a")
	p.AllowDataAttributes()
	return p
}

// WritePreview writes doc with scripts stripped.
func WritePreview(w io.Writer, doc *htmldom.Document) error {
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fmt.Errorf("overlay: render: %w", err)
	}
	return previewPolicy().SanitizeReaderToWriter(&buf, w)
}
