// Package rodom implements the dom capabilities on a live Chrome page
// through go-rod. Every call is a CDP round trip; callers keep the number of
// calls proportional to the size of a change, never to the document.
package rodom

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/overlay/dom"
)

// Page adapts a rod page to dom.Document.
type Page struct {
	page *rod.Page
}

// New binds a rod page to ctx. All element handles derived from it share
// that context.
func New(ctx context.Context, page *rod.Page) *Page {
	return &Page{page: page.Context(ctx).Sleeper(rod.NotFoundSleeper)}
}

// Rod exposes the bound page.
func (p *Page) Rod() *rod.Page { return p.page }

// Wrap adapts a rod element obtained elsewhere.
func (p *Page) Wrap(el *rod.Element) dom.Element {
	if el == nil {
		return nil
	}
	return &Element{el: el}
}

func (p *Page) URL() string {
	res, err := p.page.Eval(`() => location.href`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (p *Page) Root() dom.Element {
	el, err := p.page.ElementByJS(rod.Eval(`() => document.documentElement`))
	if err != nil {
		return nil
	}
	return &Element{el: el}
}

func (p *Page) Query(selector string) dom.Element {
	has, el, err := p.page.Has(selector)
	if err != nil || !has {
		return nil
	}
	return &Element{el: el}
}

func (p *Page) ElementByXPath(xpath string) dom.Element {
	has, el, err := p.page.HasX(xpath)
	if err != nil || !has {
		return nil
	}
	return &Element{el: el}
}

func (p *Page) InjectStyle(id, css string) error {
	_, err := p.page.Eval(`(id, css) => {
		let s = document.getElementById(id);
		if (!s) {
			s = document.createElement('style');
			s.id = id;
			s.setAttribute('`+dom.InjectedAttr+`', '');
			(document.head || document.documentElement).appendChild(s);
		}
		if (s.textContent !== css) s.textContent = css;
	}`, id, css)
	if err != nil {
		return fmt.Errorf("rodom: inject style %s: %w", id, err)
	}
	return nil
}

func (p *Page) RemoveStyle(id string) error {
	_, err := p.page.Eval(`(id) => { const s = document.getElementById(id); if (s) s.remove(); }`, id)
	if err != nil {
		return fmt.Errorf("rodom: remove style %s: %w", id, err)
	}
	return nil
}

func (p *Page) Viewport() dom.Viewport {
	res, err := p.page.Eval(`() => ({w: window.innerWidth, h: window.innerHeight})`)
	if err != nil {
		return dom.Viewport{}
	}
	return dom.Viewport{Width: res.Value.Get("w").Num(), Height: res.Value.Get("h").Num()}
}

// Notify shows a transient toast in the page. alert() would block the
// page's event loop and every later CDP evaluation with it.
func (p *Page) Notify(msg string) error {
	_, err := p.page.Eval(`(msg) => {
		const t = document.createElement('div');
		t.className = 'ovl-toast';
		t.setAttribute('`+dom.InjectedAttr+`', '');
		t.textContent = msg;
		document.body.appendChild(t);
		setTimeout(() => t.remove(), 4000);
	}`, msg)
	if err != nil {
		return fmt.Errorf("rodom: notify: %w", err)
	}
	return nil
}
