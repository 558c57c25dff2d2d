package annotate

import (
	"strings"
	"sync"

	"github.com/hazyhaar/overlay/dom"
)

// SelectorResolver accepts elements matching a selector, optionally only
// when their trimmed text is one of Texts.
type SelectorResolver struct {
	Sel   string
	Texts []string
}

func (r *SelectorResolver) Selector() string { return r.Sel }

func (r *SelectorResolver) TryResolve(el dom.Element) (Subject, bool) {
	if !el.Matches(r.Sel) {
		return Subject{}, false
	}
	if len(r.Texts) > 0 {
		text := strings.TrimSpace(el.Text())
		ok := false
		for _, t := range r.Texts {
			if t == text {
				ok = true
				break
			}
		}
		if !ok {
			return Subject{}, false
		}
	}
	return Subject{El: el}, true
}

// CardResolver accepts cards whose title names a known measure.
type CardResolver struct {
	Sel      string
	TitleSel string
	Known    func(title string) bool
}

func (r *CardResolver) Selector() string { return r.Sel }

func (r *CardResolver) TryResolve(el dom.Element) (Subject, bool) {
	if !el.Matches(r.Sel) {
		return Subject{}, false
	}
	title := dom.QueryHost(el, r.TitleSel)
	if title == nil {
		return Subject{}, false
	}
	name := strings.TrimSpace(title.Text())
	if r.Known != nil && !r.Known(name) {
		return Subject{}, false
	}
	return Subject{El: el, Label: name}, true
}

// LabeledItemResolver accepts the content half of a label/content pair
// when the label is one of Labels.
type LabeledItemResolver struct {
	ItemSel    string
	LabelSel   string
	ContentSel string
	Labels     []string
}

func (r *LabeledItemResolver) Selector() string { return r.ContentSel }

func (r *LabeledItemResolver) TryResolve(el dom.Element) (Subject, bool) {
	if !el.Matches(r.ContentSel) {
		return Subject{}, false
	}
	item := dom.Closest(el.Parent(), r.ItemSel)
	if item == nil {
		return Subject{}, false
	}
	label := dom.QueryHost(item, r.LabelSel)
	if label == nil {
		return Subject{}, false
	}
	text := strings.TrimSpace(strings.ReplaceAll(label.Text(), ":", ""))
	for _, l := range r.Labels {
		if l == text {
			return Subject{El: el, Label: text}, true
		}
	}
	return Subject{}, false
}

// ParentResolver turns a matching element into a subject rooted at its
// parent, so that controls appended next to it stay inside the subject.
type ParentResolver struct {
	Sel string
}

func (r *ParentResolver) Selector() string { return r.Sel }

func (r *ParentResolver) TryResolve(el dom.Element) (Subject, bool) {
	if !el.Matches(r.Sel) {
		return Subject{}, false
	}
	p := el.Parent()
	if p == nil {
		return Subject{}, false
	}
	return Subject{El: p, Source: el}, true
}

// GridColumnResolver accepts grid cells whose column header contains one of
// Keywords. Headers may be split over several tables; the header row with
// the most keyword hits defines the column indexes. Indexes are cached per
// grid until a header change invalidates them.
type GridColumnResolver struct {
	GridSel      string
	HeaderSel    string
	HeaderRowSel string
	RowSel       string
	CellSel      string
	InnerSel     string
	Keywords     []string

	mu    sync.Mutex
	cache map[string]map[int]string // grid key → column index → keyword
}

func (r *GridColumnResolver) Selector() string { return r.InnerSel }

func (r *GridColumnResolver) TryResolve(el dom.Element) (Subject, bool) {
	if !el.Matches(r.InnerSel) {
		return Subject{}, false
	}
	cell := dom.Closest(el.Parent(), r.CellSel)
	if cell == nil {
		return Subject{}, false
	}
	row := dom.Closest(cell.Parent(), r.RowSel)
	if row == nil {
		return Subject{}, false
	}
	grid := dom.Closest(row.Parent(), r.GridSel)
	if grid == nil {
		return Subject{}, false
	}
	cols := r.columns(grid)
	if len(cols) == 0 {
		return Subject{}, false
	}
	key := cell.Key()
	for i, c := range row.QueryAll(r.CellSel) {
		if c.Key() != key {
			continue
		}
		if kw, ok := cols[i]; ok {
			return Subject{El: el, Label: kw}, true
		}
		return Subject{}, false
	}
	return Subject{}, false
}

func (r *GridColumnResolver) columns(grid dom.Element) map[int]string {
	key := grid.Key()
	r.mu.Lock()
	if cols, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cols
	}
	r.mu.Unlock()

	cols := FindColumns(grid.QueryAll(r.HeaderRowSel), r.Keywords)

	r.mu.Lock()
	if r.cache == nil {
		r.cache = make(map[string]map[int]string)
	}
	r.cache[key] = cols
	r.mu.Unlock()
	return cols
}

// Invalidate drops the column cache of the grid owning a changed header.
func (r *GridColumnResolver) Invalidate(el dom.Element) {
	if dom.Closest(el, r.HeaderSel) == nil {
		return
	}
	grid := dom.Closest(el, r.GridSel)
	if grid == nil {
		return
	}
	r.mu.Lock()
	delete(r.cache, grid.Key())
	r.mu.Unlock()
}

func (r *GridColumnResolver) Reset() {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
}

// FindColumns picks the header row with the most keyword hits and returns
// the indexes of its cells containing a keyword.
func FindColumns(rows []dom.Element, keywords []string) map[int]string {
	var best []string
	bestHits := 0
	for _, row := range rows {
		cells := row.QueryAll("td")
		texts := make([]string, len(cells))
		hits := 0
		for i, td := range cells {
			texts[i] = strings.TrimSpace(td.Text())
			if matchKeyword(texts[i], keywords) != "" {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = texts, hits
		}
	}
	cols := make(map[int]string)
	for i, text := range best {
		if kw := matchKeyword(text, keywords); kw != "" {
			cols[i] = kw
		}
	}
	return cols
}

func matchKeyword(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}
