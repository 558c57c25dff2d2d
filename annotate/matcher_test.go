package annotate

import (
	"testing"

	"github.com/hazyhaar/overlay/dom"
)

type recordingAnnotator struct{ calls int }

func (r *recordingAnnotator) Annotate(Subject) error { r.calls++; return nil }

func statusRule(sel string) *Rule {
	return &Rule{
		Name:      "status",
		Kind:      KindStatus,
		Resolver:  &SelectorResolver{Sel: sel},
		Annotator: &recordingAnnotator{},
	}
}

func TestFindSubjects_SkipsInjectedOutput(t *testing.T) {
	doc := page(`
		<span class="st">Connected</span>
		<div data-ovl-injected=""><span class="st">Connected</span></div>
		<span class="st">Disconnected</span>`)
	m := NewMatcher(statusRule(".st"))

	got := m.FindSubjects(doc.Root())
	if len(got) != 2 {
		t.Fatalf("FindSubjects = %d subjects, want 2", len(got))
	}
	for _, s := range got {
		if dom.IsInjected(s.El) {
			t.Fatal("matched an injected element")
		}
		if s.Kind != KindStatus || s.Rule == nil {
			t.Fatalf("subject not stamped: %+v", s)
		}
	}
}

func TestFindSubjects_IncludesRoot(t *testing.T) {
	doc := page(`<span class="st">Connected</span>`)
	m := NewMatcher(statusRule(".st"))
	el := doc.Query(".st")
	if got := m.FindSubjects(el); len(got) != 1 {
		t.Fatalf("FindSubjects(subject) = %d, want 1", len(got))
	}
}

func TestFindSubjects_Empty(t *testing.T) {
	doc := page(`<p>nothing here</p>`)
	m := NewMatcher(statusRule(".st"))
	if got := m.FindSubjects(doc.Root()); len(got) != 0 {
		t.Fatalf("FindSubjects = %v, want none", got)
	}
	if got := m.FindSubjects(nil); got != nil {
		t.Fatalf("FindSubjects(nil) = %v", got)
	}
}

func TestFindSubjects_SeveralRulesOneElement(t *testing.T) {
	doc := page(`<div class="cell">Connected</div>`)
	copyRule := &Rule{Name: "copy", Kind: KindCopy, Resolver: &SelectorResolver{Sel: ".cell"}, Annotator: &recordingAnnotator{}}
	m := NewMatcher(statusRule(".cell"), copyRule)

	got := m.FindSubjects(doc.Root())
	if len(got) != 2 {
		t.Fatalf("FindSubjects = %d, want 2 (one per rule)", len(got))
	}
	if got[0].El.Key() != got[1].El.Key() || got[0].Key() == got[1].Key() {
		t.Fatal("expected same element, distinct subject keys")
	}
	if n := len(m.FindKind(doc.Root(), KindCopy)); n != 1 {
		t.Fatalf("FindKind(copy) = %d, want 1", n)
	}
}

func TestSelectorResolver_Texts(t *testing.T) {
	doc := page(`<span data-label="Offline">Offline</span><span data-label="Offline">Online</span>`)
	r := &SelectorResolver{Sel: `span[data-label="Offline"]`, Texts: []string{"Offline"}}
	m := NewMatcher(&Rule{Name: "offline", Kind: KindStatus, Resolver: r, Annotator: &recordingAnnotator{}})
	if got := m.FindSubjects(doc.Root()); len(got) != 1 {
		t.Fatalf("FindSubjects = %d, want 1", len(got))
	}
}

func TestResolveNearest(t *testing.T) {
	doc := page(`
		<div id="root">
			<div class="card"><h3 class="title">RSSI</h3><div class="extra"><div>Latest RSSI: <span id="v">-81</span></div></div></div>
			<div class="card"><h3 class="title">Uptime</h3><span id="u">3d</span></div>
			<div class="card"><div data-ovl-injected=""><span id="inj">x</span></div></div>
		</div>
		<div class="card"><h3 class="title">RSSI</h3><span id="outside">-70</span></div>`)
	rule := &Rule{
		Name: "signal",
		Kind: KindSignal,
		Resolver: &CardResolver{Sel: ".card", TitleSel: ".title", Known: func(s string) bool {
			return s == "RSSI"
		}},
		Annotator: &recordingAnnotator{},
	}
	m := NewMatcher(rule)
	root := doc.Query("#root")

	got := m.ResolveNearest(doc.Query("#v"), root)
	if len(got) != 1 || got[0].Label != "RSSI" || !got[0].El.Matches(".card") {
		t.Fatalf("ResolveNearest(#v) = %+v", got)
	}
	if got := m.ResolveNearest(doc.Query("#u"), root); len(got) != 0 {
		t.Fatalf("unknown measure resolved: %+v", got)
	}
	if got := m.ResolveNearest(doc.Query("#inj"), root); len(got) != 0 {
		t.Fatalf("resolved through injected output: %+v", got)
	}
	if got := m.ResolveNearest(doc.Query("#outside"), root); len(got) != 0 {
		t.Fatalf("resolved outside root: %+v", got)
	}
}

func TestLabeledItemResolver(t *testing.T) {
	doc := page(`
		<div class="ant-descriptions-item"><span class="ant-descriptions-item-label">IMEI:</span><span class="ant-descriptions-item-content">8612345</span></div>
		<div class="ant-descriptions-item"><span class="ant-descriptions-item-label">Model</span><span class="ant-descriptions-item-content">IR615</span></div>`)
	r := &LabeledItemResolver{
		ItemSel:    ".ant-descriptions-item",
		LabelSel:   ".ant-descriptions-item-label",
		ContentSel: ".ant-descriptions-item-content",
		Labels:     []string{"IMEI", "IP"},
	}
	m := NewMatcher(&Rule{Name: "copy", Kind: KindCopy, Resolver: r, Annotator: &recordingAnnotator{}})
	got := m.FindSubjects(doc.Root())
	if len(got) != 1 || got[0].Label != "IMEI" || HostText(got[0].El) != "8612345" {
		t.Fatalf("FindSubjects = %+v", got)
	}
}

func TestParentResolver(t *testing.T) {
	doc := page(`<table><tr><td id="cell"><a href="http://standards.ieee.org/cgi-bin/ouisearch?00-11-22">00:11:22:33:44:55</a></td></tr></table>`)
	r := &ParentResolver{Sel: `a[href^="http://standards.ieee.org/cgi-bin/ouisearch?"]`}
	m := NewMatcher(&Rule{Name: "mac", Kind: KindCopy, Resolver: r, Annotator: &recordingAnnotator{}})
	got := m.FindSubjects(doc.Root())
	if len(got) != 1 {
		t.Fatalf("FindSubjects = %d, want 1", len(got))
	}
	if id, _ := got[0].El.Attr("id"); id != "cell" || got[0].SourceEl().Tag() != "a" {
		t.Fatalf("subject = %+v", got[0])
	}
}

const panoramaGrid = `
<div class="x-grid3" id="grid">
  <div class="x-grid3-header">
    <table><thead><tr class="x-grid3-hd-row"><td>Device Name</td><td>Serial Number</td><td>Connected</td><td>Model</td></tr></thead></table>
    <table><tbody><tr class="x-grid3-hd-row"><td>Software Version</td></tr></tbody></table>
  </div>
  <div class="x-grid3-body">
    <div class="x-grid3-row"><table><tbody><tr>
      <td class="x-grid3-cell"><div class="x-grid3-cell-inner" id="name">fw-edge-01</div></td>
      <td class="x-grid3-cell"><div class="x-grid3-cell-inner" id="serial">007051000123</div></td>
      <td class="x-grid3-cell"><div class="x-grid3-cell-inner" id="status">Connected</div></td>
      <td class="x-grid3-cell"><div class="x-grid3-cell-inner" id="model">PA-440</div></td>
    </tr></tbody></table></div>
  </div>
</div>`

func panoramaResolver() *GridColumnResolver {
	return &GridColumnResolver{
		GridSel:      ".x-grid3",
		HeaderSel:    ".x-grid3-header",
		HeaderRowSel: ".x-grid3-header table thead tr.x-grid3-hd-row, .x-grid3-header table tr.x-grid3-hd-row",
		RowSel:       ".x-grid3-row",
		CellSel:      "td.x-grid3-cell",
		InnerSel:     "div.x-grid3-cell-inner",
		Keywords:     []string{"Device Name", "Serial Number", "Software Version"},
	}
}

func TestGridColumnResolver(t *testing.T) {
	doc := page(panoramaGrid)
	r := panoramaResolver()
	m := NewMatcher(&Rule{Name: "grid-copy", Kind: KindCopy, Resolver: r, Annotator: &recordingAnnotator{}})

	got := m.FindSubjects(doc.Root())
	if len(got) != 2 {
		t.Fatalf("FindSubjects = %d, want 2", len(got))
	}
	labels := map[string]string{}
	for _, s := range got {
		id, _ := s.El.Attr("id")
		labels[id] = s.Label
	}
	if labels["name"] != "Device Name" || labels["serial"] != "Serial Number" {
		t.Fatalf("labels = %v", labels)
	}
}

func TestGridColumnResolver_HeaderChangeInvalidates(t *testing.T) {
	doc := page(panoramaGrid)
	r := panoramaResolver()
	m := NewMatcher(&Rule{Name: "grid-copy", Kind: KindCopy, Resolver: r, Annotator: &recordingAnnotator{}})
	m.FindSubjects(doc.Root())

	// Columns reordered by the user: Model now where Device Name was.
	cells := doc.Query("thead tr.x-grid3-hd-row").QueryAll("td")
	cells[0].SetText("Model")
	cells[3].SetText("Device Name")

	if got := m.ResolveNearest(doc.Query("#model"), doc.Root()); len(got) != 0 {
		t.Fatal("cache changed without invalidation")
	}
	m.Invalidate(cells[0])
	got := m.ResolveNearest(doc.Query("#model"), doc.Root())
	if len(got) != 1 || got[0].Label != "Device Name" {
		t.Fatalf("after invalidate = %+v", got)
	}

	m.Reset()
	if len(r.cache) != 0 {
		t.Fatal("Reset kept cache")
	}
}

func TestFindColumns_NoHeader(t *testing.T) {
	if cols := FindColumns(nil, []string{"Device Name"}); len(cols) != 0 {
		t.Fatalf("FindColumns(nil) = %v", cols)
	}
}
