package consoles

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/dom/htmldom"
	"github.com/hazyhaar/overlay/rate"
	"github.com/hazyhaar/overlay/reconcile"
)

func builtin(t *testing.T) *Catalogue {
	t.Helper()
	c, err := NewCatalogue(Builtin())
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	return c
}

func TestProfile_Relevant(t *testing.T) {
	c := builtin(t)
	tests := []struct {
		url  string
		want []string
	}{
		{"https://console.hetzner.cloud/projects/123/servers", []string{"hetzner-pricing"}},
		{"https://console.hetzner.cloud", []string{"hetzner-pricing"}},
		{"https://iot.inhandnetworks.com/device/profile/5f1a/properties", []string{"inhand-signals", "inhand-dashboard-copy"}},
		{"https://iot.inhandnetworks.com/device/profile/5f1a/signal", []string{"inhand-signals"}},
		{"https://eu.iot.inhandnetworks.com/status-devices.jsp", []string{"inhand-mac-copy"}},
		{"https://eu.iot.inhandnetworks.com/other.jsp", nil},
		{"https://unifi.ui.com/consoles/abc/network/default/dashboard", []string{"unifi-offline", "unifi-site-group-width"}},
		{"https://example.com/#panorama/managed-devices/summary", nil},
		{"not a url", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, p := range c.Match(tt.url) {
			got = append(got, p.ID)
		}
		if len(got) != len(tt.want) {
			t.Errorf("Match(%q): got %v, want %v", tt.url, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Match(%q): got %v, want %v", tt.url, got, tt.want)
				break
			}
		}
	}
}

func TestProfile_HashCondition(t *testing.T) {
	p := Profile{ID: "pano", Patterns: []string{"panorama.corp.test/**"}, HashContains: "panorama/managed-devices/summary"}
	if !p.Relevant("https://panorama.corp.test/#panorama/managed-devices/summary") {
		t.Error("summary route not relevant")
	}
	if p.Relevant("https://panorama.corp.test/#panorama/templates") {
		t.Error("other route relevant")
	}

	c, err := NewCatalogue([]Profile{p})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Hosted("https://panorama.corp.test/#panorama/templates") {
		t.Error("Hosted ignores the fragment condition")
	}
	if c.Hosted("https://elsewhere.test/") {
		t.Error("foreign host hosted")
	}
}

func TestCatalogue_Errors(t *testing.T) {
	if _, err := NewCatalogue([]Profile{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("duplicate ids accepted")
	}
	if _, err := NewCatalogue([]Profile{{ID: "a", Patterns: []string{"[a-"}}}); err == nil {
		t.Error("bad pattern accepted")
	}
	if _, err := NewCatalogue([]Profile{{}}); err == nil {
		t.Error("empty id accepted")
	}
	c := builtin(t)
	if _, err := c.Get("nope"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Get(nope): got %v", err)
	}
	if p, err := c.Get("hetzner-pricing"); err != nil || p.Name == "" {
		t.Errorf("Get(hetzner-pricing): %v %v", p, err)
	}
}

func TestProfile_WatcherConfig(t *testing.T) {
	c := builtin(t)
	p, _ := c.Get("unifi-site-group-width")
	cfg := p.WatcherConfig(reconcile.Config{MaxPending: 7})
	if cfg.StyleID != "ovl-style-unifi-site-group-width" || cfg.MaxPending != 7 || cfg.RootSelector != "head" {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.CSS == "" {
		t.Fatal("enabled CSS missing")
	}
	p.CSSEnabled = false
	if p.WatcherConfig(reconcile.Config{}).CSS != "" {
		t.Fatal("disabled CSS injected")
	}
	if !cfg.Relevant("https://unifi.ui.com/x") {
		t.Fatal("relevance not wired")
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runProfile activates a watcher for the profile on body and flushes once.
func runProfile(t *testing.T, c *Catalogue, id, url, body string) *htmldom.Document {
	t.Helper()
	p, err := c.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	doc := htmldom.MustParseString("<html><head></head><body>"+body+"</body></html>", url)
	book := rate.NewBook(nil, rate.Config{Logger: quietLogger()})
	rules := p.Rules(Deps{Rates: book})
	subjects := annotate.NewMatcher(rules...).FindSubjects(doc.Root())
	for _, s := range subjects {
		if err := s.Rule.Annotator.Annotate(s); err != nil {
			t.Fatalf("%s: %v", s.Rule.Name, err)
		}
	}
	return doc
}

func TestBuiltin_Hetzner(t *testing.T) {
	doc := runProfile(t, builtin(t), "hetzner-pricing", "https://console.hetzner.cloud/",
		`<span class="price-amount" id="p">€3.16 <span class="price-period">/mo</span></span><div class="hc-table__foot-calc-sum" id="sum">€0.006</div>`)
	if got := doc.Query("#p .ovl-fx").Text(); got != "~$3.48" {
		t.Errorf("price estimate: got %q", got)
	}
	if got := doc.Query("#sum .ovl-fx").Text(); got != "~$0.007" {
		t.Errorf("sum estimate: got %q", got)
	}
	if got := doc.Query("#p .ovl-fx").Style("color"); got != fxColor {
		t.Errorf("estimate color: got %q", got)
	}
}

func TestBuiltin_InHandProperties(t *testing.T) {
	doc := runProfile(t, builtin(t), "inhand-dashboard-copy", "https://iot.inhandnetworks.com/device/profile/1/properties", `
<div class="ant-descriptions-item"><span class="ant-descriptions-item-label">IMEI:</span><span class="ant-descriptions-item-content" id="imei">860000000000001</span></div>
<div class="ant-descriptions-item"><span class="ant-descriptions-item-label">Model</span><span class="ant-descriptions-item-content" id="model">IR615</span></div>`)
	if doc.Query("#imei button.ovl-copy") == nil {
		t.Error("IMEI has no copy button")
	}
	if doc.Query("#model button.ovl-copy") != nil {
		t.Error("unlisted label got a copy button")
	}
}

func TestBuiltin_MACRescan(t *testing.T) {
	c := builtin(t)
	body := `<table><tr><td id="cell"><a href="http://standards.ieee.org/cgi-bin/ouisearch?00-11-22">00:11:22:33:44:55</a></td></tr></table>`
	doc := runProfile(t, c, "inhand-mac-copy", "https://eu.iot.inhandnetworks.com/status-devices.jsp", body)

	// The rewritten anchor must still resolve, so a rescan stays a no-op.
	p, _ := c.Get("inhand-mac-copy")
	m := annotate.NewMatcher(p.Rules(Deps{})...)
	subjects := m.FindSubjects(doc.Root())
	if len(subjects) != 1 {
		t.Fatalf("subjects after rewrite: got %d, want 1", len(subjects))
	}
	before := doc.String()
	if err := subjects[0].Rule.Annotator.Annotate(subjects[0]); err != nil {
		t.Fatal(err)
	}
	if doc.String() != before {
		t.Fatal("rescan changed the document")
	}
}

func TestBuiltin_UniFiOffline(t *testing.T) {
	doc := runProfile(t, builtin(t), "unifi-offline", "https://unifi.ui.com/",
		`<span data-label="Offline" id="a">Offline</span><span data-label="Offline" id="b">Online</span>`)
	if got := doc.Query("#a").Style("color"); got != "red" {
		t.Errorf("offline color: got %q", got)
	}
	if got := doc.Query("#b").Style("color"); got != "" {
		t.Errorf("online styled: %q", got)
	}
}

func TestBuiltin_AllHaveRulesOrCSS(t *testing.T) {
	for _, p := range Builtin() {
		if len(p.Rules(Deps{Rates: rate.NewBook(nil, rate.Config{})})) == 0 && p.CSS == "" {
			t.Errorf("%s does nothing", p.ID)
		}
	}
}
