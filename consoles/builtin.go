package consoles

import (
	"github.com/hazyhaar/overlay/annotate"
)

const (
	fxColor = "#B2D9F5"

	macSelector = `a[href^="http://standards.ieee.org/cgi-bin/ouisearch?"], a[href^="https://maclookup.app/search/result?mac="]`
	macLookup   = "https://maclookup.app/search/result?mac=%s"
)

var panoramaStyles = map[string]annotate.StatusStyle{
	"Connected":    {Color: "#1FAF2C", Weight: "bold"},
	"Disconnected": {Color: "#D94949", Weight: "bold"},
}

// InHandLabels are the description items that get a copy button.
var InHandLabels = []string{"IP", "Phone", "IMSI", "IMEI", "ICCID", "Serial Number", "Online Duration"}

// PanoramaKeywords select the copyable grid columns by header text.
var PanoramaKeywords = []string{"Device Name", "Serial Number", "Software Version"}

// Builtin returns the built-in profiles. Panorama runs on self-hosted
// appliances, so its profiles ship without patterns and stay idle until
// the configuration names the host.
func Builtin() []Profile {
	return []Profile{
		{
			ID:           "hetzner-pricing",
			Name:         "Hetzner Console: estimated USD pricing",
			Patterns:     []string{"console.hetzner.cloud/**"},
			RootSelector: "body",
			rules: func(d Deps) []*annotate.Rule {
				return []*annotate.Rule{{
					Name: "hetzner-price",
					Kind: annotate.KindCurrency,
					Resolver: &annotate.SelectorResolver{
						Sel: ".price-amount, .col--price, .usage-table__table-cell:last-child, .hc-table__foot-calc-sum",
					},
					Annotator: &annotate.CurrencyAnnotator{
						Rates:     d.Rates,
						Color:     fxColor,
						PeriodSel: ".price-period, .price-month-label",
					},
				}}
			},
		},
		{
			ID:           "inhand-signals",
			Name:         "InHand: signal levels",
			Patterns:     []string{"iot.inhandnetworks.com/**"},
			RootSelector: "body",
			rules: func(Deps) []*annotate.Rule {
				sig := annotate.NewSignalAnnotator()
				return []*annotate.Rule{{
					Name: "inhand-signal",
					Kind: annotate.KindSignal,
					Resolver: &annotate.CardResolver{
						Sel:      ".ant-card.antd-pro-pages-elms-device-signal-index-chart",
						TitleSel: ".ant-card-head-title",
						Known:    sig.Known,
					},
					Annotator: sig,
				}}
			},
		},
		{
			ID:           "inhand-dashboard-copy",
			Name:         "InHand: copy device properties",
			Patterns:     []string{"iot.inhandnetworks.com/device/profile/*/properties"},
			RootSelector: "body",
			rules: func(Deps) []*annotate.Rule {
				return []*annotate.Rule{{
					Name: "inhand-property-copy",
					Kind: annotate.KindCopy,
					Resolver: &annotate.LabeledItemResolver{
						ItemSel:    ".ant-descriptions-item",
						LabelSel:   ".ant-descriptions-item-label",
						ContentSel: ".ant-descriptions-item-content",
						Labels:     InHandLabels,
					},
					Annotator: &annotate.CopyAnnotator{Style: annotate.CopyButton},
				}}
			},
		},
		{
			ID:           "inhand-mac-copy",
			Name:         "InHand: MAC address lookup and copy",
			Patterns:     []string{"*.iot.inhandnetworks.com/status-devices.jsp"},
			RootSelector: "body",
			rules: func(Deps) []*annotate.Rule {
				return []*annotate.Rule{{
					Name:      "inhand-mac",
					Kind:      annotate.KindCopy,
					Resolver:  &annotate.ParentResolver{Sel: macSelector},
					Annotator: &annotate.CopyAnnotator{Style: annotate.CopyButton, HrefTemplate: macLookup},
				}}
			},
		},
		{
			ID:           "panorama10-status",
			Name:         "Panorama 10: connection status",
			RootSelector: "body",
			rules: func(Deps) []*annotate.Rule {
				return []*annotate.Rule{{
					Name:      "panorama10-status",
					Kind:      annotate.KindStatus,
					Resolver:  &annotate.SelectorResolver{Sel: ".x-grid3-cell-inner.x-grid3-col-16"},
					Annotator: &annotate.StatusAnnotator{Styles: panoramaStyles},
				}}
			},
		},
		{
			ID:           "panorama11-grid",
			Name:         "Panorama 11: managed devices summary",
			HashContains: "panorama/managed-devices/summary",
			RootSelector: "body",
			rules: func(Deps) []*annotate.Rule {
				return []*annotate.Rule{
					{
						Name:      "panorama11-status",
						Kind:      annotate.KindStatus,
						Resolver:  &annotate.SelectorResolver{Sel: ".x-grid3-row td.x-grid3-cell div.x-grid3-cell-inner"},
						Annotator: &annotate.StatusAnnotator{Styles: panoramaStyles},
					},
					{
						Name: "panorama11-copy",
						Kind: annotate.KindCopy,
						Resolver: &annotate.GridColumnResolver{
							GridSel:      ".x-grid3",
							HeaderSel:    ".x-grid3-header",
							HeaderRowSel: ".x-grid3-header table thead tr.x-grid3-hd-row, .x-grid3-header table tr.x-grid3-hd-row",
							RowSel:       ".x-grid3-row",
							CellSel:      "td.x-grid3-cell",
							InnerSel:     "div.x-grid3-cell-inner",
							Keywords:     PanoramaKeywords,
						},
						Annotator: &annotate.CopyAnnotator{Style: annotate.CopyInline},
					},
				}
			},
		},
		{
			ID:           "unifi-offline",
			Name:         "UniFi: offline highlighter",
			Patterns:     []string{"unifi.ui.com/**"},
			RootSelector: "body",
			rules: func(Deps) []*annotate.Rule {
				return []*annotate.Rule{{
					Name:      "unifi-offline",
					Kind:      annotate.KindStatus,
					Resolver:  &annotate.SelectorResolver{Sel: `span[data-label="Offline"]`},
					Annotator: &annotate.StatusAnnotator{Styles: map[string]annotate.StatusStyle{"Offline": {Color: "red"}}},
				}}
			},
		},
		{
			ID:           "unifi-site-group-width",
			Name:         "UniFi: site group editor width",
			Patterns:     []string{"unifi.ui.com/**"},
			RootSelector: "head",
			CSS:          ".modal-medium__Ji1BDxnM { width: 1000px !important; }",
			CSSEnabled:   true,
		},
	}
}
