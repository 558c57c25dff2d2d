package annotate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/overlay/dom"
)

const signalAttr = dom.AttrPrefix + "signal"

// SignalAnnotator replaces a measure reading with a color-coded badge and
// a "?" tooltip explaining the measure. The subject is the card; its Label
// names the measure.
type SignalAnnotator struct {
	Tables       map[string]Table
	Explanations map[string]string
	// ExtraSel locates the reading container inside the card.
	ExtraSel string
	// ReadingSel locates the reading block inside the container, ValueSel
	// the value inside the block.
	ReadingSel string
	ValueSel   string
}

// NewSignalAnnotator returns an annotator for the built-in cellular tables.
func NewSignalAnnotator() *SignalAnnotator {
	return &SignalAnnotator{
		Tables:       SignalTables,
		Explanations: SignalExplanations,
		ExtraSel:     ".ant-card-extra",
		ReadingSel:   "div",
		ValueSel:     "span",
	}
}

// Known reports whether a measure has a table.
func (a *SignalAnnotator) Known(measure string) bool {
	_, ok := a.Tables[measure]
	return ok
}

func (a *SignalAnnotator) Annotate(s Subject) error {
	table, ok := a.Tables[s.Label]
	if !ok {
		return nil
	}
	extra := dom.QueryHost(s.El, a.ExtraSel)
	if extra == nil {
		return nil
	}
	block := dom.QueryHost(extra, a.ReadingSel)
	if block == nil {
		return nil
	}
	value := dom.QueryHost(block, a.ValueSel)
	if value == nil {
		return nil
	}
	reading := strings.TrimSpace(value.Text())
	if reading == "" {
		return nil
	}
	if fp, ok := extra.Attr(signalAttr); ok && fp == reading && ownInjected(extra, "ovl-signal-badge") != nil {
		return nil
	}

	band := table.Classify(ParseReading(reading))

	if err := setStyle(block, "display", "none"); err != nil {
		return fmt.Errorf("annotate: signal: %w", err)
	}
	badge := ownInjected(extra, "ovl-signal-badge")
	if badge == nil {
		var err error
		if badge, err = inject(extra, "span", "ovl-signal-badge"); err != nil {
			return fmt.Errorf("annotate: signal: %w", err)
		}
	}
	if err := setText(badge, reading+" => "+band.Label); err != nil {
		return fmt.Errorf("annotate: signal: %w", err)
	}
	if err := setStyle(badge, "background-color", band.Color); err != nil {
		return fmt.Errorf("annotate: signal: %w", err)
	}
	if ownInjected(extra, "ovl-tip") == nil {
		if err := a.injectTooltip(extra, TooltipText(a.Explanations[s.Label], table)); err != nil {
			return fmt.Errorf("annotate: signal: tooltip: %w", err)
		}
	}
	return extra.SetAttr(signalAttr, reading)
}

func (a *SignalAnnotator) injectTooltip(parent dom.Element, text string) error {
	tip, err := inject(parent, "span", "ovl-tip")
	if err != nil {
		return err
	}
	if err := tip.SetAttr(ActionAttr, "tip"); err != nil {
		return err
	}
	icon, err := inject(tip, "span", "ovl-tip-icon")
	if err != nil {
		return err
	}
	if err := icon.SetText("?"); err != nil {
		return err
	}
	body, err := inject(tip, "div", "ovl-tip-text")
	if err != nil {
		return err
	}
	return body.SetText(text)
}

func (a *SignalAnnotator) Actions() []string { return []string{"tip-show", "tip-hide"} }

func (a *SignalAnnotator) Act(_ context.Context, act Action, env Env) error {
	if act.Target == nil {
		return nil
	}
	tip := dom.Closest(act.Target, ".ovl-tip")
	if tip == nil {
		return nil
	}
	body := tip.Query(".ovl-tip-text")
	if body == nil {
		return nil
	}
	switch act.Name {
	case "tip-show":
		return showTooltip(body, env.Doc.Viewport())
	case "tip-hide":
		return hideTooltip(body)
	}
	return nil
}

func (a *SignalAnnotator) CSS() string {
	return `
.ovl-signal-badge {
  display: inline-block;
  margin-left: 4px;
  padding: 4px 8px;
  font-weight: bold;
  border-radius: 4px;
  color: #fff;
  text-shadow: 1px 1px 2px #000;
  position: relative;
}
.ovl-tip {
  position: relative;
  display: inline-flex;
  align-items: center;
  justify-content: center;
  cursor: pointer;
  margin-left: 6px;
  font-weight: bold;
  user-select: none;
  color: #fff;
  background-color: #007bff;
  border-radius: 50%;
  width: 18px;
  height: 18px;
  font-size: 12px;
  box-shadow: 0 1px 2px rgba(0,0,0,0.2);
}
.ovl-tip:hover { background-color: #0056b3; }
.ovl-tip-text {
  display: none;
  position: absolute;
  width: max-content;
  max-width: 300px;
  background-color: rgba(0, 0, 0, 0.85);
  color: #fff;
  padding: 8px 12px;
  border-radius: 5px;
  z-index: 99999;
  left: 50%;
  transform: translateX(-50%);
  bottom: 125%;
  white-space: pre-line;
  font-size: 13px;
  font-weight: normal;
  text-shadow: none;
  line-height: 1.4;
  box-shadow: 0 2px 8px rgba(0,0,0,0.3);
}
`
}
