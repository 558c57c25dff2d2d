package annotate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/hazyhaar/overlay/dom"
	"github.com/hazyhaar/overlay/rate"
)

var (
	// ErrNoAmount means the text holds no amount after the glyph.
	ErrNoAmount = errors.New("annotate: no amount")
	// ErrUnsupportedFormat rejects amounts with grouping separators such as
	// "1.234,56", where the decimal separator cannot be told apart.
	ErrUnsupportedFormat = errors.New("annotate: unsupported amount format")
)

const (
	fxAttr     = dom.AttrPrefix + "fx"
	fxModeAttr = dom.AttrPrefix + "fx-mode"
	// FXToggleID is the id of the injected display-mode toggle.
	FXToggleID = "ovl-fx-toggle"
	// PromptAttr holds the question the page asks on modifier-click, and
	// PromptActionAttr the action that reports the answer.
	PromptAttr       = dom.AttrPrefix + "prompt"
	PromptActionAttr = dom.AttrPrefix + "prompt-action"
)

var amountPatterns sync.Map // glyph → *regexp.Regexp

func amountPattern(glyph string) *regexp.Regexp {
	if re, ok := amountPatterns.Load(glyph); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(regexp.QuoteMeta(glyph) + `\s?(\d[\d.,]*)`)
	amountPatterns.Store(glyph, re)
	return re
}

// ParseAmount finds the first amount following glyph in text. Either '.' or
// ',' is accepted as the decimal separator; decimals is the number of
// fraction digits. Two or more separators yield ErrUnsupportedFormat.
func ParseAmount(text, glyph string) (amount float64, decimals int, err error) {
	m := amountPattern(glyph).FindStringSubmatch(text)
	if m == nil {
		return 0, 0, ErrNoAmount
	}
	num := strings.TrimRight(m[1], ".,")
	seps := strings.Count(num, ".") + strings.Count(num, ",")
	if seps > 1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, m[1])
	}
	num = strings.Replace(num, ",", ".", 1)
	if i := strings.IndexByte(num, '.'); i >= 0 {
		decimals = len(num) - i - 1
	}
	amount, err = strconv.ParseFloat(num, 64)
	if err != nil || math.IsInf(amount, 0) {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, m[1])
	}
	return amount, decimals, nil
}

// Convert returns amount*rate rounded to max(decimals, 2) places, formatted
// with exactly that many places. Halves round away from zero.
func Convert(amount, r float64, decimals int) string {
	return roundFixed(amount*r, max(decimals, 2))
}

// roundFixed formats x with p places, rounding on the exact binary value of
// x with halves away from zero: 0.625 gives "0.63", 1.005 (stored as
// 1.00499...) gives "1.00".
func roundFixed(x float64, p int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', p, 64)
	}
	const prec = 2048
	f := new(big.Float).SetPrec(prec).SetFloat64(math.Abs(x))
	scale := new(big.Float).SetPrec(prec).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p)), nil))
	f.Mul(f, scale)
	f.Add(f, big.NewFloat(0.5))
	n, _ := f.Int(nil)

	digits := n.String()
	if len(digits) <= p {
		digits = strings.Repeat("0", p-len(digits)+1) + digits
	}
	out := digits[:len(digits)-p]
	if p > 0 {
		out += "." + digits[len(digits)-p:]
	}
	if x < 0 && strings.Trim(digits, "0") != "" {
		out = "-" + out
	}
	return out
}

// Rates is the rate state a CurrencyAnnotator reads and the toggle drives.
type Rates interface {
	Rate() float64
	Mode() rate.Mode
	CycleMode() rate.Mode
	SetManualRate(ctx context.Context, input string) error
}

// CurrencyAnnotator appends a converted estimate to price elements.
type CurrencyAnnotator struct {
	Rates Rates
	// Glyph precedes the source amount. Default "€".
	Glyph string
	// Prefix precedes the converted amount. Default "~$".
	Prefix string
	Color  string
	// PeriodSel matches period labels ("/mo") moved after the estimate.
	PeriodSel string
}

func (a *CurrencyAnnotator) glyph() string {
	if a.Glyph == "" {
		return "€"
	}
	return a.Glyph
}

func (a *CurrencyAnnotator) prefix() string {
	if a.Prefix == "" {
		return "~$"
	}
	return a.Prefix
}

func (a *CurrencyAnnotator) Annotate(s Subject) error {
	text := HostText(s.El)
	amount, decimals, err := ParseAmount(text, a.glyph())
	if errors.Is(err, ErrNoAmount) {
		return a.strip(s.El)
	}
	if err != nil {
		if serr := a.strip(s.El); serr != nil {
			return serr
		}
		return fmt.Errorf("annotate: currency: %w", err)
	}

	converted := a.prefix() + Convert(amount, a.Rates.Rate(), decimals)
	mode := string(a.Rates.Mode())
	fp := text + "|" + converted

	fx := ownInjected(s.El, "ovl-fx")
	if cur, ok := s.El.Attr(fxAttr); ok && cur == fp && fx != nil {
		return setAttr(s.El, fxModeAttr, mode)
	}

	created := false
	if fx == nil {
		if fx, err = inject(s.El, "div", "ovl-fx"); err != nil {
			return fmt.Errorf("annotate: currency: %w", err)
		}
		created = true
		if a.Color != "" {
			if err := fx.SetStyle("color", a.Color); err != nil {
				return fmt.Errorf("annotate: currency: %w", err)
			}
		}
	}
	if err := setText(fx, converted); err != nil {
		return fmt.Errorf("annotate: currency: %w", err)
	}
	_, annotated := s.El.Attr(fxAttr)
	if a.PeriodSel != "" && (created || !annotated || sourceChanged(s.El, text)) {
		if period := dom.QueryHost(s.El, a.PeriodSel); period != nil {
			if err := s.El.Adopt(period); err != nil {
				return fmt.Errorf("annotate: currency: move period: %w", err)
			}
		}
	}
	if err := setAttr(s.El, fxModeAttr, mode); err != nil {
		return fmt.Errorf("annotate: currency: %w", err)
	}
	return setAttr(s.El, fxAttr, fp)
}

// sourceChanged reports whether the host text differs from the one the
// last annotation was computed from.
func sourceChanged(el dom.Element, text string) bool {
	cur, _ := el.Attr(fxAttr)
	prev, _, _ := strings.Cut(cur, "|")
	return prev != text
}

// strip removes a previous estimate from a subject that no longer holds a
// parseable amount.
func (a *CurrencyAnnotator) strip(el dom.Element) error {
	if fx := ownInjected(el, "ovl-fx"); fx != nil {
		if err := fx.Remove(); err != nil {
			return fmt.Errorf("annotate: currency: %w", err)
		}
	}
	if _, ok := el.Attr(fxAttr); ok {
		if err := el.RemoveAttr(fxAttr); err != nil {
			return err
		}
		return el.RemoveAttr(fxModeAttr)
	}
	return nil
}

func modeLabel(m rate.Mode) string {
	switch m {
	case rate.ModeConverted:
		return "$"
	case rate.ModeOriginal:
		return "€"
	default:
		return "€ + $"
	}
}

// Install adds the display-mode toggle, or refreshes its label.
func (a *CurrencyAnnotator) Install(doc dom.Document) error {
	label := modeLabel(a.Rates.Mode())
	if btn := doc.Query("#" + FXToggleID); btn != nil {
		return setText(btn, label)
	}
	body := doc.Query("body")
	if body == nil {
		return nil
	}
	btn, err := inject(body, "button", "ovl-fx-toggle")
	if err != nil {
		return fmt.Errorf("annotate: fx toggle: %w", err)
	}
	for k, v := range map[string]string{
		"id":             FXToggleID,
		"type":           "button",
		"title":          "Click: cycle display. Shift-click: set the rate.",
		ActionAttr:       "fx-toggle",
		PromptAttr:       "EUR to USD rate (leave empty to clear the override):",
		PromptActionAttr: "fx-rate",
	} {
		if err := btn.SetAttr(k, v); err != nil {
			return fmt.Errorf("annotate: fx toggle: %w", err)
		}
	}
	return btn.SetText(label)
}

func (a *CurrencyAnnotator) Uninstall(doc dom.Document) error {
	if btn := doc.Query("#" + FXToggleID); btn != nil {
		return btn.Remove()
	}
	return nil
}

func (a *CurrencyAnnotator) Actions() []string { return []string{"fx-toggle", "fx-rate"} }

func (a *CurrencyAnnotator) Act(ctx context.Context, act Action, env Env) error {
	switch act.Name {
	case "fx-toggle":
		if act.Modifier {
			return nil
		}
		m := a.Rates.CycleMode()
		env.logger().Info("currency: display mode", "mode", m)
	case "fx-rate":
		if err := a.Rates.SetManualRate(ctx, act.Value); err != nil {
			env.logger().Info("currency: manual rate rejected", "input", act.Value, "error", err)
			return env.Doc.Notify(fmt.Sprintf("Invalid rate %q: enter a positive number, or nothing to clear the override.", act.Value))
		}
		env.logger().Info("currency: manual rate", "input", act.Value, "rate", a.Rates.Rate())
	default:
		return nil
	}
	if env.Refresh != nil {
		env.Refresh(KindCurrency)
	}
	return nil
}

func (a *CurrencyAnnotator) CSS() string {
	return `
.ovl-fx { margin-top: 2px; }
[data-ovl-fx-mode="original"] > .ovl-fx { display: none !important; }
[data-ovl-fx-mode="converted"] { font-size: 0 !important; }
[data-ovl-fx-mode="converted"] > * { font-size: 0 !important; }
[data-ovl-fx-mode="converted"] > .ovl-fx,
[data-ovl-fx-mode="converted"] > .price-period,
[data-ovl-fx-mode="converted"] > .price-month-label { font-size: 14px !important; }
.ovl-fx-toggle {
  position: fixed;
  right: 16px;
  bottom: 16px;
  z-index: 99999;
  padding: 6px 10px;
  border: none;
  border-radius: 4px;
  background: #1f2937;
  color: #B2D9F5;
  font: bold 13px sans-serif;
  cursor: pointer;
  box-shadow: 0 2px 6px rgba(0,0,0,0.3);
}
`
}
