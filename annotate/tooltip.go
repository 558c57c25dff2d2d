package annotate

import (
	"fmt"

	"github.com/hazyhaar/overlay/dom"
)

const tooltipMargin = 10

// Placement is the correction applied to a tooltip that would clip.
type Placement struct {
	ShiftX float64
	Below  bool
}

// PlaceTooltip computes the correction for a tooltip box r measured at its
// default position (centered above its anchor). Past the right edge it
// shifts left by the overflow plus a margin, past the left edge it shifts
// right, and past the top it flips below the anchor.
func PlaceTooltip(r dom.Rect, vp dom.Viewport) Placement {
	var p Placement
	if over := r.Right - vp.Width; over > 0 {
		p.ShiftX = over + tooltipMargin
	}
	if r.Left < 0 {
		p.ShiftX = r.Left - tooltipMargin
	}
	p.Below = r.Top < 0
	return p
}

// Transform is the CSS transform for the placement.
func (p Placement) Transform() string {
	if p.ShiftX == 0 {
		return "translateX(-50%)"
	}
	return fmt.Sprintf("translateX(calc(-50%% - %gpx))", p.ShiftX)
}

// showTooltip displays tip and corrects its position against the viewport.
func showTooltip(tip dom.Element, vp dom.Viewport) error {
	if err := tip.SetStyle("display", "block"); err != nil {
		return err
	}
	r, ok := tip.Bounds()
	if !ok {
		return nil
	}
	p := PlaceTooltip(r, vp)
	if err := tip.SetStyle("transform", p.Transform()); err != nil {
		return err
	}
	if p.Below {
		if err := tip.SetStyle("bottom", "auto"); err != nil {
			return err
		}
		return tip.SetStyle("top", "125%")
	}
	return nil
}

// hideTooltip hides tip and restores the default position.
func hideTooltip(tip dom.Element) error {
	for _, d := range [][2]string{{"display", ""}, {"transform", ""}, {"bottom", ""}, {"top", ""}} {
		if err := tip.SetStyle(d[0], d[1]); err != nil {
			return err
		}
	}
	return nil
}
