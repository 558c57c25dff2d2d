package annotate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Band is one row of a threshold table.
type Band struct {
	Min   float64
	Label string
	Color string
}

// Table is ordered by strictly descending Min. The last band catches
// everything below the others.
type Table []Band

// ErrInvalidTable is returned by Validate.
var ErrInvalidTable = errors.New("annotate: invalid threshold table")

// Validate checks the ordering invariant.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTable)
	}
	for i := 1; i < len(t); i++ {
		if !(t[i].Min < t[i-1].Min) {
			return fmt.Errorf("%w: band %d (%q) bound %v not below %v",
				ErrInvalidTable, i, t[i].Label, t[i].Min, t[i-1].Min)
		}
	}
	return nil
}

// Classify returns the first band whose bound is ≤ v. A value equal to a
// bound belongs to that bound's band.
func (t Table) Classify(v float64) Band {
	for _, b := range t {
		if v >= b.Min {
			return b
		}
	}
	return t[len(t)-1]
}

var (
	readingJunk   = regexp.MustCompile(`[^\-\d.]`)
	readingPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParseReading extracts a number from display text such as "-81 dBm".
// Everything but digits, '-' and '.' is dropped and the longest numeric
// prefix of the rest is parsed. Unparseable text reads as 0.
func ParseReading(s string) float64 {
	cleaned := readingJunk.ReplaceAllString(s, "")
	m := readingPrefix.FindString(cleaned)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var catchAll = math.Inf(-1)

// SignalTables are the InHand IR300/IR600 cellular thresholds, best first.
var SignalTables = map[string]Table{
	"Signal Strength": {
		{Min: 21, Label: "Green (21–30)", Color: "#28a745"},
		{Min: 11, Label: "Yellow (11–20)", Color: "#FF9800"},
		{Min: catchAll, Label: "Red (0–10)", Color: "#dc3545"},
	},
	"RSSI": {
		{Min: -67, Label: "Excellent (≥ -67)", Color: "#006400"},
		{Min: -80, Label: "Good (≥ -80)", Color: "#28a745"},
		{Min: -90, Label: "Fair (≥ -90)", Color: "#FF9800"},
		{Min: catchAll, Label: "Poor (< -90)", Color: "#dc3545"},
	},
	"RSRP": {
		{Min: -80, Label: "Excellent (≥ -80)", Color: "#006400"},
		{Min: -90, Label: "Good (≥ -90)", Color: "#28a745"},
		{Min: -100, Label: "Fair (≥ -100)", Color: "#FF9800"},
		{Min: catchAll, Label: "Poor (< -100)", Color: "#dc3545"},
	},
	"RSRQ": {
		{Min: -10, Label: "Good (≥ -10)", Color: "#28a745"},
		{Min: -15, Label: "Fair (≥ -15)", Color: "#FF9800"},
		{Min: catchAll, Label: "Poor (< -15)", Color: "#dc3545"},
	},
	"SINR": {
		{Min: 20, Label: "Excellent (≥ 20)", Color: "#006400"},
		{Min: 13, Label: "Good (≥ 13)", Color: "#28a745"},
		{Min: 6, Label: "Average (≥ 6)", Color: "#939F22"},
		{Min: 0, Label: "Low (≥ 0)", Color: "#EE6722"},
		{Min: catchAll, Label: "Very Low (< 0)", Color: "#dc3545"},
	},
}

// SignalExplanations are the tooltip texts per measure. The part after
// "\n\nTo improve:" is rendered as a separate hint.
var SignalExplanations = map[string]string{
	"Signal Strength": "Signal Strength indicator (scale 0-30):\nShows cellular connection quality using the same color scheme as device LEDs. Higher values mean better connection.\n\nTo improve: Reposition the device higher up, closer to windows, or away from metal objects and concrete walls.",
	"RSSI":            "RSSI (Received Signal Strength Indicator):\nMeasures the power of the cellular signal in dBm. Closer to 0 means stronger signal, with -67dBm or better considered excellent.\n\nTo improve: Try different locations within your building, especially near windows facing the nearest cell tower.",
	"RSRP":            "RSRP (Reference Signal Received Power):\nIndicates the power of the 4G/LTE signal reaching your device. Similar to RSSI but more precise for LTE networks.\n\nTo improve: Move the device to a higher elevation and away from obstacles like thick walls or metal fixtures.",
	"RSRQ":            "RSRQ (Reference Signal Received Quality):\nShows the quality of the received signal, accounting for interference and noise. Higher values (closer to 0) indicate cleaner signal.\n\nTo improve: Move away from sources of interference like microwaves, Wi-Fi routers, and other electronic devices.",
	"SINR":            "SINR (Signal to Interference + Noise Ratio):\nMeasures signal clarity by comparing desired signal to background interference. Higher positive numbers mean clearer transmission.\n\nTo improve: Isolate the device from other electronics and try different orientations or positions in the room.",
}

// TooltipText builds the hover text: explanation, improvement hint, then
// the ranges of the table.
func TooltipText(explanation string, t Table) string {
	var b strings.Builder
	if explanation != "" {
		head, hint, ok := strings.Cut(explanation, "\n\nTo improve:")
		b.WriteString(head)
		if ok {
			b.WriteString("\n\n📈 To improve:")
			b.WriteString(hint)
		}
	}
	if len(t) == 0 {
		if b.Len() == 0 {
			return "No thresholds defined."
		}
		return strings.TrimSpace(b.String())
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("Ranges:\n")
	for _, band := range t {
		b.WriteString(band.Label)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
