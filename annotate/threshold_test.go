package annotate

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestBuiltinTablesValid(t *testing.T) {
	for name, table := range SignalTables {
		if err := table.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if !math.IsInf(table[len(table)-1].Min, -1) {
			t.Errorf("%s: last band is not a catch-all", name)
		}
		if _, ok := SignalExplanations[name]; !ok {
			t.Errorf("%s: no explanation", name)
		}
	}
}

func TestValidate_RejectsNonDescending(t *testing.T) {
	tables := []Table{
		nil,
		{{Min: -80}, {Min: -67}},
		{{Min: 10}, {Min: 10}},
	}
	for _, tb := range tables {
		if err := tb.Validate(); !errors.Is(err, ErrInvalidTable) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidTable", tb, err)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		measure string
		value   float64
		want    string
	}{
		{"RSSI", -81, "Fair (≥ -90)"},
		{"RSSI", -95, "Poor (< -90)"},
		{"RSSI", -90, "Fair (≥ -90)"},
		{"RSSI", -90.01, "Poor (< -90)"},
		{"RSSI", -67, "Excellent (≥ -67)"},
		{"RSSI", -50, "Excellent (≥ -67)"},
		{"RSSI", -80, "Good (≥ -80)"},
		{"RSRP", -100, "Fair (≥ -100)"},
		{"RSRP", -140, "Poor (< -100)"},
		{"RSRQ", -10, "Good (≥ -10)"},
		{"RSRQ", -12, "Fair (≥ -15)"},
		{"RSRQ", -20, "Poor (< -15)"},
		{"SINR", 20, "Excellent (≥ 20)"},
		{"SINR", 13, "Good (≥ 13)"},
		{"SINR", 7.5, "Average (≥ 6)"},
		{"SINR", 0, "Low (≥ 0)"},
		{"SINR", -3, "Very Low (< 0)"},
		{"Signal Strength", 25, "Green (21–30)"},
		{"Signal Strength", 11, "Yellow (11–20)"},
		{"Signal Strength", 0, "Red (0–10)"},
		{"Signal Strength", -1, "Red (0–10)"},
	}
	for _, tt := range tests {
		got := SignalTables[tt.measure].Classify(tt.value)
		if got.Label != tt.want {
			t.Errorf("%s Classify(%v) = %q, want %q", tt.measure, tt.value, got.Label, tt.want)
		}
	}
}

func TestClassify_FirstBandAtOrBelow(t *testing.T) {
	table := SignalTables["SINR"]
	for v := -40.0; v <= 40; v += 0.5 {
		got := table.Classify(v)
		var want Band
		for _, b := range table {
			if b.Min <= v {
				want = b
				break
			}
		}
		if got != want {
			t.Fatalf("Classify(%v) = %q, want %q", v, got.Label, want.Label)
		}
	}
}

func TestParseReading(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"-81", -81},
		{"-81 dBm", -81},
		{" -12.5 dB ", -12.5},
		{"RSRQ: -9", -9},
		{"24", 24},
		{"", 0},
		{"N/A", 0},
		{"--5", 0},
		{"12.5.3", 12.5},
		{".5", 0.5},
		{"7.", 7},
	}
	for _, tt := range tests {
		if got := ParseReading(tt.in); got != tt.want {
			t.Errorf("ParseReading(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTooltipText(t *testing.T) {
	text := TooltipText(SignalExplanations["RSSI"], SignalTables["RSSI"])
	for _, want := range []string{
		"RSSI (Received Signal Strength Indicator):",
		"\n\n📈 To improve: Try different locations",
		"\n\nRanges:\nExcellent (≥ -67)\nGood (≥ -80)\nFair (≥ -90)\nPoor (< -90)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("tooltip missing %q:\n%s", want, text)
		}
	}
	if strings.HasSuffix(text, "\n") {
		t.Error("tooltip not trimmed")
	}
	if got := TooltipText("", nil); got != "No thresholds defined." {
		t.Errorf("empty tooltip = %q", got)
	}
	if got := TooltipText("", SignalTables["RSRQ"]); !strings.HasPrefix(got, "Ranges:\n") {
		t.Errorf("tooltip without explanation = %q", got)
	}
}
