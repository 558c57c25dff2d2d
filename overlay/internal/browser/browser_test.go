package browser

import (
	"slices"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeHeadless, false},
		{"headless", ModeHeadless, false},
		{"headful", ModeHeadful, false},
		{"remote", ModeRemote, false},
		{"kiosk", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMode(%q) err = %v", tt.in, err)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if err == nil && tt.in != "" && got.String() != tt.in {
			t.Errorf("%v.String() = %q", got, got.String())
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.MemoryLimit != 1<<30 {
		t.Errorf("MemoryLimit = %d", c.MemoryLimit)
	}
	if c.RecycleInterval != 4*time.Hour {
		t.Errorf("RecycleInterval = %v", c.RecycleInterval)
	}
	if c.XvfbDisplay != ":99" {
		t.Errorf("XvfbDisplay = %q", c.XvfbDisplay)
	}
	if c.Logger == nil {
		t.Error("Logger not set")
	}
}

func TestResourceTypes(t *testing.T) {
	got := resourceTypes([]string{"Images", "stylesheets", "fonts", "images", "scripts"})
	want := []proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeFont}
	if !slices.Equal(got, want) {
		t.Fatalf("resourceTypes = %v, want %v", got, want)
	}
	if resourceTypes([]string{"stylesheets"}) != nil {
		t.Fatal("stylesheets resolved to a blockable type")
	}
}

func TestManager_RemoteNeedsURL(t *testing.T) {
	m := NewManager(Config{Mode: ModeRemote})
	if _, err := m.Start(t.Context()); err == nil {
		t.Fatal("Start without remote URL succeeded")
	}
	if err := m.Recycle(t.Context()); err == nil {
		t.Fatal("Recycle of a remote browser succeeded")
	}
}

func TestManager_ClosedRejectsStart(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(t.Context()); err == nil {
		t.Fatal("Start after Close succeeded")
	}
	if m.Uptime() != 0 {
		t.Errorf("Uptime = %v", m.Uptime())
	}
}

func TestRecycleReason(t *testing.T) {
	var c Config
	c.defaults()
	tests := []struct {
		uptime time.Duration
		heap   int64
		want   string
	}{
		{time.Minute, 10 << 20, ""},
		{5 * time.Hour, 0, "lifetime"},
		{time.Hour, 2 << 30, "memory"},
	}
	for _, tt := range tests {
		if got := recycleReason(c, tt.uptime, tt.heap); got != tt.want {
			t.Errorf("recycleReason(%v, %d) = %q, want %q", tt.uptime, tt.heap, got, tt.want)
		}
	}
}
