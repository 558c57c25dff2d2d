package rate

import "fmt"

// Mode is how converted amounts are displayed.
type Mode string

const (
	ModeBoth      Mode = "both"
	ModeConverted Mode = "converted"
	ModeOriginal  Mode = "original"
)

// Next is the mode after m in the toggle cycle.
func (m Mode) Next() Mode {
	switch m {
	case ModeBoth:
		return ModeConverted
	case ModeConverted:
		return ModeOriginal
	default:
		return ModeBoth
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBoth, ModeConverted, ModeOriginal:
		return m, nil
	}
	return "", fmt.Errorf("rate: unknown display mode %q", s)
}

// Mode returns the display mode.
func (b *Book) Mode() Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

// SetMode changes the display mode.
func (b *Book) SetMode(m Mode) {
	b.mu.Lock()
	changed := b.mode != m
	b.mode = m
	b.mu.Unlock()
	if changed {
		b.notify()
	}
}

// CycleMode advances the display mode and returns the new one.
func (b *Book) CycleMode() Mode {
	b.mu.Lock()
	b.mode = b.mode.Next()
	m := b.mode
	b.mu.Unlock()
	b.notify()
	return m
}
