package overlay

import (
	"fmt"

	"github.com/hazyhaar/overlay/consoles"
	"github.com/hazyhaar/overlay/overlay/internal/config"
)

// ApplyProfiles adjusts builtin profiles with configuration entries and
// drops disabled ones. An entry naming an unknown profile is an error.
func ApplyProfiles(builtin []consoles.Profile, entries []config.ProfileConfig) ([]consoles.Profile, error) {
	index := make(map[string]int, len(builtin))
	out := make([]consoles.Profile, len(builtin))
	copy(out, builtin)
	for i, p := range out {
		index[p.ID] = i
	}

	disabled := make(map[string]bool)
	for _, e := range entries {
		i, ok := index[e.ID]
		if !ok {
			return nil, fmt.Errorf("overlay: profile %q: %w", e.ID, consoles.ErrUnknownProfile)
		}
		if !e.IsEnabled() {
			disabled[e.ID] = true
			continue
		}
		p := &out[i]
		if len(e.Patterns) > 0 {
			p.Patterns = append([]string(nil), e.Patterns...)
		}
		if e.HashContains != nil {
			p.HashContains = *e.HashContains
		}
		if e.RootSelector != "" {
			p.RootSelector = e.RootSelector
		}
		if e.CSS != nil {
			p.CSSEnabled = *e.CSS
		}
	}

	kept := out[:0]
	for _, p := range out {
		if !disabled[p.ID] {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
