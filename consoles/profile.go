// Package consoles is the catalogue of vendor console profiles. A profile
// says which pages it applies to, where its root container is, and which
// annotation rules and page CSS it brings.
package consoles

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/reconcile"
)

// ErrUnknownProfile is returned for an id missing from the catalogue.
var ErrUnknownProfile = errors.New("consoles: unknown profile")

// Deps are the shared services a profile's rules may need.
type Deps struct {
	Rates annotate.Rates
}

// Profile binds annotation rules to a vendor console.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Patterns are doublestar patterns over host + path, for example
	// "console.hetzner.cloud/**". A profile without patterns never matches.
	Patterns []string `json:"patterns"`
	// HashContains further restricts matching to URLs whose fragment
	// contains it. Single-page consoles route through the fragment.
	HashContains string `json:"hash_contains,omitempty"`
	RootSelector string `json:"root_selector"`
	// CSS is injected while the profile is active.
	CSS string `json:"css,omitempty"`
	// CSSEnabled switches CSS at runtime.
	CSSEnabled bool `json:"css_enabled"`

	rules func(Deps) []*annotate.Rule
}

// Relevant reports whether rawURL belongs to the profile.
func (p *Profile) Relevant(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	if p.HashContains != "" && !strings.Contains(u.Fragment, p.HashContains) {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	name := u.Host + path
	for _, pat := range p.Patterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// Validate checks the patterns.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("consoles: profile without id")
	}
	for _, pat := range p.Patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("consoles: %s: bad pattern %q", p.ID, pat)
		}
	}
	return nil
}

// Rules builds a fresh rule set. Resolvers keep per-page caches, so every
// watcher needs its own.
func (p *Profile) Rules(d Deps) []*annotate.Rule {
	if p.rules == nil {
		return nil
	}
	return p.rules(d)
}

// PageCSS is the CSS to inject, honouring CSSEnabled.
func (p *Profile) PageCSS() string {
	if !p.CSSEnabled {
		return ""
	}
	return p.CSS
}

// WatcherConfig derives the watcher settings of the profile. base carries
// the daemon-wide timings, clipboard and logger.
func (p *Profile) WatcherConfig(base reconcile.Config) reconcile.Config {
	cfg := base
	cfg.RootSelector = p.RootSelector
	cfg.Relevant = p.Relevant
	cfg.CSS = p.PageCSS()
	cfg.StyleID = reconcile.StyleID + "-" + p.ID
	if cfg.Logger != nil {
		cfg.Logger = cfg.Logger.With("profile", p.ID)
	}
	return cfg
}

// Catalogue is an ordered set of profiles.
type Catalogue struct {
	profiles []*Profile
}

// NewCatalogue copies profiles into a catalogue.
func NewCatalogue(profiles []Profile) (*Catalogue, error) {
	c := &Catalogue{}
	seen := make(map[string]bool)
	for i := range profiles {
		p := profiles[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("consoles: duplicate profile %q", p.ID)
		}
		seen[p.ID] = true
		c.profiles = append(c.profiles, &p)
	}
	return c, nil
}

// All returns the profiles in catalogue order.
func (c *Catalogue) All() []*Profile { return c.profiles }

// Get looks a profile up by id.
func (c *Catalogue) Get(id string) (*Profile, error) {
	for _, p := range c.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
}

// Match returns the profiles relevant to rawURL.
func (c *Catalogue) Match(rawURL string) []*Profile {
	var out []*Profile
	for _, p := range c.profiles {
		if p.Relevant(rawURL) {
			out = append(out, p)
		}
	}
	return out
}

// Hosted reports whether any profile pattern could match a page on the
// same site, ignoring fragment conditions. Used to decide which tabs to
// attach to before a client-side route makes them relevant.
func (c *Catalogue) Hosted(rawURL string) bool {
	for _, p := range c.profiles {
		q := *p
		q.HashContains = ""
		if q.Relevant(rawURL) {
			return true
		}
	}
	return false
}
