package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockable maps configuration names to CDP resource types. Stylesheets
// are absent: status colors depend on the page's own CSS.
var blockable = map[string]proto.NetworkResourceType{
	"images": proto.NetworkResourceTypeImage,
	"fonts":  proto.NetworkResourceTypeFont,
	"media":  proto.NetworkResourceTypeMedia,
}

// resourceTypes resolves names in order, dropping duplicates and names
// that cannot be blocked.
func resourceTypes(names []string) []proto.NetworkResourceType {
	var out []proto.NetworkResourceType
	seen := make(map[proto.NetworkResourceType]bool)
	for _, n := range names {
		t, ok := blockable[strings.ToLower(n)]
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// blockResources fails requests of the named types. Only those types are
// paused by Chrome; everything else loads untouched.
func blockResources(page *rod.Page, names []string) error {
	types := resourceTypes(names)
	if len(types) == 0 {
		return nil
	}
	router := page.HijackRequests()
	for _, t := range types {
		if err := router.Add("*", t, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		}); err != nil {
			return err
		}
	}
	go router.Run()
	return nil
}
