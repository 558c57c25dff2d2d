package annotate

import (
	"fmt"

	"github.com/hazyhaar/overlay/dom"
)

const statusAttr = dom.AttrPrefix + "status"

// StatusStyle is the presentation of one status word.
type StatusStyle struct {
	Color  string `yaml:"color" json:"color"`
	Weight string `yaml:"weight" json:"weight,omitempty"`
}

// StatusAnnotator colors subjects whose trimmed text exactly matches a key
// of Styles. A subject whose text stops matching loses the styles.
type StatusAnnotator struct {
	Styles map[string]StatusStyle
}

func (a *StatusAnnotator) Annotate(s Subject) error {
	text := HostText(s.El)
	st, ok := a.Styles[text]
	if !ok {
		if _, had := s.El.Attr(statusAttr); !had {
			return nil
		}
		// An inline copy confirmation holds the cell text until it reverts.
		if dom.Closest(s.El, "["+copiedAttr+"]") != nil {
			return nil
		}
		if err := s.El.SetStyle("color", ""); err != nil {
			return fmt.Errorf("annotate: status: %w", err)
		}
		if err := s.El.SetStyle("font-weight", ""); err != nil {
			return fmt.Errorf("annotate: status: %w", err)
		}
		return s.El.RemoveAttr(statusAttr)
	}
	if err := setStyle(s.El, "color", st.Color); err != nil {
		return fmt.Errorf("annotate: status: %w", err)
	}
	if err := setStyle(s.El, "font-weight", st.Weight); err != nil {
		return fmt.Errorf("annotate: status: %w", err)
	}
	return setAttr(s.El, statusAttr, text)
}
