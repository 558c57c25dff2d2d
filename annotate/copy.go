package annotate

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hazyhaar/overlay/dom"
)

const (
	copyTextAttr = dom.AttrPrefix + "copy-text"
	copiedAttr   = dom.AttrPrefix + "copied"

	copyIcon      = "📋"
	copiedMessage = "Copied!"
	// CopiedRevert is how long the confirmation stays visible.
	CopiedRevert = time.Second
)

// CopyStyle selects how the copy control is rendered.
type CopyStyle string

const (
	// CopyButton appends a button to the subject.
	CopyButton CopyStyle = "button"
	// CopyInline makes the subject itself clickable.
	CopyInline CopyStyle = "inline"
)

// CopyAnnotator lets the user copy a subject's text. The text is captured
// when the subject is annotated, so transient changes of the rendered text
// never change what gets copied.
type CopyAnnotator struct {
	Style CopyStyle
	// HrefTemplate, when set, rewrites the href of an anchor source to
	// fmt.Sprintf(HrefTemplate, escaped text) and opens it in a new tab.
	HrefTemplate string
}

func (a *CopyAnnotator) Annotate(s Subject) error {
	if _, busy := s.El.Attr(copiedAttr); busy {
		return nil
	}
	src := s.SourceEl()
	text := HostText(src)
	if text == "" {
		return nil
	}

	if a.HrefTemplate != "" && src.Tag() == "a" {
		if err := setAttr(src, "href", fmt.Sprintf(a.HrefTemplate, url.QueryEscape(text))); err != nil {
			return fmt.Errorf("annotate: copy: href: %w", err)
		}
		if err := setAttr(src, "target", "_blank"); err != nil {
			return fmt.Errorf("annotate: copy: href: %w", err)
		}
		if err := setAttr(src, "rel", "noopener noreferrer"); err != nil {
			return fmt.Errorf("annotate: copy: href: %w", err)
		}
	}

	switch a.Style {
	case CopyInline:
		if err := setStyle(s.El, "cursor", "pointer"); err != nil {
			return fmt.Errorf("annotate: copy: %w", err)
		}
		if err := setAttr(s.El, ActionAttr, "copy"); err != nil {
			return fmt.Errorf("annotate: copy: %w", err)
		}
	default:
		if ownInjected(s.El, "ovl-copy") == nil {
			btn, err := inject(s.El, "button", "ovl-copy")
			if err != nil {
				return fmt.Errorf("annotate: copy: %w", err)
			}
			for k, v := range map[string]string{"type": "button", "title": "Copy to clipboard", ActionAttr: "copy"} {
				if err := btn.SetAttr(k, v); err != nil {
					return fmt.Errorf("annotate: copy: %w", err)
				}
			}
			if err := btn.SetText(copyIcon); err != nil {
				return fmt.Errorf("annotate: copy: %w", err)
			}
		}
	}
	return setAttr(s.El, copyTextAttr, text)
}

func (a *CopyAnnotator) Actions() []string { return []string{"copy"} }

// Act writes the captured text to the clipboard and shows a confirmation
// that reverts after CopiedRevert. Clipboard failures are only logged.
func (a *CopyAnnotator) Act(ctx context.Context, act Action, env Env) error {
	if act.Target == nil {
		return nil
	}
	holder := dom.Closest(act.Target, "["+copyTextAttr+"]")
	if holder == nil {
		return nil
	}
	text, _ := holder.Attr(copyTextAttr)
	if text == "" || env.Clipboard == nil {
		return nil
	}
	if err := env.Clipboard.Write(ctx, text); err != nil {
		env.logger().Warn("copy: clipboard write failed", "error", err)
		return nil
	}
	env.logger().Debug("copy: copied", "chars", len(text))

	if _, ok := act.Target.Attr(dom.InjectedAttr); ok {
		btn := act.Target
		if err := btn.SetText(copiedMessage); err != nil {
			return fmt.Errorf("annotate: copy: confirm: %w", err)
		}
		env.after(CopiedRevert, func() {
			if btn.Connected() {
				if err := btn.SetText(copyIcon); err != nil {
					env.logger().Debug("copy: revert", "error", err)
				}
			}
		})
		return nil
	}

	if _, busy := holder.Attr(copiedAttr); busy {
		return nil
	}
	if err := holder.SetAttr(copiedAttr, ""); err != nil {
		return fmt.Errorf("annotate: copy: confirm: %w", err)
	}
	if err := holder.SetText(copiedMessage); err != nil {
		return fmt.Errorf("annotate: copy: confirm: %w", err)
	}
	env.after(CopiedRevert, func() {
		if !holder.Connected() {
			return
		}
		if err := holder.SetText(text); err != nil {
			env.logger().Debug("copy: revert", "error", err)
		}
		if err := holder.RemoveAttr(copiedAttr); err != nil {
			env.logger().Debug("copy: revert", "error", err)
		}
	})
	return nil
}

func (a *CopyAnnotator) CSS() string {
	return `
.ovl-copy {
  margin-left: 10px;
  padding: 2px 5px;
  cursor: pointer;
  border: 1px solid #ccc;
  border-radius: 3px;
  background: #fff;
  font-size: 12px;
  line-height: 1;
}
`
}
