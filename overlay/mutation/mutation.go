// Package mutation defines the messages the in-page bridge script sends to
// overlayd through the CDP binding: mutation records, route changes and
// user actions on injected controls.
package mutation

import (
	"encoding/json"
	"fmt"
)

// Op is the type of DOM mutation observed.
type Op string

const (
	OpInsert Op = "insert" // element added; XPath is the new element
	OpRemove Op = "remove" // children removed; XPath is the parent
	OpText   Op = "text"   // text changed; XPath is the parent element
	OpAttr   Op = "attr"   // attribute Name changed on XPath
)

// Record is a single DOM mutation.
type Record struct {
	Op    Op     `json:"op"`
	XPath string `json:"xpath"`
	Name  string `json:"name,omitempty"`
}

// Kind of a bridge message.
type Kind string

const (
	KindChanges  Kind = "changes"
	KindNavigate Kind = "navigate"
	KindAction   Kind = "action"
	// KindReady is sent by a freshly loaded document.
	KindReady Kind = "ready"
)

// Action is a click or hover on an element carrying data-ovl-action.
type Action struct {
	Name     string `json:"name"`
	XPath    string `json:"xpath"`
	Modifier bool   `json:"modifier,omitempty"`
	// Value is the answer to a page prompt.
	Value string `json:"value,omitempty"`
}

// Message is one binding call.
type Message struct {
	Kind    Kind     `json:"kind"`
	URL     string   `json:"url"`
	Records []Record `json:"records,omitempty"`
	Action  *Action  `json:"action,omitempty"`
}

// Parse decodes and validates a binding payload.
func Parse(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("mutation: decode: %w", err)
	}
	switch m.Kind {
	case KindChanges:
		for i, r := range m.Records {
			switch r.Op {
			case OpInsert, OpRemove, OpText, OpAttr:
			default:
				return nil, fmt.Errorf("mutation: record %d: unknown op %q", i, r.Op)
			}
			if r.XPath == "" {
				return nil, fmt.Errorf("mutation: record %d: empty xpath", i)
			}
		}
	case KindAction:
		if m.Action == nil || m.Action.Name == "" {
			return nil, fmt.Errorf("mutation: action without name")
		}
	case KindNavigate, KindReady:
	default:
		return nil, fmt.Errorf("mutation: unknown kind %q", m.Kind)
	}
	return &m, nil
}

// Compress drops records that resolve to the same work:
//   - consecutive attr records on the same (xpath, name) collapse to one
//   - text records on an xpath already reported in the batch collapse
//   - insert and remove are never dropped
func Compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}
	result := make([]Record, 0, len(records))
	texts := make(map[string]bool)
	for i := 0; i < len(records); i++ {
		rec := records[i]
		switch rec.Op {
		case OpAttr:
			j := i + 1
			for j < len(records) &&
				records[j].Op == OpAttr &&
				records[j].XPath == rec.XPath &&
				records[j].Name == rec.Name {
				j++
			}
			result = append(result, rec)
			i = j - 1
		case OpText:
			if texts[rec.XPath] {
				continue
			}
			texts[rec.XPath] = true
			result = append(result, rec)
		default:
			result = append(result, rec)
		}
	}
	return result
}
