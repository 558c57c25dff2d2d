package reconcile

import "github.com/hazyhaar/overlay/dom"

// Op is the kind of a DOM change.
type Op string

const (
	// OpInsert: Node was added to the tree.
	OpInsert Op = "insert"
	// OpRemove: a child of Node was removed.
	OpRemove Op = "remove"
	// OpText: a text child of Node changed.
	OpText Op = "text"
	// OpAttr: attribute Name of Node changed.
	OpAttr Op = "attr"
	// OpReset: the whole document was replaced.
	OpReset Op = "reset"
)

// Change is one mutation record, already resolved to an element.
type Change struct {
	Op   Op
	Node dom.Element
	Name string
}
