// Package mirror keeps an addressable tree in step with a playlist backend
// that changes underneath it.
//
// Backend notifications arrive on arbitrary goroutines and are only queued;
// the goroutine that owns the Mirror applies them in Drain. Every read of
// the tree, and every Drain, must happen on that owning goroutine.
package mirror

import (
	"time"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// Kind determines whether a node may have children.
type Kind int

const (
	KindRoot Kind = iota
	KindCategory
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCategory:
		return "category"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Flags holds per-node visibility bits.
type Flags uint8

const (
	// FlagSearchHidden is set when neither the node nor any descendant
	// matches the active search.
	FlagSearchHidden Flags = 1 << iota
	// FlagDisabled mirrors the backend's disabled state.
	FlagDisabled
)

// Node is one element of the mirrored tree. Nodes are only mutated by the
// engine in this package; callers get read access.
type Node struct {
	id       int64
	input    int64
	kind     Kind
	itemType model.ItemType
	columns  [model.NumColumns]string
	duration time.Duration
	playing  bool
	flags    Flags

	parent   *Node
	children []*Node

	// order holds the children in backend order; children is display
	// order. seq is the node's index in its parent's order.
	order []*Node
	seq   int
}

func newNode(it model.Item) *Node {
	n := &Node{id: it.ID, input: it.InputID, kind: KindLeaf}
	if it.Kind == model.KindCategory {
		n.kind = KindCategory
		n.input = 0
	}
	n.refresh(it)
	return n
}

func newRoot(id int64, it model.Item) *Node {
	n := &Node{id: id, kind: KindRoot, itemType: model.TypeNode}
	n.columns[model.ColumnTitle] = it.Title
	return n
}

// refresh recomputes cached display fields and reports whether anything
// visible changed.
func (n *Node) refresh(it model.Item) bool {
	var cols [model.NumColumns]string
	for c := model.Column(0); c < model.NumColumns; c++ {
		cols[c] = it.Value(c)
	}
	flags := n.flags &^ FlagDisabled
	if it.Disabled {
		flags |= FlagDisabled
	}
	typ := it.Type
	if typ == "" {
		typ = model.TypeUnknown
	}
	changed := cols != n.columns || it.Playing != n.playing || flags != n.flags ||
		typ != n.itemType || it.Duration != n.duration
	n.columns, n.playing, n.flags, n.itemType, n.duration = cols, it.Playing, flags, typ, it.Duration
	return changed
}

// ID returns the node's identity.
func (n *Node) ID() int64 { return n.id }

// InputID returns the identity of the underlying input, zero for containers.
func (n *Node) InputID() int64 { return n.input }

func (n *Node) Kind() Kind { return n.kind }

// ItemType returns the input type used for presentation.
func (n *Node) ItemType() model.ItemType { return n.itemType }

// Value returns the cached text for column c.
func (n *Node) Value(c model.Column) string {
	if c < 0 || c >= model.NumColumns {
		return ""
	}
	return n.columns[c]
}

// Duration returns the typed duration behind the duration column.
func (n *Node) Duration() time.Duration { return n.duration }

func (n *Node) Playing() bool { return n.playing }

func (n *Node) Flags() Flags { return n.flags }

// Parent returns the owning node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the child at row, or nil when out of range.
func (n *Node) Child(row int) *Node {
	if row < 0 || row >= len(n.children) {
		return nil
	}
	return n.children[row]
}

// Row returns the node's position within its parent, -1 for the root.
func (n *Node) Row() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) isContainer() bool { return n.kind != KindLeaf }

// visible applies the search bit and, unless showDisabled, the disabled bit.
func (n *Node) visible(showDisabled bool) bool {
	if n.kind == KindRoot {
		return true
	}
	if n.flags&FlagSearchHidden != 0 {
		return false
	}
	return showDisabled || n.flags&FlagDisabled == 0
}

// insertChild links c under n at backend position pos and display row
// row. Out-of-range values append. It returns the display row used.
func (n *Node) insertChild(c *Node, pos, row int) int {
	if pos < 0 || pos > len(n.order) {
		pos = len(n.order)
	}
	n.order = append(n.order, nil)
	copy(n.order[pos+1:], n.order[pos:])
	n.order[pos] = c
	n.renumber(pos)

	row = n.insertRow(c, row)
	c.parent = n
	return row
}

// insertRow places c in display order only.
func (n *Node) insertRow(c *Node, row int) int {
	if row < 0 || row > len(n.children) {
		row = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[row+1:], n.children[row:])
	n.children[row] = c
	return row
}

// removeRow takes the child at row out of display order only.
func (n *Node) removeRow(row int) *Node {
	c := n.children[row]
	copy(n.children[row:], n.children[row+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	return c
}

func (n *Node) removeChild(row int) *Node {
	c := n.removeRow(row)
	if i := c.seq; i < len(n.order) && n.order[i] == c {
		copy(n.order[i:], n.order[i+1:])
		n.order[len(n.order)-1] = nil
		n.order = n.order[:len(n.order)-1]
		n.renumber(i)
	}
	c.parent = nil
	return c
}

// dropChildren unlinks every child and returns them.
func (n *Node) dropChildren() []*Node {
	old := n.children
	for _, c := range old {
		c.parent = nil
	}
	n.children, n.order = nil, nil
	return old
}

func (n *Node) renumber(from int) {
	for i := from; i < len(n.order); i++ {
		n.order[i].seq = i
	}
}

// isUnder reports whether n is anc or one of its descendants.
func (n *Node) isUnder(anc *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == anc {
			return true
		}
	}
	return false
}

// walk visits n and its descendants in pre-order until fn returns false.
func (n *Node) walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}
