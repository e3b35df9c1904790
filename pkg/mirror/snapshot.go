package mirror

import (
	"time"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// SnapshotNode is a detached copy of a node and its subtree.
type SnapshotNode struct {
	ID       int64          `json:"id"`
	InputID  int64          `json:"input_id,omitempty"`
	Kind     string         `json:"kind"`
	Type     model.ItemType `json:"type"`
	Values   []string       `json:"values"`
	Duration time.Duration  `json:"duration_ns,omitempty"`
	Playing  bool           `json:"playing,omitempty"`
	Hidden   bool           `json:"hidden,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
	Children []SnapshotNode `json:"children,omitempty"`
}

// Walk visits s and its descendants in pre-order.
func (s SnapshotNode) Walk(fn func(SnapshotNode)) {
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}

// IDs returns every identity below s in pre-order.
func (s SnapshotNode) IDs() []int64 {
	var ids []int64
	for _, c := range s.Children {
		c.Walk(func(n SnapshotNode) { ids = append(ids, n.ID) })
	}
	return ids
}

func (m *Mirror) snapshot(n *Node) SnapshotNode {
	s := SnapshotNode{
		ID:       n.id,
		InputID:  n.input,
		Kind:     n.kind.String(),
		Type:     n.itemType,
		Duration: n.duration,
		Playing:  n.playing,
		Hidden:   !n.visible(m.showDisabled),
		Disabled: n.flags&FlagDisabled != 0,
	}
	for _, c := range m.columns {
		s.Values = append(s.Values, n.Value(c))
	}
	for _, c := range n.children {
		s.Children = append(s.Children, m.snapshot(c))
	}
	return s
}

// Snapshot returns a deep copy of the current tree. The zero value is
// returned before Start and after Close.
func (m *Mirror) Snapshot() SnapshotNode {
	if m.root == nil || m.closed {
		return SnapshotNode{}
	}
	return m.snapshot(m.root)
}
