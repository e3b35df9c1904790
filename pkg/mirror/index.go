package mirror

import "github.com/vanderheijden86/plmirror/pkg/metrics"

// IdentityIndex resolves backend identities to live nodes.
//
// Each lookup kind keeps a single slot holding the most recently resolved
// node, since notification bursts tend to hit the same node repeatedly.
// Identity misses fall back to a hash index; input misses walk the tree.
type IdentityIndex struct {
	root *Node
	byID map[int64]*Node

	lastByID    *Node
	lastByInput *Node
}

func newIdentityIndex(root *Node) *IdentityIndex {
	x := &IdentityIndex{root: root, byID: make(map[int64]*Node)}
	x.byID[root.id] = root
	return x
}

// LookupByID returns the live node with identity id, or nil.
func (x *IdentityIndex) LookupByID(id int64) *Node {
	if n := x.lastByID; n != nil && n.id == id {
		metrics.IndexByID.Hit()
		return n
	}
	metrics.IndexByID.Miss()
	n := x.byID[id]
	if n != nil {
		x.lastByID = n
	}
	return n
}

// LookupByInput returns one live node whose input identity is input, or
// nil. Which one is unspecified when several share the input.
func (x *IdentityIndex) LookupByInput(input int64) *Node {
	if input == 0 {
		return nil
	}
	if n := x.lastByInput; n != nil && n.input == input {
		metrics.IndexByInput.Hit()
		return n
	}
	metrics.IndexByInput.Miss()
	var found *Node
	x.root.walk(func(n *Node) bool {
		if n.input == input {
			found = n
			return false
		}
		return true
	})
	if found != nil {
		x.lastByInput = found
	}
	return found
}

// AllByInput walks the whole tree for every node sharing input.
func (x *IdentityIndex) AllByInput(input int64) []*Node {
	if input == 0 {
		return nil
	}
	var out []*Node
	x.root.walk(func(n *Node) bool {
		if n.input == input {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Len returns the number of registered nodes, root included.
func (x *IdentityIndex) Len() int {
	return len(x.byID)
}

// register adds n and returns any node already holding its identity.
func (x *IdentityIndex) register(n *Node) *Node {
	prev := x.byID[n.id]
	x.byID[n.id] = n
	if x.lastByID != nil && x.lastByID.id == n.id {
		x.lastByID = n
	}
	return prev
}

// unregister drops n and its whole subtree, children first, and clears any
// slot pointing into it.
func (x *IdentityIndex) unregister(n *Node) {
	for _, c := range n.children {
		x.unregister(c)
	}
	if x.byID[n.id] == n {
		delete(x.byID, n.id)
	}
	if x.lastByID == n {
		x.lastByID = nil
	}
	if x.lastByInput == n {
		x.lastByInput = nil
	}
}

func (x *IdentityIndex) reset() {
	x.byID = map[int64]*Node{x.root.id: x.root}
	x.lastByID, x.lastByInput = nil, nil
}
