package mirror

import (
	"strings"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// searchColumn is the column a search query matches against.
const searchColumn = model.ColumnTitle

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func (n *Node) matches(query string) bool {
	return query == "" || strings.Contains(strings.ToLower(n.columns[searchColumn]), query)
}

func (n *Node) setHidden(hidden bool) bool {
	was := n.flags&FlagSearchHidden != 0
	if hidden {
		n.flags |= FlagSearchHidden
	} else {
		n.flags &^= FlagSearchHidden
	}
	return was != hidden
}

// applySearch recomputes the search bit for n and its descendants and
// reports whether n ended up visible.
func (n *Node) applySearch(query string) bool {
	shown := false
	for _, c := range n.children {
		if c.applySearch(query) {
			shown = true
		}
	}
	if n.kind == KindRoot {
		n.setHidden(false)
		return true
	}
	visible := n.matches(query) || (n.isContainer() && shown)
	n.setHidden(!visible)
	return visible
}

func (n *Node) anyChildShown() bool {
	for _, c := range n.children {
		if c.flags&FlagSearchHidden == 0 {
			return true
		}
	}
	return false
}

// refreshAncestors recomputes the search bit of n and its ancestors after a
// child of n appeared, vanished or changed. It returns the containers whose
// visibility flipped.
func refreshAncestors(n *Node, query string) []*Node {
	var flipped []*Node
	for cur := n; cur != nil && cur.kind != KindRoot; cur = cur.parent {
		visible := cur.matches(query) || cur.anyChildShown()
		if !cur.setHidden(!visible) {
			break
		}
		flipped = append(flipped, cur)
	}
	return flipped
}
