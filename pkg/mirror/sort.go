package mirror

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// SortOrder is the direction of a column sort.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// ParseSortOrder accepts "asc"/"ascending" and "desc"/"descending".
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown sort order %q", s)
}

// sortKey is the active sort. The zero value means backend order.
type sortKey struct {
	active bool
	column model.Column
	order  SortOrder
}

func compareNodes(a, b *Node, col model.Column) int {
	if col == model.ColumnDuration {
		switch {
		case a.duration < b.duration:
			return -1
		case a.duration > b.duration:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a.Value(col)), strings.ToLower(b.Value(col)))
}

// less orders siblings a and b; ties fall back to backend order, so the
// result matches a stable sort of the backend's children.
func (k sortKey) less(a, b *Node) bool {
	c := compareNodes(a, b, k.column)
	if k.order == Descending {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// apply sorts every container below n, n included.
func (k sortKey) apply(n *Node) {
	if !k.active {
		return
	}
	n.walk(func(c *Node) bool {
		if len(c.children) > 1 {
			sort.SliceStable(c.children, func(i, j int) bool {
				return k.less(c.children[i], c.children[j])
			})
		}
		return true
	})
}

// insertRow returns the row a new child of parent goes to: after every
// sibling that does not sort after it.
func (k sortKey) insertRow(parent, n *Node) int {
	return sort.Search(len(parent.children), func(i int) bool {
		return k.less(n, parent.children[i])
	})
}
