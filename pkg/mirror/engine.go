package mirror

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/debug"
	"github.com/vanderheijden86/plmirror/pkg/metrics"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

// SyncEngine applies queued events to the tree and the index, reporting the
// minimal row ranges to listeners. It only runs on the owning goroutine.
type SyncEngine struct {
	be      backend.Backend
	space   *AddressSpace
	ls      listeners
	query   string
	sort    sortKey
	allCols []int
}

func newSyncEngine(be backend.Backend, space *AddressSpace) *SyncEngine {
	e := &SyncEngine{be: be, space: space}
	for i := range space.columns {
		e.allCols = append(e.allCols, i)
	}
	return e
}

func (e *SyncEngine) lookup(id int64) *Node { return e.space.index.LookupByID(id) }

func (e *SyncEngine) invariant(cond bool, format string, args ...any) bool {
	if !cond {
		metrics.InvariantBreaches.Inc()
	}
	return debug.Invariant(cond, format, args...)
}

func (e *SyncEngine) apply(ev Event) {
	switch ev := ev.(type) {
	case Appended:
		e.append(ev.Parent, ev.Item)
	case Removed:
		e.remove(ev.ID)
	case InputUpdated:
		e.updateInput(ev.Input)
	case SubtreeInvalidated:
		e.rebuild(ev.ID)
	case searchRequested:
		e.search(ev.query)
	case sortRequested:
		e.sortBy(ev.column, ev.order)
	default:
		debug.Log("mirror: ignoring unknown event %v", ev)
	}
}

// covers reports whether a rebuild of rebuildID re-reads everything ev
// would change. Identities unknown to the tree are never covered.
func (e *SyncEngine) covers(rebuildID int64, ev Event) bool {
	x := e.lookup(rebuildID)
	if x == nil {
		return false
	}
	switch ev := ev.(type) {
	case Appended:
		p := e.lookup(ev.Parent)
		return p != nil && p.isUnder(x)
	case Removed:
		t := e.lookup(ev.ID)
		return t != nil && t != x && t.isUnder(x)
	case SubtreeInvalidated:
		t := e.lookup(ev.ID)
		return t != nil && t.isUnder(x)
	}
	return false
}

// validate wraps descriptor problems in ErrMalformedItem.
func validate(it model.Item) error {
	if err := it.Validate(); err != nil {
		return fmt.Errorf("%w: item %d: %w", ErrMalformedItem, it.ID, err)
	}
	return nil
}

func (e *SyncEngine) skipMalformed(err error) {
	metrics.MalformedItems.Inc()
	debug.Log("mirror: skipping: %v", err)
}

func (e *SyncEngine) stale(format string, args ...any) {
	metrics.StaleEvents.Inc()
	debug.Log("mirror: stale "+format, args...)
}

// notifyFlipped reports containers whose search visibility changed.
func (e *SyncEngine) notifyFlipped(flipped []*Node, except *Node) {
	for _, n := range flipped {
		if n != except {
			e.ls.dataChanged(nodeAddress(n, 0), e.allCols)
		}
	}
}

func (e *SyncEngine) append(parentID int64, it model.Item) {
	if err := validate(it); err != nil {
		e.skipMalformed(err)
		return
	}
	parent := e.lookup(parentID)
	if parent == nil || !parent.isContainer() {
		e.stale("append of %d under %d", it.ID, parentID)
		return
	}
	if existing := e.lookup(it.ID); existing != nil {
		if existing.parent == parent {
			// Already there, typically from the initial build.
			e.refreshNode(existing, it)
			return
		}
		if !e.invariant(existing != e.space.root && !parent.isUnder(existing),
			"append of %d under %d would create a cycle", it.ID, parentID) {
			return
		}
		e.invariant(false, "identity %d appended under %d while live under %d", it.ID, parentID, existing.parent.id)
		e.removeNode(existing)
	}

	n := newNode(it)
	row := parent.insertChild(n, it.Position, it.Position)
	if e.sort.active {
		parent.removeRow(row)
		row = parent.insertRow(n, e.sort.insertRow(parent, n))
	}
	e.space.index.register(n)

	var flipped []*Node
	if e.query != "" {
		n.applySearch(e.query)
		flipped = refreshAncestors(parent, e.query)
	}
	e.ls.rowsInserted(nodeAddress(parent, 0), row, row)
	e.notifyFlipped(flipped, nil)
}

func (e *SyncEngine) remove(id int64) {
	n := e.lookup(id)
	if n == nil {
		e.stale("removal of %d", id)
		return
	}
	if !e.invariant(n != e.space.root, "removal of the mirror root %d", id) {
		return
	}
	e.removeNode(n)
}

func (e *SyncEngine) removeNode(n *Node) {
	parent := n.parent
	row := n.Row()
	pa := nodeAddress(parent, 0)
	e.ls.rowsAboutToBeRemoved(pa, row, row)
	parent.removeChild(row)
	e.space.index.unregister(n)
	e.ls.rowsRemoved(pa, row, row)
	if e.query != "" {
		e.notifyFlipped(refreshAncestors(parent, e.query), nil)
	}
}

// refreshNode recomputes the cached fields of n from it and reports the
// display columns that changed. Under a sort, a changed sort key moves the
// row to where a fresh sort would put it.
func (e *SyncEngine) refreshNode(n *Node, it model.Item) {
	before, beforeDur := n.columns, n.duration
	if !n.refresh(it) {
		return
	}
	if e.sort.active && (before[e.sort.column] != n.columns[e.sort.column] || beforeDur != n.duration) {
		e.resort(n)
	}
	var cols []int
	for i, c := range e.space.columns {
		if before[c] != n.columns[c] {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		cols = e.allCols
	}
	e.ls.dataChanged(nodeAddress(n, 0), cols)
	if e.query != "" && before[searchColumn] != n.columns[searchColumn] {
		e.notifyFlipped(refreshAncestors(n, e.query), n)
	}
}

// resort moves n within its parent's display order, reported as a removal
// and an insertion.
func (e *SyncEngine) resort(n *Node) {
	parent := n.parent
	if parent == nil || len(parent.children) < 2 {
		return
	}
	from := n.Row()
	parent.removeRow(from)
	to := e.sort.insertRow(parent, n)
	parent.insertRow(n, from)
	if to == from {
		return
	}
	pa := nodeAddress(parent, 0)
	e.ls.rowsAboutToBeRemoved(pa, from, from)
	parent.removeRow(from)
	e.ls.rowsRemoved(pa, from, from)
	parent.insertRow(n, to)
	e.ls.rowsInserted(pa, to, to)
}

func (e *SyncEngine) updateInput(input int64) {
	nodes := e.space.index.AllByInput(input)
	if len(nodes) == 0 {
		e.stale("update of input %d", input)
		return
	}
	for _, n := range nodes {
		it, ok := e.be.FetchItem(n.id)
		if !ok {
			// A removal is on its way.
			continue
		}
		if err := validate(it); err != nil {
			e.skipMalformed(err)
			continue
		}
		e.refreshNode(n, it)
	}
}

// fetched is a backend subtree read ahead of a rebuild.
type fetched struct {
	item     model.Item
	children []fetched
}

// fetchTree reads the children of id recursively. Items that would nest the
// rebuilt node under itself, or that appear twice, are skipped.
func (e *SyncEngine) fetchTree(target *Node, id int64, seen map[int64]bool) ([]fetched, error) {
	items, err := e.be.FetchChildren(id)
	if err != nil {
		return nil, err
	}
	out := make([]fetched, 0, len(items))
	for _, it := range items {
		if err := validate(it); err != nil {
			e.skipMalformed(err)
			continue
		}
		if seen[it.ID] {
			e.invariant(false, "identity %d listed twice below %d", it.ID, target.id)
			continue
		}
		if live := e.lookup(it.ID); live != nil && target.isUnder(live) {
			e.invariant(false, "identity %d listed below its own descendant %d", it.ID, target.id)
			continue
		}
		seen[it.ID] = true
		f := fetched{item: it}
		if it.Kind == model.KindCategory {
			if f.children, err = e.fetchTree(target, it.ID, seen); err != nil && !errors.Is(err, backend.ErrNotFound) {
				return nil, err
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func (e *SyncEngine) attach(parent *Node, tree []fetched) {
	for _, f := range tree {
		n := newNode(f.item)
		parent.insertChild(n, -1, -1)
		e.space.index.register(n)
		e.attach(n, f.children)
	}
}

// rebuild replaces the children of id with a fresh read from the backend.
func (e *SyncEngine) rebuild(id int64) {
	n := e.lookup(id)
	if n == nil {
		e.stale("rebuild of %d", id)
		return
	}
	if !n.isContainer() {
		return
	}
	defer metrics.Timer(metrics.SubtreeRebuild)()

	seen := make(map[int64]bool)
	tree, err := e.fetchTree(n, n.id, seen)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			e.stale("rebuild of %d: %v", id, err)
			return
		}
		log.Printf("warning: rebuilding %d: %v", id, err)
		return
	}

	pa := nodeAddress(n, 0)
	if k := len(n.children); k > 0 {
		e.ls.rowsAboutToBeRemoved(pa, 0, k-1)
		for _, c := range n.dropChildren() {
			e.space.index.unregister(c)
		}
		e.ls.rowsRemoved(pa, 0, k-1)
	}

	// Identities still live elsewhere moved here; the backend is the
	// authority, so they are taken over.
	ids := make([]int64, 0, len(seen))
	for sid := range seen {
		ids = append(ids, sid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, sid := range ids {
		if live := e.lookup(sid); live != nil && live.parent != nil {
			e.removeNode(live)
		}
	}

	e.attach(n, tree)
	e.sort.apply(n)
	var flipped []*Node
	if e.query != "" {
		for _, c := range n.children {
			c.applySearch(e.query)
		}
		flipped = refreshAncestors(n, e.query)
	}
	if k := len(n.children); k > 0 {
		e.ls.rowsInserted(pa, 0, k-1)
	}
	e.notifyFlipped(flipped, nil)
}

func (e *SyncEngine) search(query string) {
	defer metrics.Timer(metrics.SearchPass)()
	q := normalizeQuery(query)
	e.ls.layoutAboutToChange()
	e.query = q
	e.space.root.applySearch(q)
	e.ls.layoutChanged()
}

func (e *SyncEngine) sortBy(col model.Column, order SortOrder) {
	defer metrics.Timer(metrics.SortPass)()
	e.ls.layoutAboutToChange()
	e.sort = sortKey{active: true, column: col, order: order}
	e.sort.apply(e.space.root)
	e.ls.layoutChanged()
}

// teardown drops the whole tree without notifying listeners.
func (e *SyncEngine) teardown() {
	e.space.root.dropChildren()
	e.space.index.reset()
}
