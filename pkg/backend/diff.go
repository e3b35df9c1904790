package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// Diff summarizes how Replace turned one playlist state into another.
type Diff struct {
	// Added lists items that did not exist before, in pre-order.
	Added []int64
	// Removed lists the topmost items that no longer exist.
	Removed []int64
	// Updated lists inputs whose metadata changed.
	Updated []int64
	// Restructured lists containers whose child order changed or whose
	// children moved in or out; they are reported as SubtreeChanged.
	Restructured []int64
	// Skipped counts items that could not be placed.
	Skipped int
}

// Empty reports whether the replacement changed nothing.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0 && len(d.Restructured) == 0
}

// Summary returns a human-readable summary of the differences.
func (d Diff) Summary() string {
	if d.Empty() {
		return "playlist unchanged"
	}
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Updated); n > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", n))
	}
	if n := len(d.Restructured); n > 0 {
		parts = append(parts, fmt.Sprintf("%d reordered", n))
	}
	if d.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", d.Skipped))
	}
	return strings.Join(parts, ", ")
}

func sameMetadata(a, b model.Item) bool {
	return a.Title == b.Title && a.Artist == b.Artist && a.Album == b.Album &&
		a.Genre == b.Genre && a.Duration == b.Duration && a.URI == b.URI &&
		a.Disabled == b.Disabled && a.Type == b.Type
}

// Replace swaps the whole playlist content for items and notifies the
// smallest set of changes it can describe. Items with ParentID zero go
// under the root; a parent must precede its children. Items that cannot be
// placed are skipped and counted.
func (p *Playlist) Replace(items []model.Item) (Diff, error) {
	p.mu.Lock()

	var diff Diff
	next := make(map[int64]*entry, len(items)+1)
	root := *p.entries[p.rootID]
	root.children = nil
	next[p.rootID] = &root

	nextID, nextInput := p.rootID+1, int64(1)
	for _, it := range items {
		if it.ParentID == 0 {
			it.ParentID = p.rootID
		}
		if it.Kind == model.KindLeaf && it.InputID == 0 {
			it.InputID = it.ID
		}
		if it.Type == "" {
			if it.Kind == model.KindCategory {
				it.Type = model.TypeNode
			} else {
				it.Type = model.TypeFile
			}
		}
		parent, ok := next[it.ParentID]
		_, dup := next[it.ID]
		if !ok || dup || it.ID == p.rootID || parent.item.Kind != model.KindCategory || it.Validate() != nil {
			diff.Skipped++
			continue
		}
		it.Playing = false
		parent.children = append(parent.children, it.ID)
		next[it.ID] = &entry{item: it}
		if it.ID >= nextID {
			nextID = it.ID + 1
		}
		if it.InputID >= nextInput {
			nextInput = it.InputID + 1
		}
	}

	old := p.entries
	restructured := make(map[int64]bool)
	mark := func(id int64) {
		if _, ok := next[id]; ok && !restructured[id] {
			restructured[id] = true
		}
	}

	// Children that moved between containers restructure both ends; a kind
	// change is treated as a move in place.
	for id, e := range next {
		if prev, ok := old[id]; ok && id != p.rootID && (prev.item.ParentID != e.item.ParentID || prev.item.Kind != e.item.Kind) {
			mark(prev.item.ParentID)
			mark(e.item.ParentID)
		}
	}
	// Surviving siblings must keep their relative order.
	for id, e := range next {
		prev, ok := old[id]
		if !ok || e.item.Kind != model.KindCategory {
			continue
		}
		var before, after []int64
		for _, cid := range prev.children {
			if c, ok := next[cid]; ok && c.item.ParentID == id {
				before = append(before, cid)
			}
		}
		for _, cid := range e.children {
			if c, ok := old[cid]; ok && c.item.ParentID == id {
				after = append(after, cid)
			}
		}
		if !equalIDs(before, after) {
			mark(id)
		}
		if id != p.rootID && !sameMetadata(prev.item, e.item) {
			mark(e.item.ParentID)
		}
	}

	covered := func(id int64) bool {
		for cur := id; ; {
			e, ok := next[cur]
			if !ok {
				return false
			}
			if restructured[e.item.ParentID] {
				return true
			}
			if cur == p.rootID || e.item.ParentID == cur {
				return false
			}
			cur = e.item.ParentID
		}
	}

	var notes []Notification
	for id, e := range old {
		if _, ok := next[id]; ok || id == p.rootID {
			continue
		}
		if _, parentLive := next[e.item.ParentID]; !parentLive {
			continue
		}
		diff.Removed = append(diff.Removed, id)
	}
	sortIDs(diff.Removed)
	for _, id := range diff.Removed {
		notes = append(notes, Notification{Kind: ItemRemoved, ID: id, ParentID: old[id].item.ParentID})
	}

	p.entries = next
	p.nextID, p.nextInput = nextID, nextInput
	if p.playingInput != 0 && !p.inputLive(p.playingInput) {
		p.playingInput = 0
	}

	seenInput := make(map[int64]bool)
	var walk func(id int64)
	walk = func(id int64) {
		for _, cid := range next[id].children {
			e := next[cid]
			prev, existed := old[cid]
			switch {
			case covered(cid):
			case !existed:
				diff.Added = append(diff.Added, cid)
				notes = append(notes, Notification{Kind: ItemAdded, ID: cid, ParentID: id, InputID: e.item.InputID, Item: p.snapshot(e)})
			case e.item.Kind == model.KindLeaf && !sameMetadata(prev.item, e.item) && !seenInput[e.item.InputID]:
				seenInput[e.item.InputID] = true
				diff.Updated = append(diff.Updated, e.item.InputID)
				notes = append(notes, Notification{Kind: ItemUpdated, InputID: e.item.InputID})
			}
			walk(cid)
		}
	}
	walk(p.rootID)

	// Restructured containers go last: one that is new only exists for a
	// subscriber once its ItemAdded was delivered above.
	for id := range restructured {
		diff.Restructured = append(diff.Restructured, id)
	}
	sortIDs(diff.Restructured)
	for _, id := range diff.Restructured {
		if id != p.rootID && covered(id) {
			continue
		}
		notes = append(notes, Notification{Kind: SubtreeChanged, ID: id})
	}

	p.commit(notes)
	return diff, nil
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
