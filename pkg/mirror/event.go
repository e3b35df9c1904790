package mirror

import (
	"fmt"

	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

// Event is an immutable change record waiting in the ChangeQueue.
type Event interface {
	fmt.Stringer
	isEvent()
}

// Appended asks for a new node for Item under Parent.
type Appended struct {
	Parent int64
	Item   model.Item
}

// Removed asks for ID and its subtree to go away.
type Removed struct {
	ID int64
}

// InputUpdated reports changed metadata for every node sharing Input.
type InputUpdated struct {
	Input int64
}

// SubtreeInvalidated asks for the children of ID to be rebuilt from the
// backend.
type SubtreeInvalidated struct {
	ID int64
}

type searchRequested struct {
	query string
}

type sortRequested struct {
	column model.Column
	order  SortOrder
}

func (Appended) isEvent()           {}
func (Removed) isEvent()            {}
func (InputUpdated) isEvent()       {}
func (SubtreeInvalidated) isEvent() {}
func (searchRequested) isEvent()    {}
func (sortRequested) isEvent()      {}

func (e Appended) String() string { return fmt.Sprintf("appended(%d under %d)", e.Item.ID, e.Parent) }
func (e Removed) String() string  { return fmt.Sprintf("removed(%d)", e.ID) }
func (e InputUpdated) String() string {
	return fmt.Sprintf("input_updated(%d)", e.Input)
}
func (e SubtreeInvalidated) String() string {
	return fmt.Sprintf("subtree_invalidated(%d)", e.ID)
}
func (e searchRequested) String() string { return fmt.Sprintf("search(%q)", e.query) }
func (e sortRequested) String() string {
	return fmt.Sprintf("sort(%s %s)", e.column, e.order)
}

// EventFor translates a backend notification into a queue event.
func EventFor(n backend.Notification) (Event, bool) {
	switch n.Kind {
	case backend.ItemAdded:
		return Appended{Parent: n.ParentID, Item: n.Item}, true
	case backend.ItemRemoved:
		return Removed{ID: n.ID}, true
	case backend.ItemUpdated:
		return InputUpdated{Input: n.InputID}, true
	case backend.SubtreeChanged:
		return SubtreeInvalidated{ID: n.ID}, true
	}
	return nil, false
}
