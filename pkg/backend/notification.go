// Package backend provides the playlist collections a mirror can follow.
//
// A backend owns the authoritative playlist state. It reports every change
// to its subscribers through a Notification and answers point-in-time
// queries (FetchChildren, FetchItem). Subscriber callbacks may run on any
// goroutine; they must not mutate the backend they were called from.
package backend

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// DefaultRootID is the identity of the top-level playlist node.
const DefaultRootID int64 = 1

// NotificationKind classifies a backend change.
type NotificationKind int

const (
	// ItemAdded reports a new item under ParentID, described by Item.
	ItemAdded NotificationKind = iota
	// ItemRemoved reports the removal of ID and its whole subtree.
	ItemRemoved
	// ItemUpdated reports changed metadata for every item sharing InputID.
	ItemUpdated
	// SubtreeChanged reports a reorder or unknown change below ID.
	SubtreeChanged
)

func (k NotificationKind) String() string {
	switch k {
	case ItemAdded:
		return "item_added"
	case ItemRemoved:
		return "item_removed"
	case ItemUpdated:
		return "item_updated"
	case SubtreeChanged:
		return "subtree_changed"
	default:
		return "unknown"
	}
}

// Notification is an immutable change record handed to subscribers.
type Notification struct {
	Kind     NotificationKind
	ID       int64
	ParentID int64
	InputID  int64
	Item     model.Item
}

func (n Notification) String() string {
	switch n.Kind {
	case ItemAdded:
		return fmt.Sprintf("%s(%d under %d)", n.Kind, n.ID, n.ParentID)
	case ItemUpdated:
		return fmt.Sprintf("%s(input %d)", n.Kind, n.InputID)
	default:
		return fmt.Sprintf("%s(%d)", n.Kind, n.ID)
	}
}

// SubscriptionID identifies a registered callback.
type SubscriptionID int64

// Mode is a playback toggle kept by the backend.
type Mode int

const (
	ModeRandom Mode = iota
	ModeLoop
	ModeRepeat
)

func (m Mode) String() string {
	switch m {
	case ModeRandom:
		return "random"
	case ModeLoop:
		return "loop"
	case ModeRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// Common errors.
var (
	ErrNotFound     = errors.New("item not found")
	ErrNotContainer = errors.New("item cannot have children")
	ErrCycle        = errors.New("cannot move an item below itself")
	ErrRootRemoval  = errors.New("the playlist root cannot be removed")
	ErrDuplicateID  = errors.New("item id already in use")
)
