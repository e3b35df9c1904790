// Package model defines the playlist item descriptor shared by backends,
// loaders and the mirror.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind separates containers from playable entries.
type Kind int

const (
	KindLeaf Kind = iota
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	default:
		return "leaf"
	}
}

// MarshalText encodes k by name so playlist files stay readable.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts "leaf" and "category"; empty means leaf.
func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "leaf", "item":
		*k = KindLeaf
	case "category", "node", "folder":
		*k = KindCategory
	default:
		return fmt.Errorf("unknown item kind %q", b)
	}
	return nil
}

// ItemType is the input type of an item, used for presentation only.
type ItemType string

const (
	TypeUnknown   ItemType = "unknown"
	TypeFile      ItemType = "file"
	TypeDirectory ItemType = "directory"
	TypeDisc      ItemType = "disc"
	TypeCard      ItemType = "card"
	TypeNet       ItemType = "net"
	TypePlaylist  ItemType = "playlist"
	TypeNode      ItemType = "node"
)

// IsValid reports whether t is one of the known item types.
func (t ItemType) IsValid() bool {
	switch t {
	case TypeUnknown, TypeFile, TypeDirectory, TypeDisc, TypeCard, TypeNet, TypePlaylist, TypeNode:
		return true
	}
	return false
}

// AppendPosition asks the receiver to place an item after its last sibling.
const AppendPosition = -1

// Item describes one backend playlist entry at a point in time.
type Item struct {
	ID       int64         `json:"id"`
	ParentID int64         `json:"parent_id"`
	InputID  int64         `json:"input_id,omitempty"`
	Kind     Kind          `json:"kind"`
	Type     ItemType      `json:"type,omitempty"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Album    string        `json:"album,omitempty"`
	Genre    string        `json:"genre,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	URI      string        `json:"uri,omitempty"`
	Disabled bool          `json:"disabled,omitempty"`
	Playing  bool          `json:"playing,omitempty"`
	Position int           `json:"position"`
}

// Validation errors.
var (
	ErrMissingID       = errors.New("item has no id")
	ErrMissingInput    = errors.New("leaf item has no input id")
	ErrNegativeLength  = errors.New("item has negative duration")
	ErrUnknownItemType = errors.New("unknown item type")
)

// Validate reports why an item cannot be mirrored, or nil.
func (it Item) Validate() error {
	if it.ID == 0 {
		return ErrMissingID
	}
	if it.Kind == KindLeaf && it.InputID == 0 {
		return fmt.Errorf("item %d: %w", it.ID, ErrMissingInput)
	}
	if it.Duration < 0 {
		return fmt.Errorf("item %d: %w", it.ID, ErrNegativeLength)
	}
	if it.Type != "" && !it.Type.IsValid() {
		return fmt.Errorf("item %d: %w: %q", it.ID, ErrUnknownItemType, it.Type)
	}
	return nil
}

// DisplayTitle falls back to the last URI segment when the title is empty.
func (it Item) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	uri := strings.TrimRight(it.URI, "/")
	if i := strings.LastIndexAny(uri, "/\\"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
