package mirror

import (
	"fmt"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// Address is an opaque (parent, row, column) handle for the display layer.
// The zero Address stands for the root, which has no address of its own.
type Address struct {
	parent int64
	row    int
	column int
	id     int64
	valid  bool
	none   bool
}

var (
	// RootAddress is the sentinel parent of top-level rows.
	RootAddress = Address{}
	// NoAddress is returned alongside errors. It never resolves.
	NoAddress = Address{row: -1, none: true}
)

func (a Address) IsValid() bool { return a.valid }
func (a Address) Row() int      { return a.row }
func (a Address) Column() int   { return a.column }

// ID returns the identity the address was issued for. Selections should be
// kept by identity and re-resolved with AddressOf after structural changes.
func (a Address) ID() int64 { return a.id }

// WithColumn returns the sibling address in column col.
func (a Address) WithColumn(col int) Address {
	a.column = col
	return a
}

func (a Address) String() string {
	if a.none {
		return "none"
	}
	if !a.valid {
		return "root"
	}
	return fmt.Sprintf("%d[%d,%d]#%d", a.parent, a.row, a.column, a.id)
}

func nodeAddress(n *Node, col int) Address {
	if n == nil || n.parent == nil {
		return RootAddress
	}
	return Address{parent: n.parent.id, row: n.Row(), column: col, id: n.id, valid: true}
}

// AddressSpace maps nodes to addresses and back, rejecting stale handles.
type AddressSpace struct {
	root         *Node
	index        *IdentityIndex
	columns      []model.Column
	showDisabled bool
	closed       bool
}

// resolve returns the node behind a, or ErrStaleAddress when the parent is
// gone or the row no longer holds the same identity.
func (s *AddressSpace) resolve(a Address) (*Node, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.index == nil || a.none {
		return nil, fmt.Errorf("%s: %w", a, ErrNotFound)
	}
	if !a.valid {
		return s.root, nil
	}
	parent := s.index.LookupByID(a.parent)
	if parent == nil {
		return nil, fmt.Errorf("%s: %w", a, ErrStaleAddress)
	}
	child := parent.Child(a.row)
	if child == nil || child.id != a.id {
		return nil, fmt.Errorf("%s: %w", a, ErrStaleAddress)
	}
	return child, nil
}

// ColumnCount returns the number of configured display columns.
func (s *AddressSpace) ColumnCount() int { return len(s.columns) }

// Columns returns the configured display columns.
func (s *AddressSpace) Columns() []model.Column {
	return append([]model.Column(nil), s.columns...)
}

// Index returns the address of the child at row under parent.
func (s *AddressSpace) Index(parent Address, row, col int) (Address, error) {
	p, err := s.resolve(parent)
	if err != nil {
		return NoAddress, err
	}
	c := p.Child(row)
	if c == nil || col < 0 || col >= len(s.columns) {
		return NoAddress, fmt.Errorf("row %d col %d under %s: %w", row, col, parent, ErrNotFound)
	}
	return Address{parent: p.id, row: row, column: col, id: c.id, valid: true}, nil
}

// AddressOf returns the current address of identity id.
func (s *AddressSpace) AddressOf(id int64, col int) (Address, error) {
	if s.closed {
		return NoAddress, ErrClosed
	}
	if s.index == nil {
		return NoAddress, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	n := s.index.LookupByID(id)
	if n == nil {
		return NoAddress, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return nodeAddress(n, col), nil
}

// ChildCount returns the number of rows under a.
func (s *AddressSpace) ChildCount(a Address) (int, error) {
	n, err := s.resolve(a)
	if err != nil {
		return 0, err
	}
	return n.ChildCount(), nil
}

// ValueAt returns the cached text of display column col for a.
func (s *AddressSpace) ValueAt(a Address, col int) (string, error) {
	n, err := s.resolve(a)
	if err != nil {
		return "", err
	}
	if col < 0 || col >= len(s.columns) {
		return "", fmt.Errorf("column %d: %w", col, ErrNotFound)
	}
	return n.Value(s.columns[col]), nil
}

// ParentOf returns the address of a's parent; RootAddress for top-level rows.
func (s *AddressSpace) ParentOf(a Address) (Address, error) {
	n, err := s.resolve(a)
	if err != nil {
		return NoAddress, err
	}
	return nodeAddress(n.parent, 0), nil
}

// IsVisible reports whether a passes the active search and the disabled
// filter. Hidden rows keep their addresses.
func (s *AddressSpace) IsVisible(a Address) (bool, error) {
	n, err := s.resolve(a)
	if err != nil {
		return false, err
	}
	return n.visible(s.showDisabled), nil
}

// IsPlaying reports whether a is the item currently playing.
func (s *AddressSpace) IsPlaying(a Address) (bool, error) {
	n, err := s.resolve(a)
	if err != nil {
		return false, err
	}
	return n.playing, nil
}

// ItemType returns the presentation type of a.
func (s *AddressSpace) ItemType(a Address) (model.ItemType, error) {
	n, err := s.resolve(a)
	if err != nil {
		return model.TypeUnknown, err
	}
	return n.itemType, nil
}

// Identity returns the identity behind a after checking it is still live.
func (s *AddressSpace) Identity(a Address) (int64, error) {
	n, err := s.resolve(a)
	if err != nil {
		return 0, err
	}
	return n.id, nil
}

// ShowDisabled reports whether disabled items count as visible.
func (s *AddressSpace) ShowDisabled() bool { return s.showDisabled }

// NodeAt exposes the node behind a for read-only use on the owning
// goroutine.
func (s *AddressSpace) NodeAt(a Address) (*Node, error) {
	return s.resolve(a)
}
