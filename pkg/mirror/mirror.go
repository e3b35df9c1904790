package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/debug"
	"github.com/vanderheijden86/plmirror/pkg/metrics"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

// Common errors.
var (
	ErrStaleAddress  = errors.New("address no longer refers to a live node")
	ErrNotFound      = errors.New("node not found")
	ErrClosed        = errors.New("mirror closed")
	ErrMalformedItem = errors.New("malformed item")
)

// Presentation maps an item type to the decoration shown next to it.
type Presentation map[model.ItemType]string

// Option configures a Mirror.
type Option func(*Mirror)

// WithColumns sets the display columns, in order.
func WithColumns(cols ...model.Column) Option {
	return func(m *Mirror) {
		m.AddressSpace.columns = append([]model.Column(nil), cols...)
	}
}

// WithPresentation injects per-type decorations. The map is copied.
func WithPresentation(p Presentation) Option {
	return func(m *Mirror) {
		m.presentation = make(Presentation, len(p))
		for k, v := range p {
			m.presentation[k] = v
		}
	}
}

// WithScheduler sets the hook invoked once per batch of posted events. It
// runs on the posting goroutine and must only arrange for Drain to be
// called on the owning goroutine.
func WithScheduler(fn func()) Option {
	return func(m *Mirror) {
		m.schedule = fn
	}
}

// WithListener registers l for change notifications.
func WithListener(l Listener) Option {
	return func(m *Mirror) {
		m.pendingListeners = append(m.pendingListeners, l)
	}
}

// WithShowDisabled makes disabled items count as visible.
func WithShowDisabled(show bool) Option {
	return func(m *Mirror) {
		m.AddressSpace.showDisabled = show
	}
}

// WithSort starts the mirror sorted by col.
func WithSort(col model.Column, order SortOrder) Option {
	return func(m *Mirror) {
		m.initialSort = sortKey{active: true, column: col, order: order}
	}
}

// Mirror follows one backend subtree and exposes it through addresses.
//
// Only Post and the backend callback are safe from other goroutines. Every
// other method, including Drain, belongs to the owning goroutine.
type Mirror struct {
	AddressSpace

	be     backend.Backend
	rootID int64
	queue  *ChangeQueue
	engine *SyncEngine

	presentation     Presentation
	schedule         func()
	pendingListeners []Listener
	initialSort      sortKey

	sub     backend.SubscriptionID
	started bool
}

// New creates a mirror of the subtree at rootID; zero means the backend
// root. Nothing is read until Start.
func New(be backend.Backend, rootID int64, opts ...Option) *Mirror {
	if rootID == 0 {
		rootID = be.RootID()
	}
	m := &Mirror{
		be:     be,
		rootID: rootID,
	}
	m.AddressSpace.columns = model.DefaultColumns()
	for _, opt := range opts {
		opt(m)
	}
	if len(m.AddressSpace.columns) == 0 {
		m.AddressSpace.columns = model.DefaultColumns()
	}
	m.queue = NewChangeQueue(m.schedule)
	return m
}

// Start subscribes to the backend and builds the initial tree.
//
// The subscription comes first so that no change slips between the
// initial read and the first event; events already reflected by the read
// converge to no-ops when drained.
func (m *Mirror) Start(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	defer metrics.Timer(metrics.InitialBuild)()

	top, ok := m.be.FetchItem(m.rootID)
	if !ok {
		return fmt.Errorf("mirror root %d: %w", m.rootID, ErrNotFound)
	}
	space := &m.AddressSpace
	space.root = newRoot(m.rootID, top)
	space.index = newIdentityIndex(space.root)
	m.engine = newSyncEngine(m.be, space)
	m.engine.ls = append(m.engine.ls, m.pendingListeners...)
	m.engine.sort = m.initialSort
	m.pendingListeners = nil

	m.sub = m.be.Subscribe(m.notify)
	m.started = true
	m.engine.rebuild(m.rootID)
	debug.Log("mirror: started on %d with %d nodes", m.rootID, space.index.Len()-1)
	return nil
}

func (m *Mirror) notify(n backend.Notification) {
	if ev, ok := EventFor(n); ok {
		m.queue.Post(ev)
	}
}

// Post enqueues ev as if the backend had reported it. Safe from any
// goroutine.
func (m *Mirror) Post(ev Event) {
	m.queue.Post(ev)
}

// Pending returns the number of queued events.
func (m *Mirror) Pending() int { return m.queue.Len() }

// Drain applies every queued event and returns how many were applied.
func (m *Mirror) Drain() int {
	if m.closed || !m.started {
		return 0
	}
	defer metrics.Timer(metrics.QueueDrain)()
	return m.queue.DrainAll(m.engine.covers, m.engine.apply)
}

// Close unsubscribes from the backend, then drops the tree. Events posted
// afterwards are discarded.
func (m *Mirror) Close() error {
	if m.closed {
		return nil
	}
	if m.started {
		m.be.Unsubscribe(m.sub)
	}
	m.queue.close()
	m.closed = true
	if m.engine != nil {
		m.engine.teardown()
	}
	return nil
}

// AddListener registers l. Must be called on the owning goroutine.
func (m *Mirror) AddListener(l Listener) {
	if m.engine == nil {
		m.pendingListeners = append(m.pendingListeners, l)
		return
	}
	m.engine.ls = append(m.engine.ls, l)
}

// RootID returns the identity the mirror follows.
func (m *Mirror) RootID() int64 { return m.rootID }

// Root returns the root node for read-only traversal.
func (m *Mirror) Root() *Node { return m.AddressSpace.root }

// Len returns the number of mirrored nodes below the root.
func (m *Mirror) Len() int {
	if m.AddressSpace.index == nil {
		return 0
	}
	return m.AddressSpace.index.Len() - 1
}

// LookupByID returns the live node with identity id, or nil.
func (m *Mirror) LookupByID(id int64) *Node {
	if m.AddressSpace.index == nil || m.closed {
		return nil
	}
	return m.AddressSpace.index.LookupByID(id)
}

// LookupByInput returns one live node for input, or nil.
func (m *Mirror) LookupByInput(input int64) *Node {
	if m.AddressSpace.index == nil || m.closed {
		return nil
	}
	return m.AddressSpace.index.LookupByInput(input)
}

// Query returns the active search text, lower-cased.
func (m *Mirror) Query() string {
	if m.engine == nil {
		return ""
	}
	return m.engine.query
}

// SortColumn returns the active sort, if any.
func (m *Mirror) SortColumn() (model.Column, SortOrder, bool) {
	k := m.initialSort
	if m.engine != nil {
		k = m.engine.sort
	}
	return k.column, k.order, k.active
}

func (m *Mirror) ids(addrs []Address) []int64 {
	ids := make([]int64, 0, len(addrs))
	for _, a := range addrs {
		n, err := m.resolve(a)
		if err != nil || n.kind == KindRoot {
			continue
		}
		ids = append(ids, n.id)
	}
	return ids
}

// RequestDelete asks the backend to delete the items at addrs and all
// their descendants. Stale addresses are skipped.
func (m *Mirror) RequestDelete(addrs ...Address) error {
	if m.closed {
		return ErrClosed
	}
	ids := m.ids(addrs)
	if len(ids) == 0 {
		return nil
	}
	return m.be.Delete(ids...)
}

// RequestMove asks the backend to move the items at addrs under dest,
// before the row currently at destRow; a row past the end appends.
func (m *Mirror) RequestMove(addrs []Address, dest Address, destRow int) error {
	target, err := m.resolve(dest)
	if err != nil {
		return err
	}
	if !target.isContainer() {
		return fmt.Errorf("move into %s: %w", dest, backend.ErrNotContainer)
	}
	ids := m.ids(addrs)
	if len(ids) == 0 {
		return nil
	}
	row := -1
	if anchor := target.Child(destRow); anchor != nil {
		// Mirror rows differ from backend rows under sort; translate
		// through the anchor's identity.
		siblings, err := m.be.FetchChildren(target.id)
		if err != nil {
			return err
		}
		for i, it := range siblings {
			if it.ID == anchor.id {
				row = i
				break
			}
		}
	}
	return m.be.Move(ids, target.id, row)
}

// RequestSearch filters the tree by a case-insensitive substring of the
// title. The empty string clears the search.
func (m *Mirror) RequestSearch(text string) {
	m.queue.Post(searchRequested{query: text})
}

// RequestSort sorts every container by col. Ties keep their order.
func (m *Mirror) RequestSort(col model.Column, order SortOrder) error {
	if col < 0 || col >= model.NumColumns {
		return fmt.Errorf("sort by column %d: %w", col, ErrNotFound)
	}
	m.queue.Post(sortRequested{column: col, order: order})
	return nil
}

// RequestActivate asks the backend to play the item at a. Activating a
// container plays its first leaf.
func (m *Mirror) RequestActivate(a Address) error {
	n, err := m.resolve(a)
	if err != nil {
		return err
	}
	var leaf *Node
	n.walk(func(c *Node) bool {
		if c.kind == KindLeaf {
			leaf = c
			return false
		}
		return true
	})
	if leaf == nil {
		return fmt.Errorf("activate %s: %w", a, ErrNotFound)
	}
	return m.be.Play(leaf.id)
}

// SetMode switches a playback toggle on the backend.
func (m *Mirror) SetMode(mode backend.Mode, on bool) {
	m.be.SetMode(mode, on)
}

// Mode reports a playback toggle.
func (m *Mirror) Mode(mode backend.Mode) bool {
	return m.be.Mode(mode)
}

// SetShowDisabled changes whether disabled items count as visible and
// tells listeners to re-read the layout.
func (m *Mirror) SetShowDisabled(show bool) {
	if m.showDisabled == show {
		return
	}
	if m.engine != nil && !m.closed {
		m.engine.ls.layoutAboutToChange()
	}
	m.showDisabled = show
	if m.engine != nil && !m.closed {
		m.engine.ls.layoutChanged()
	}
}

// Rebuild re-reads the whole subtree on the next Drain.
func (m *Mirror) Rebuild() {
	m.queue.Post(SubtreeInvalidated{ID: m.rootID})
}

// Decoration returns the injected decoration for the type of a.
func (m *Mirror) Decoration(a Address) (string, error) {
	n, err := m.resolve(a)
	if err != nil {
		return "", err
	}
	if d, ok := m.presentation[n.itemType]; ok {
		return d, nil
	}
	return m.presentation[model.TypeUnknown], nil
}
