package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

type entry struct {
	item     model.Item
	children []int64
}

// Playlist is an in-memory playlist backend safe for concurrent use.
//
// Notifications are delivered on the goroutine that performed the mutation,
// after the state change is visible to readers and strictly in mutation
// order. Callbacks may call the read methods (FetchChildren, FetchItem) but
// must not mutate the playlist.
type Playlist struct {
	mu       sync.RWMutex
	notifyMu sync.Mutex

	rootID       int64
	entries      map[int64]*entry
	nextID       int64
	nextInput    int64
	playingInput int64
	modes        map[Mode]bool

	subs    map[SubscriptionID]func(Notification)
	nextSub SubscriptionID
}

// NewPlaylist creates an empty playlist rooted at DefaultRootID.
func NewPlaylist() *Playlist {
	return NewPlaylistWithRoot(DefaultRootID, "Playlist")
}

// NewPlaylistWithRoot creates an empty playlist with a custom root.
func NewPlaylistWithRoot(rootID int64, title string) *Playlist {
	p := &Playlist{
		rootID:    rootID,
		entries:   make(map[int64]*entry),
		nextID:    rootID + 1,
		nextInput: 1,
		modes:     make(map[Mode]bool),
		subs:      make(map[SubscriptionID]func(Notification)),
	}
	p.entries[rootID] = &entry{item: model.Item{
		ID:    rootID,
		Kind:  model.KindCategory,
		Type:  model.TypeNode,
		Title: title,
	}}
	return p
}

// RootID returns the identity of the playlist root.
func (p *Playlist) RootID() int64 {
	return p.rootID
}

// Subscribe registers fn for every future change.
func (p *Playlist) Subscribe(fn func(Notification)) SubscriptionID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	p.subs[p.nextSub] = fn
	return p.nextSub
}

// Unsubscribe removes a callback. When it returns, no delivery to that
// callback is in flight.
func (p *Playlist) Unsubscribe(id SubscriptionID) {
	p.mu.Lock()
	delete(p.subs, id)
	p.mu.Unlock()

	// Wait out a delivery that copied the old subscriber list.
	p.notifyMu.Lock()
	p.notifyMu.Unlock()
}

// commit must be called with p.mu held for writing. It releases p.mu and
// delivers notes in order.
func (p *Playlist) commit(notes []Notification) {
	if len(notes) == 0 {
		p.mu.Unlock()
		return
	}
	p.notifyMu.Lock()
	ids := make([]SubscriptionID, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	subs := make([]func(Notification), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, p.subs[id])
	}
	p.mu.Unlock()
	defer p.notifyMu.Unlock()

	for _, n := range notes {
		for _, fn := range subs {
			fn(n)
		}
	}
}

// snapshot returns a copy of the item as readers see it. Caller holds p.mu.
func (p *Playlist) snapshot(e *entry) model.Item {
	it := e.item
	it.Playing = it.Kind == model.KindLeaf && it.InputID != 0 && it.InputID == p.playingInput
	if parent, ok := p.entries[it.ParentID]; ok && it.ID != p.rootID {
		it.Position = indexOf(parent.children, it.ID)
	}
	return it
}

// FetchChildren returns the current children of id in display order.
func (p *Playlist) FetchChildren(id int64) ([]model.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[id]
	if !ok {
		return nil, fmt.Errorf("fetch children of %d: %w", id, ErrNotFound)
	}
	items := make([]model.Item, 0, len(e.children))
	for _, cid := range e.children {
		items = append(items, p.snapshot(p.entries[cid]))
	}
	return items, nil
}

// FetchItem returns the current descriptor of id.
func (p *Playlist) FetchItem(id int64) (model.Item, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[id]
	if !ok {
		return model.Item{}, false
	}
	return p.snapshot(e), true
}

// Items returns every item except the root in pre-order.
func (p *Playlist) Items() []model.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.Item
	var walk func(id int64)
	walk = func(id int64) {
		for _, cid := range p.entries[id].children {
			out = append(out, p.snapshot(p.entries[cid]))
			walk(cid)
		}
	}
	walk(p.rootID)
	return out
}

// Len returns the number of items below the root.
func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries) - 1
}

func (p *Playlist) container(id int64) (*entry, error) {
	e, ok := p.entries[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if e.item.Kind != model.KindCategory {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotContainer)
	}
	return e, nil
}

func (p *Playlist) normalize(it *model.Item) {
	if it.ID == 0 {
		it.ID = p.nextID
	}
	if it.ID >= p.nextID {
		p.nextID = it.ID + 1
	}
	if it.Kind == model.KindLeaf && it.InputID == 0 {
		it.InputID = p.nextInput
	}
	if it.InputID >= p.nextInput {
		p.nextInput = it.InputID + 1
	}
	if it.Type == "" {
		if it.Kind == model.KindCategory {
			it.Type = model.TypeNode
		} else {
			it.Type = model.TypeFile
		}
	}
}

// Add inserts it under parentID at it.Position (model.AppendPosition or an
// out-of-range position appends). A zero ID or input ID is assigned.
func (p *Playlist) Add(parentID int64, it model.Item) (model.Item, error) {
	p.mu.Lock()
	parent, err := p.container(parentID)
	if err != nil {
		p.mu.Unlock()
		return model.Item{}, err
	}
	if it.ID != 0 {
		if _, exists := p.entries[it.ID]; exists {
			p.mu.Unlock()
			return model.Item{}, fmt.Errorf("add %d: %w", it.ID, ErrDuplicateID)
		}
	}
	p.normalize(&it)
	if err := it.Validate(); err != nil {
		p.mu.Unlock()
		return model.Item{}, err
	}
	it.ParentID = parentID
	it.Playing = false
	pos := it.Position
	if pos < 0 || pos > len(parent.children) {
		pos = len(parent.children)
	}
	parent.children = insertAt(parent.children, pos, it.ID)
	p.entries[it.ID] = &entry{item: it}

	added := p.snapshot(p.entries[it.ID])
	p.commit([]Notification{{Kind: ItemAdded, ID: it.ID, ParentID: parentID, InputID: it.InputID, Item: added}})
	return added, nil
}

// removeLocked detaches id and drops its subtree. Caller holds p.mu.
func (p *Playlist) removeLocked(id int64) (Notification, error) {
	if id == p.rootID {
		return Notification{}, ErrRootRemoval
	}
	e, ok := p.entries[id]
	if !ok {
		return Notification{}, fmt.Errorf("remove %d: %w", id, ErrNotFound)
	}
	parent := p.entries[e.item.ParentID]
	parent.children = removeID(parent.children, id)

	var drop func(id int64)
	drop = func(id int64) {
		for _, cid := range p.entries[id].children {
			drop(cid)
		}
		delete(p.entries, id)
	}
	drop(id)
	if p.playingInput != 0 && !p.inputLive(p.playingInput) {
		p.playingInput = 0
	}
	return Notification{Kind: ItemRemoved, ID: id, ParentID: e.item.ParentID, InputID: e.item.InputID}, nil
}

func (p *Playlist) inputLive(input int64) bool {
	for _, e := range p.entries {
		if e.item.InputID == input {
			return true
		}
	}
	return false
}

// Remove deletes id and everything below it.
func (p *Playlist) Remove(id int64) error {
	p.mu.Lock()
	n, err := p.removeLocked(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.commit([]Notification{n})
	return nil
}

// Delete removes every listed item. Items already gone, including those
// removed earlier in the same call as descendants, are skipped.
func (p *Playlist) Delete(ids ...int64) error {
	p.mu.Lock()
	var (
		notes []Notification
		errs  []error
	)
	for _, id := range ids {
		if _, ok := p.entries[id]; !ok {
			continue
		}
		n, err := p.removeLocked(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		notes = append(notes, n)
	}
	p.commit(notes)
	return errors.Join(errs...)
}

// Update edits the metadata of a single item. Identity, placement, kind and
// input identity cannot be changed through fn.
func (p *Playlist) Update(id int64, fn func(*model.Item)) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("update %d: %w", id, ErrNotFound)
	}
	next := e.item
	fn(&next)
	next.ID, next.ParentID, next.Kind, next.InputID, next.Position = e.item.ID, e.item.ParentID, e.item.Kind, e.item.InputID, e.item.Position
	if err := next.Validate(); err != nil {
		p.mu.Unlock()
		return err
	}
	e.item = next

	var n Notification
	if next.Kind == model.KindLeaf {
		n = Notification{Kind: ItemUpdated, ID: id, InputID: next.InputID}
	} else {
		// Containers have no input to address; let the parent re-read them.
		parent := next.ParentID
		if id == p.rootID {
			parent = id
		}
		n = Notification{Kind: SubtreeChanged, ID: parent}
	}
	p.commit([]Notification{n})
	return nil
}

// UpdateInput edits the metadata of every leaf sharing input.
func (p *Playlist) UpdateInput(input int64, fn func(*model.Item)) error {
	p.mu.Lock()
	found := false
	for _, e := range p.entries {
		if e.item.Kind != model.KindLeaf || e.item.InputID != input {
			continue
		}
		next := e.item
		fn(&next)
		next.ID, next.ParentID, next.Kind, next.InputID, next.Position = e.item.ID, e.item.ParentID, e.item.Kind, e.item.InputID, e.item.Position
		if err := next.Validate(); err != nil {
			p.mu.Unlock()
			return err
		}
		e.item = next
		found = true
	}
	if !found {
		p.mu.Unlock()
		return fmt.Errorf("update input %d: %w", input, ErrNotFound)
	}
	p.commit([]Notification{{Kind: ItemUpdated, InputID: input}})
	return nil
}

func (p *Playlist) isAncestor(ancestor, id int64) bool {
	for cur := id; ; {
		if cur == ancestor {
			return true
		}
		if cur == p.rootID {
			return false
		}
		e, ok := p.entries[cur]
		if !ok {
			return false
		}
		cur = e.item.ParentID
	}
}

// depth counts the ancestors of id. Caller holds p.mu.
func (p *Playlist) depth(id int64) int {
	d := 0
	for cur := id; cur != p.rootID; d++ {
		e, ok := p.entries[cur]
		if !ok {
			break
		}
		cur = e.item.ParentID
	}
	return d
}

// Move re-parents ids under dest starting at row, where row counts dest's
// children before the move. Every affected container is reported as
// SubtreeChanged.
func (p *Playlist) Move(ids []int64, dest int64, row int) error {
	p.mu.Lock()
	target, err := p.container(dest)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	var moving []int64
	for _, id := range ids {
		if id == p.rootID {
			continue
		}
		if _, ok := p.entries[id]; !ok {
			continue
		}
		if p.isAncestor(id, dest) {
			p.mu.Unlock()
			return fmt.Errorf("move %d into %d: %w", id, dest, ErrCycle)
		}
		if indexOf(moving, id) < 0 {
			moving = append(moving, id)
		}
	}
	if len(moving) == 0 {
		p.mu.Unlock()
		return nil
	}

	if row < 0 || row > len(target.children) {
		row = len(target.children)
	}
	shift := 0
	for _, cid := range target.children[:row] {
		if indexOf(moving, cid) >= 0 {
			shift++
		}
	}
	row -= shift

	var changed []int64
	for _, id := range moving {
		e := p.entries[id]
		old := p.entries[e.item.ParentID]
		old.children = removeID(old.children, id)
		if indexOf(changed, e.item.ParentID) < 0 && e.item.ParentID != dest {
			changed = append(changed, e.item.ParentID)
		}
	}
	if row < 0 || row > len(target.children) {
		row = len(target.children)
	}
	for i, id := range moving {
		target.children = insertAt(target.children, row+i, id)
		p.entries[id].item.ParentID = dest
	}
	changed = append(changed, dest)
	// Deepest first, so a subscriber can fold a container into the rebuild
	// of an ancestor reported after it.
	sort.SliceStable(changed, func(i, j int) bool { return p.depth(changed[i]) > p.depth(changed[j]) })

	notes := make([]Notification, 0, len(changed))
	for _, id := range changed {
		notes = append(notes, Notification{Kind: SubtreeChanged, ID: id})
	}
	p.commit(notes)
	return nil
}

// Play marks the input of the leaf id as the one currently playing.
func (p *Playlist) Play(id int64) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("play %d: %w", id, ErrNotFound)
	}
	if e.item.Kind != model.KindLeaf {
		p.mu.Unlock()
		return fmt.Errorf("play %d: %w", id, ErrNotContainer)
	}
	prev := p.playingInput
	p.playingInput = e.item.InputID
	var notes []Notification
	if prev != 0 && prev != p.playingInput {
		notes = append(notes, Notification{Kind: ItemUpdated, InputID: prev})
	}
	if prev != p.playingInput {
		notes = append(notes, Notification{Kind: ItemUpdated, ID: id, InputID: p.playingInput})
	}
	p.commit(notes)
	return nil
}

// Stop clears the playing input.
func (p *Playlist) Stop() {
	p.mu.Lock()
	prev := p.playingInput
	p.playingInput = 0
	var notes []Notification
	if prev != 0 {
		notes = append(notes, Notification{Kind: ItemUpdated, InputID: prev})
	}
	p.commit(notes)
}

// SetMode switches a playback toggle.
func (p *Playlist) SetMode(m Mode, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes[m] = on
}

// Mode reports a playback toggle.
func (p *Playlist) Mode(m Mode) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modes[m]
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func insertAt(ids []int64, pos int, id int64) []int64 {
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return ids
}

func removeID(ids []int64, id int64) []int64 {
	i := indexOf(ids, id)
	if i < 0 {
		return ids
	}
	return append(ids[:i], ids[i+1:]...)
}
