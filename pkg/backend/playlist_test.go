package backend

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

type collector struct {
	mu    sync.Mutex
	notes []Notification
}

func (c *collector) record(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *collector) take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.notes))
	for i, n := range c.notes {
		out[i] = n.String()
	}
	c.notes = nil
	return out
}

func watch(t *testing.T, p *Playlist) *collector {
	t.Helper()
	c := &collector{}
	id := p.Subscribe(c.record)
	t.Cleanup(func() { p.Unsubscribe(id) })
	return c
}

func leaf(title string) model.Item {
	return model.Item{Kind: model.KindLeaf, Title: title, Position: model.AppendPosition}
}

func folder(title string) model.Item {
	return model.Item{Kind: model.KindCategory, Title: title, Position: model.AppendPosition}
}

func mustAdd(t *testing.T, p *Playlist, parent int64, it model.Item) model.Item {
	t.Helper()
	added, err := p.Add(parent, it)
	if err != nil {
		t.Fatalf("Add(%d, %q): %v", parent, it.Title, err)
	}
	return added
}

func childIDs(t *testing.T, p *Playlist, id int64) []int64 {
	t.Helper()
	items, err := p.FetchChildren(id)
	if err != nil {
		t.Fatalf("FetchChildren(%d): %v", id, err)
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestAddAssignsIdentities(t *testing.T) {
	p := NewPlaylist()
	c := watch(t, p)

	a := mustAdd(t, p, DefaultRootID, leaf("a"))
	b := mustAdd(t, p, DefaultRootID, leaf("b"))
	if a.ID != 2 || b.ID != 3 {
		t.Errorf("ids = %d, %d; want 2, 3", a.ID, b.ID)
	}
	if a.InputID == 0 || a.InputID == b.InputID {
		t.Errorf("inputs = %d, %d; want distinct non-zero", a.InputID, b.InputID)
	}
	if a.Type != model.TypeFile || a.ParentID != DefaultRootID || b.Position != 1 {
		t.Errorf("normalized item = %+v", b)
	}
	want := []string{"item_added(2 under 1)", "item_added(3 under 1)"}
	if got := c.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}

	explicit := leaf("c")
	explicit.ID = 40
	mustAdd(t, p, DefaultRootID, explicit)
	if next := mustAdd(t, p, DefaultRootID, leaf("d")); next.ID != 41 {
		t.Errorf("id after explicit 40 = %d, want 41", next.ID)
	}
}

func TestAddErrors(t *testing.T) {
	p := NewPlaylist()
	l := mustAdd(t, p, DefaultRootID, leaf("a"))

	tests := []struct {
		name   string
		parent int64
		item   model.Item
		want   error
	}{
		{"missing parent", 99, leaf("x"), ErrNotFound},
		{"leaf parent", l.ID, leaf("x"), ErrNotContainer},
		{"duplicate id", DefaultRootID, model.Item{ID: l.ID, Kind: model.KindLeaf}, ErrDuplicateID},
		{"bad type", DefaultRootID, model.Item{Kind: model.KindLeaf, Type: "vinyl"}, model.ErrUnknownItemType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Add(tt.parent, tt.item); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if p.Len() != 1 {
		t.Errorf("Len = %d after failed adds, want 1", p.Len())
	}
}

func TestAddAtPosition(t *testing.T) {
	p := NewPlaylist()
	mustAdd(t, p, DefaultRootID, leaf("a"))
	mustAdd(t, p, DefaultRootID, leaf("c"))
	mid := leaf("b")
	mid.Position = 1
	got := mustAdd(t, p, DefaultRootID, mid)
	if got.Position != 1 {
		t.Errorf("Position = %d, want 1", got.Position)
	}
	if ids := childIDs(t, p, DefaultRootID); !reflect.DeepEqual(ids, []int64{2, 4, 3}) {
		t.Errorf("children = %v", ids)
	}
}

func TestRemoveSubtree(t *testing.T) {
	p := NewPlaylist()
	f := mustAdd(t, p, DefaultRootID, folder("f"))
	mustAdd(t, p, f.ID, leaf("x"))
	mustAdd(t, p, f.ID, leaf("y"))
	c := watch(t, p)

	if err := p.Remove(f.ID); err != nil {
		t.Fatal(err)
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
	if got := c.take(); !reflect.DeepEqual(got, []string{"item_removed(2)"}) {
		t.Errorf("notifications = %v", got)
	}
	if err := p.Remove(f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v", err)
	}
	if err := p.Remove(DefaultRootID); !errors.Is(err, ErrRootRemoval) {
		t.Errorf("root Remove = %v", err)
	}
}

func TestDeleteSkipsImpliedDescendants(t *testing.T) {
	p := NewPlaylist()
	f := mustAdd(t, p, DefaultRootID, folder("f"))
	x := mustAdd(t, p, f.ID, leaf("x"))
	y := mustAdd(t, p, DefaultRootID, leaf("y"))
	c := watch(t, p)

	if err := p.Delete(f.ID, x.ID, y.ID, 404); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []string{fmt.Sprintf("item_removed(%d)", f.ID), fmt.Sprintf("item_removed(%d)", y.ID)}
	if got := c.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
	if err := p.Delete(DefaultRootID); !errors.Is(err, ErrRootRemoval) {
		t.Errorf("Delete(root) = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	p := NewPlaylist()
	f := mustAdd(t, p, DefaultRootID, folder("f"))
	x := mustAdd(t, p, f.ID, leaf("x"))
	c := watch(t, p)

	if err := p.Update(x.ID, func(it *model.Item) {
		it.Title = "renamed"
		it.ID = 999
		it.ParentID = 999
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := p.FetchItem(x.ID)
	if got.Title != "renamed" || got.ParentID != f.ID {
		t.Errorf("updated item = %+v", got)
	}
	if err := p.Update(f.ID, func(it *model.Item) { it.Title = "F" }); err != nil {
		t.Fatal(err)
	}
	if err := p.Update(DefaultRootID, func(it *model.Item) { it.Title = "Top" }); err != nil {
		t.Fatal(err)
	}
	want := []string{
		fmt.Sprintf("item_updated(input %d)", x.InputID),
		"subtree_changed(1)",
		"subtree_changed(1)",
	}
	if got := c.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
	if err := p.Update(x.ID, func(it *model.Item) { it.Duration = -1 }); !errors.Is(err, model.ErrNegativeLength) {
		t.Errorf("invalid update = %v", err)
	}
	if err := p.Update(404, func(*model.Item) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing update = %v", err)
	}
}

func TestUpdateInputTouchesSharedItems(t *testing.T) {
	p := NewPlaylist()
	a := mustAdd(t, p, DefaultRootID, leaf("a"))
	twin := leaf("a")
	twin.InputID = a.InputID
	b := mustAdd(t, p, DefaultRootID, twin)
	c := watch(t, p)

	if err := p.UpdateInput(a.InputID, func(it *model.Item) { it.Artist = "X" }); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int64{a.ID, b.ID} {
		if it, _ := p.FetchItem(id); it.Artist != "X" {
			t.Errorf("item %d artist = %q", id, it.Artist)
		}
	}
	if got := c.take(); len(got) != 1 {
		t.Errorf("notifications = %v, want one", got)
	}
	if err := p.UpdateInput(404, func(*model.Item) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing input = %v", err)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int64
		dest     int64
		row      int
		wantRoot []int64
		wantDest []int64
		notes    []string
	}{
		{
			name: "reorder within parent", ids: []int64{5}, dest: 1, row: 0,
			wantRoot: []int64{5, 2, 3}, wantDest: nil,
			notes: []string{"subtree_changed(1)"},
		},
		{
			name: "forward within parent counts rows before the move", ids: []int64{2}, dest: 1, row: 2,
			wantRoot: []int64{3, 2, 5}, wantDest: nil,
			notes: []string{"subtree_changed(1)"},
		},
		{
			name: "into folder", ids: []int64{5, 2}, dest: 3, row: 0,
			wantRoot: []int64{3}, wantDest: []int64{5, 2, 4},
			notes: []string{"subtree_changed(3)", "subtree_changed(1)"},
		},
		{
			name: "append with negative row", ids: []int64{2}, dest: 3, row: -1,
			wantRoot: []int64{3, 5}, wantDest: []int64{4, 2},
			notes: []string{"subtree_changed(3)", "subtree_changed(1)"},
		},
		{
			name: "out of folder reports the folder first", ids: []int64{4}, dest: 1, row: -1,
			wantRoot: []int64{2, 3, 5, 4}, wantDest: nil,
			notes: []string{"subtree_changed(3)", "subtree_changed(1)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// root: [2 leaf, 3 folder [4], 5 leaf]
			p := NewPlaylist()
			mustAdd(t, p, DefaultRootID, leaf("a"))
			f := mustAdd(t, p, DefaultRootID, folder("f"))
			mustAdd(t, p, f.ID, leaf("in"))
			mustAdd(t, p, DefaultRootID, leaf("b"))
			c := watch(t, p)

			if err := p.Move(tt.ids, tt.dest, tt.row); err != nil {
				t.Fatal(err)
			}
			if got := childIDs(t, p, DefaultRootID); !reflect.DeepEqual(got, tt.wantRoot) {
				t.Errorf("root = %v, want %v", got, tt.wantRoot)
			}
			if tt.wantDest != nil {
				if got := childIDs(t, p, tt.dest); !reflect.DeepEqual(got, tt.wantDest) {
					t.Errorf("dest = %v, want %v", got, tt.wantDest)
				}
			}
			if got := c.take(); !reflect.DeepEqual(got, tt.notes) {
				t.Errorf("notifications = %v, want %v", got, tt.notes)
			}
		})
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	p := NewPlaylist()
	outer := mustAdd(t, p, DefaultRootID, folder("outer"))
	inner := mustAdd(t, p, outer.ID, folder("inner"))
	if err := p.Move([]int64{outer.ID}, inner.ID, 0); !errors.Is(err, ErrCycle) {
		t.Errorf("Move into descendant = %v", err)
	}
	if err := p.Move([]int64{outer.ID}, outer.ID, 0); !errors.Is(err, ErrCycle) {
		t.Errorf("Move into self = %v", err)
	}
	if err := p.Move([]int64{DefaultRootID, 404}, outer.ID, 0); err != nil {
		t.Errorf("Move of root/missing should be ignored, got %v", err)
	}
}

func TestPlayAndModes(t *testing.T) {
	p := NewPlaylist()
	a := mustAdd(t, p, DefaultRootID, leaf("a"))
	b := mustAdd(t, p, DefaultRootID, leaf("b"))
	f := mustAdd(t, p, DefaultRootID, folder("f"))
	c := watch(t, p)

	if err := p.Play(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := p.Play(b.ID); err != nil {
		t.Fatal(err)
	}
	if err := p.Play(b.ID); err != nil {
		t.Fatal(err)
	}
	want := []string{
		fmt.Sprintf("item_updated(input %d)", a.InputID),
		fmt.Sprintf("item_updated(input %d)", a.InputID),
		fmt.Sprintf("item_updated(input %d)", b.InputID),
	}
	if got := c.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
	if it, _ := p.FetchItem(b.ID); !it.Playing {
		t.Error("b should be playing")
	}
	if it, _ := p.FetchItem(a.ID); it.Playing {
		t.Error("a should have stopped")
	}
	if err := p.Play(f.ID); !errors.Is(err, ErrNotContainer) {
		t.Errorf("Play(folder) = %v", err)
	}

	p.Stop()
	if it, _ := p.FetchItem(b.ID); it.Playing {
		t.Error("Stop left b playing")
	}

	for _, m := range []Mode{ModeRandom, ModeLoop, ModeRepeat} {
		p.SetMode(m, true)
		if !p.Mode(m) {
			t.Errorf("%s not set", m)
		}
		p.SetMode(m, false)
		if p.Mode(m) {
			t.Errorf("%s not cleared", m)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p := NewPlaylist()
	c := &collector{}
	id := p.Subscribe(c.record)
	mustAdd(t, p, DefaultRootID, leaf("a"))
	p.Unsubscribe(id)
	mustAdd(t, p, DefaultRootID, leaf("b"))
	if got := c.take(); len(got) != 1 {
		t.Errorf("notifications = %v, want only the first add", got)
	}
}

func TestNotificationsArriveInMutationOrder(t *testing.T) {
	p := NewPlaylist()
	c := watch(t, p)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := p.Add(DefaultRootID, leaf("x")); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notes) != 200 {
		t.Fatalf("got %d notifications, want 200", len(c.notes))
	}
	for i := 1; i < len(c.notes); i++ {
		if c.notes[i].ID <= c.notes[i-1].ID {
			t.Fatalf("notification %d (%d) delivered after %d", i, c.notes[i].ID, c.notes[i-1].ID)
		}
	}
}
