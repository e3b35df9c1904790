package mirror

import (
	"testing"

	"github.com/vanderheijden86/plmirror/pkg/metrics"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

func buildIndexed(t *testing.T) (*IdentityIndex, *Node) {
	t.Helper()
	root := newRoot(1, model.Item{Title: "root"})
	x := newIdentityIndex(root)
	album := newNode(testCategory(2, "album"))
	root.insertChild(album, -1, -1)
	x.register(album)
	for _, it := range []model.Item{testLeaf(3, "a"), testLeaf(4, "b")} {
		n := newNode(it)
		album.insertChild(n, -1, -1)
		x.register(n)
	}
	return x, root
}

func TestIdentityIndexSlot(t *testing.T) {
	metrics.SetEnabled(true)
	metrics.IndexByID.Reset()
	x, _ := buildIndexed(t)

	if n := x.LookupByID(3); n == nil || n.ID() != 3 {
		t.Fatalf("LookupByID(3) = %v", n)
	}
	if n := x.LookupByID(3); n == nil {
		t.Fatal("second LookupByID(3) = nil")
	}
	if h, m := metrics.IndexByID.Hits(), metrics.IndexByID.Misses(); h != 1 || m != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", h, m)
	}
	if x.LookupByID(404) != nil {
		t.Error("unknown identity resolved")
	}
	if x.Len() != 4 {
		t.Errorf("Len = %d, want 4", x.Len())
	}
}

func TestIdentityIndexByInput(t *testing.T) {
	metrics.SetEnabled(true)
	metrics.IndexByInput.Reset()
	x, root := buildIndexed(t)

	shared := testLeaf(5, "again")
	shared.InputID = 3
	n := newNode(shared)
	root.insertChild(n, -1, -1)
	x.register(n)

	if got := x.LookupByInput(3); got == nil || got.InputID() != 3 {
		t.Fatalf("LookupByInput(3) = %v", got)
	}
	x.LookupByInput(3)
	if metrics.IndexByInput.Hits() != 1 {
		t.Errorf("slot hits = %d, want 1", metrics.IndexByInput.Hits())
	}
	if all := x.AllByInput(3); len(all) != 2 {
		t.Errorf("AllByInput(3) = %d nodes, want 2", len(all))
	}
	if x.LookupByInput(0) != nil {
		t.Error("input 0 belongs to containers and must not resolve")
	}
}

func TestIdentityIndexUnregisterSubtree(t *testing.T) {
	x, root := buildIndexed(t)
	x.LookupByID(4)
	x.LookupByInput(3)

	album := root.Child(0)
	root.removeChild(0)
	x.unregister(album)

	for _, id := range []int64{2, 3, 4} {
		if x.LookupByID(id) != nil {
			t.Errorf("identity %d still resolves after its subtree was removed", id)
		}
	}
	if x.LookupByInput(3) != nil {
		t.Error("input slot still points into the removed subtree")
	}
	if x.Len() != 1 {
		t.Errorf("Len = %d, want only the root", x.Len())
	}
}

func TestIdentityIndexRegisterReportsPrevious(t *testing.T) {
	x, _ := buildIndexed(t)
	old := x.LookupByID(3)
	replacement := newNode(testLeaf(3, "new"))
	if prev := x.register(replacement); prev != old {
		t.Errorf("register returned %v, want the old holder", prev)
	}
	if x.LookupByID(3) != replacement {
		t.Error("slot kept the replaced node")
	}
}
