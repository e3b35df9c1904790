package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// AssertItemCount verifies the expected number of items.
func AssertItemCount(t *testing.T, items []model.Item, expected int) {
	t.Helper()
	if len(items) != expected {
		t.Errorf("expected %d items, got %d", expected, len(items))
	}
}

// AssertNoDuplicateIDs verifies all item identities are unique.
func AssertNoDuplicateIDs(t *testing.T, items []model.Item) {
	t.Helper()
	seen := make(map[int64]bool)
	for _, it := range items {
		if seen[it.ID] {
			t.Errorf("duplicate item ID: %d", it.ID)
		}
		seen[it.ID] = true
	}
}

// AssertAllValid verifies all items pass validation.
func AssertAllValid(t *testing.T, items []model.Item) {
	t.Helper()
	for i, it := range items {
		if err := it.Validate(); err != nil {
			t.Errorf("item %d (%d) invalid: %v", i, it.ID, err)
		}
	}
}

// AssertParentsFirst verifies every parent precedes its children. A zero
// parent or root stands for the playlist root.
func AssertParentsFirst(t *testing.T, items []model.Item, root int64) {
	t.Helper()
	seen := map[int64]bool{0: true, root: true}
	for _, it := range items {
		if !seen[it.ParentID] {
			t.Errorf("item %d listed before its parent %d", it.ID, it.ParentID)
		}
		seen[it.ID] = true
	}
}

// AssertIDs verifies the identities of items, in order.
func AssertIDs(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
// Useful for comparing structs that may have different Go representations
// but equivalent JSON forms.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// TempDir helpers

// WritePlaylistFile writes items as JSONL to name inside dir and returns
// the path.
func WritePlaylistFile(t *testing.T, dir, name string, items []model.Item) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(ToJSONL(items)), 0644); err != nil {
		t.Fatalf("failed to write playlist file: %v", err)
	}
	return path
}

// FindItem returns the item with identity id, or nil.
func FindItem(items []model.Item, id int64) *model.Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

// ChildrenOf returns the identities listed under parent, in order.
func ChildrenOf(items []model.Item, parent int64) []int64 {
	var ids []int64
	for _, it := range items {
		if it.ParentID == parent {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// CountByKind counts items by kind.
func CountByKind(items []model.Item) map[model.Kind]int {
	counts := make(map[model.Kind]int)
	for _, it := range items {
		counts[it.Kind]++
	}
	return counts
}

// GetIDs extracts identities from items.
func GetIDs(items []model.Item) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
