package loader_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/plmirror/pkg/loader"
	"github.com/vanderheijden86/plmirror/pkg/model"
	"github.com/vanderheijden86/plmirror/pkg/testutil"
)

func collectWarnings() (*[]error, loader.ParseOptions) {
	var got []error
	return &got, loader.ParseOptions{WarningHandler: func(err error) { got = append(got, err) }}
}

// =============================================================================
// FindPlaylist Tests
// =============================================================================

func TestFindPlaylist_NonExistentPath(t *testing.T) {
	t.Setenv(loader.PlaylistEnvVar, "")
	if _, err := loader.FindPlaylist("/nonexistent/playlist/dir"); err == nil {
		t.Fatal("Expected error for non-existent path")
	}
}

func TestFindPlaylist_EmptyDirectory(t *testing.T) {
	t.Setenv(loader.PlaylistEnvVar, "")
	_, err := loader.FindPlaylist(t.TempDir())
	if !errors.Is(err, loader.ErrNoPlaylist) {
		t.Fatalf("Expected ErrNoPlaylist, got: %v", err)
	}
}

func TestFindPlaylist_PrefersCanonicalNames(t *testing.T) {
	t.Setenv(loader.PlaylistEnvVar, "")
	dir := t.TempDir()
	for _, name := range []string{"a.m3u", "playlist.m3u", "playlist.jsonl", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}
	path, err := loader.FindPlaylist(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "playlist.jsonl" {
		t.Errorf("Expected playlist.jsonl, got: %s", path)
	}
}

func TestFindPlaylist_SkipsBackups(t *testing.T) {
	t.Setenv(loader.PlaylistEnvVar, "")
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "old.backup.jsonl"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, ".hidden.m3u"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "mix.m3u8"), []byte("x"), 0644)

	path, err := loader.FindPlaylist(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "mix.m3u8" {
		t.Errorf("Expected mix.m3u8, got: %s", path)
	}
}

func TestFindPlaylist_FilePassesThrough(t *testing.T) {
	t.Setenv(loader.PlaylistEnvVar, "")
	path := filepath.Join(t.TempDir(), "x.m3u")
	os.WriteFile(path, []byte("x"), 0644)
	got, err := loader.FindPlaylist(path)
	if err != nil || got != path {
		t.Errorf("FindPlaylist(%s) = %s, %v", path, got, err)
	}
}

func TestFindPlaylist_EnvOverride(t *testing.T) {
	t.Setenv(loader.PlaylistEnvVar, "/somewhere/party.jsonl")
	got, err := loader.FindPlaylist(t.TempDir())
	if err != nil || got != "/somewhere/party.jsonl" {
		t.Errorf("FindPlaylist = %s, %v", got, err)
	}
}

// =============================================================================
// JSONL Tests
// =============================================================================

func TestParseJSONL_Basic(t *testing.T) {
	input := "\xEF\xBB\xBF" + `{"id":2,"kind":"category","title":"Album"}
{"id":3,"parent_id":2,"title":"One","duration":"3:20","uri":"/music/one.ogg"}
{"parent_id":2,"title":"Two","duration":95.5}

{"title":"Loose","duration":"1m5s","artist":"Band","disabled":true}
`
	items, err := loader.ParseJSONL(strings.NewReader(input), loader.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	testutil.AssertItemCount(t, items, 4)
	testutil.AssertParentsFirst(t, items, loader.RootID)
	testutil.AssertIDs(t, testutil.GetIDs(items), 2, 3, 4, 5)

	tests := []struct {
		id       int64
		parent   int64
		kind     model.Kind
		input    int64
		duration time.Duration
	}{
		{2, 0, model.KindCategory, 0, 0},
		{3, 2, model.KindLeaf, 3, 200 * time.Second},
		{4, 2, model.KindLeaf, 4, 95500 * time.Millisecond},
		{5, 0, model.KindLeaf, 5, 65 * time.Second},
	}
	for _, tt := range tests {
		it := testutil.FindItem(items, tt.id)
		if it == nil {
			t.Fatalf("item %d missing", tt.id)
		}
		if it.ParentID != tt.parent || it.Kind != tt.kind || it.InputID != tt.input || it.Duration != tt.duration {
			t.Errorf("item %d = %+v", tt.id, *it)
		}
	}
	if !testutil.FindItem(items, 5).Disabled {
		t.Error("disabled flag lost")
	}
}

func TestParseJSONL_SkipsMalformedLines(t *testing.T) {
	input := `{"id":2,"title":"ok"}
not json
{"id":2,"title":"duplicate"}
{"id":3,"parent_id":42,"title":"orphan"}
{"id":4,"parent_id":2,"title":"under a leaf"}
{"id":1,"title":"root"}
{"id":5,"title":"bad","duration":-3}
{"id":6,"kind":"gizmo"}
{"id":7,"title":"fine"}
`
	warnings, opts := collectWarnings()
	items, err := loader.ParseJSONL(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	testutil.AssertIDs(t, testutil.GetIDs(items), 2, 7)
	if len(*warnings) != 7 {
		t.Fatalf("Expected 7 warnings, got %d: %v", len(*warnings), *warnings)
	}
	var le *loader.LoadError
	if !errors.As((*warnings)[0], &le) || le.Line != 2 {
		t.Errorf("first warning = %v, want a LoadError on line 2", (*warnings)[0])
	}
	// Decoding failures surface while scanning, placement failures after.
	if !errors.As((*warnings)[1], &le) || le.Line != 8 {
		t.Errorf("second warning = %v, want the unknown kind on line 8", (*warnings)[1])
	}
	if !errors.Is((*warnings)[2], loader.ErrDuplicateItemID) {
		t.Errorf("Expected ErrDuplicateItemID, got %v", (*warnings)[2])
	}
	if !errors.Is((*warnings)[3], loader.ErrUnknownParent) {
		t.Errorf("Expected ErrUnknownParent, got %v", (*warnings)[3])
	}
	if !errors.Is((*warnings)[6], model.ErrNegativeLength) {
		t.Errorf("Expected ErrNegativeLength, got %v", (*warnings)[6])
	}
}

func TestParseJSONL_LineTooLong(t *testing.T) {
	long := `{"id":2,"title":"` + strings.Repeat("x", 200) + `"}`
	input := long + "\n" + `{"id":3,"title":"short"}` + "\n"
	warnings, opts := collectWarnings()
	opts.BufferSize = 64
	items, err := loader.ParseJSONL(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	testutil.AssertIDs(t, testutil.GetIDs(items), 3)
	if len(*warnings) != 1 || !errors.Is((*warnings)[0], loader.ErrLineTooLong) {
		t.Errorf("warnings = %v", *warnings)
	}
}

func TestParseJSONL_FilterDropsSubtree(t *testing.T) {
	input := `{"id":2,"kind":"category","title":"skip me"}
{"id":3,"parent_id":2,"title":"child"}
{"id":4,"title":"keep"}
`
	warnings, opts := collectWarnings()
	opts.Filter = func(it *model.Item) bool { return it.Title != "skip me" }
	items, err := loader.ParseJSONL(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	testutil.AssertIDs(t, testutil.GetIDs(items), 4)
	if len(*warnings) != 0 {
		t.Errorf("filtered items must not warn: %v", *warnings)
	}
}

func TestWriteJSONL_RoundTrip(t *testing.T) {
	items := testutil.QuickAlbums(2, 3)
	var buf bytes.Buffer
	if err := loader.WriteJSONL(&buf, items); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	back, err := loader.ParseJSONL(&buf, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	if len(back) != len(items) {
		t.Fatalf("round trip kept %d of %d items", len(back), len(items))
	}
	for i := range items {
		want, got := items[i], back[i]
		if got.ID != want.ID || got.ParentID != want.ParentID || got.Title != want.Title ||
			got.Duration != want.Duration || got.InputID != want.InputID {
			t.Errorf("item %d: got %+v, want %+v", i, got, want)
		}
	}
}

// =============================================================================
// M3U Tests
// =============================================================================

func TestParseM3U_Extended(t *testing.T) {
	input := `#EXTM3U
#EXTINF:200,Band - First Song
/music/first.ogg
#EXTGRP:Radio
#EXTINF:-1,Station
http://radio.example/stream
#EXTALB:Live
#EXTGENRE:Rock
#EXTINF:61.5 tvg-id="x",Second
dvd:///dev/sr0
#EXTGRP:
plain.mp3
`
	items, err := loader.ParseM3U(strings.NewReader(input), loader.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseM3U: %v", err)
	}
	testutil.AssertParentsFirst(t, items, loader.RootID)
	testutil.AssertIDs(t, testutil.GetIDs(items), 2, 3, 4, 5, 6)

	first := testutil.FindItem(items, 2)
	if first.Artist != "Band" || first.Title != "First Song" || first.Duration != 200*time.Second || first.ParentID != 0 {
		t.Errorf("first = %+v", *first)
	}
	group := testutil.FindItem(items, 3)
	if group.Kind != model.KindCategory || group.Title != "Radio" {
		t.Errorf("group = %+v", *group)
	}
	station := testutil.FindItem(items, 4)
	if station.ParentID != 3 || station.Type != model.TypeNet || station.Duration != 0 {
		t.Errorf("station = %+v", *station)
	}
	disc := testutil.FindItem(items, 5)
	if disc.ParentID != 3 || disc.Type != model.TypeDisc || disc.Album != "Live" || disc.Genre != "Rock" ||
		disc.Duration != 61500*time.Millisecond {
		t.Errorf("disc = %+v", *disc)
	}
	plain := testutil.FindItem(items, 6)
	if plain.ParentID != 0 || plain.Title != "" || plain.DisplayTitle() != "plain.mp3" || plain.Type != model.TypeFile {
		t.Errorf("plain = %+v", *plain)
	}
	testutil.AssertAllValid(t, items)
}

func TestParseM3U_BadExtinfKeepsEntry(t *testing.T) {
	input := "#EXTINF:abc,Title\nsong.ogg\n#EXTINF:no separator\nother.ogg\n"
	warnings, opts := collectWarnings()
	items, err := loader.ParseM3U(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseM3U: %v", err)
	}
	testutil.AssertItemCount(t, items, 2)
	if len(*warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %v", *warnings)
	}
	var le *loader.LoadError
	if !errors.As((*warnings)[1], &le) || le.Line != 3 {
		t.Errorf("second warning = %v, want line 3", (*warnings)[1])
	}
	if items[0].Title != "Title" {
		t.Errorf("title = %q, want Title", items[0].Title)
	}
}

func TestParseM3U_FilterDropsGroup(t *testing.T) {
	input := "#EXTGRP:Ads\nad1.mp3\nad2.mp3\n#EXTGRP:Music\nsong.mp3\n"
	opts := loader.ParseOptions{Filter: func(it *model.Item) bool { return it.Title != "Ads" }}
	items, err := loader.ParseM3U(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseM3U: %v", err)
	}
	testutil.AssertIDs(t, testutil.GetIDs(items), 2, 3)
	if items[0].Title != "Music" || items[1].ParentID != 2 {
		t.Errorf("items = %+v", items)
	}
}

// =============================================================================
// LoadFile Tests
// =============================================================================

func TestLoadFile_DispatchesByExtension(t *testing.T) {
	dir := t.TempDir()
	m3u := filepath.Join(dir, "list.m3u")
	os.WriteFile(m3u, []byte("a.ogg\nb.ogg\n"), 0644)
	items, err := loader.LoadFile(m3u)
	if err != nil {
		t.Fatalf("LoadFile m3u: %v", err)
	}
	testutil.AssertItemCount(t, items, 2)

	jsonl := testutil.WritePlaylistFile(t, dir, "list.jsonl", testutil.QuickFlat(3))
	items, err = loader.LoadFile(jsonl)
	if err != nil {
		t.Fatalf("LoadFile jsonl: %v", err)
	}
	testutil.AssertItemCount(t, items, 3)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loader.LoadFile(filepath.Join(dir, "x.txt")); !errors.Is(err, loader.ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
	if _, err := loader.LoadFile(filepath.Join(dir, "missing.jsonl")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want loader.Format
	}{
		{"a.jsonl", loader.FormatJSONL},
		{"a.NDJSON", loader.FormatJSONL},
		{"a.m3u8", loader.FormatM3U},
		{"dir/a.M3U", loader.FormatM3U},
		{"a.pls", loader.FormatUnknown},
	}
	for _, tt := range tests {
		if got := loader.DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
