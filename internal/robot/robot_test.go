package robot

import (
	"bytes"
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/plmirror/internal/datasource"
	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/mirror"
	"github.com/vanderheijden86/plmirror/pkg/model"
	"github.com/vanderheijden86/plmirror/pkg/testutil"
)

func newMirror(t *testing.T, items []model.Item, opts ...mirror.Option) (*backend.Playlist, *mirror.Mirror) {
	t.Helper()
	pl := backend.NewPlaylist()
	if _, err := pl.Replace(items); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	m := mirror.New(pl, 0, opts...)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return pl, m
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestBuild(t *testing.T) {
	pl, m := newMirror(t, testutil.QuickAlbums(2, 3), mirror.WithSort(model.ColumnTitle, mirror.Descending))
	pl.SetMode(backend.ModeLoop, true)

	src := &datasource.DataSource{Type: datasource.SourceTypeJSONL, Path: "/tmp/p.jsonl", ItemCount: 8}
	out := Build(m, src, Options{Now: fixedNow})

	if out.GeneratedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("GeneratedAt = %q", out.GeneratedAt)
	}
	if out.Count != 8 || out.Shown != 8 {
		t.Errorf("count=%d shown=%d, want 8/8", out.Count, out.Shown)
	}
	if len(out.Tree) != 2 || len(out.Tree[0].Children) != 3 {
		t.Fatalf("tree shape: %d roots", len(out.Tree))
	}
	if out.Sort == nil || out.Sort.Column != "title" || out.Sort.Order != "desc" {
		t.Errorf("Sort = %+v", out.Sort)
	}
	if !out.Modes.Loop || out.Modes.Random {
		t.Errorf("Modes = %+v", out.Modes)
	}
	if out.Source == nil || out.Source.Type != "jsonl" || out.Source.Items != 8 {
		t.Errorf("Source = %+v", out.Source)
	}
	if want := []string{"title", "artist", "duration"}; len(out.Columns) != len(want) {
		t.Errorf("Columns = %v, want %v", out.Columns, want)
	}
	if out.Metrics != nil {
		t.Error("metrics included without IncludeMetrics")
	}
}

func TestBuild_SearchPrunesHidden(t *testing.T) {
	items := []model.Item{
		{ID: 2, Kind: model.KindCategory, Title: "Live"},
		{ID: 3, ParentID: 2, Title: "Encore", Position: model.AppendPosition},
		{ID: 4, ParentID: 2, Title: "Intro", Position: model.AppendPosition},
		{ID: 5, Title: "Outro", Position: model.AppendPosition},
	}
	_, m := newMirror(t, items)
	m.RequestSearch("encore")
	m.Drain()

	out := Build(m, nil, Options{Now: fixedNow})
	if out.Query != "encore" {
		t.Errorf("Query = %q", out.Query)
	}
	var ids []int64
	for _, n := range out.Tree {
		n.Walk(func(s mirror.SnapshotNode) { ids = append(ids, s.ID) })
	}
	testutil.AssertIDs(t, ids, 2, 3)
	if out.Shown != 2 || out.Count != 4 {
		t.Errorf("shown=%d count=%d, want 2/4", out.Shown, out.Count)
	}

	all := Build(m, nil, Options{IncludeHidden: true, Now: fixedNow})
	ids = nil
	for _, n := range all.Tree {
		n.Walk(func(s mirror.SnapshotNode) { ids = append(ids, s.ID) })
	}
	testutil.AssertIDs(t, ids, 2, 3, 4, 5)
	if all.Shown != 2 {
		t.Errorf("shown with hidden rows = %d, want 2", all.Shown)
	}
}

func TestBuild_EmptyHasHint(t *testing.T) {
	_, m := newMirror(t, nil)
	out := Build(m, nil, Options{IncludeMetrics: true})
	if len(out.UsageHints) == 0 {
		t.Error("no usage hint for an empty playlist")
	}
	if out.Metrics == nil {
		t.Error("metrics missing")
	}
	if out.Tree == nil {
		t.Error("tree must encode as [] rather than null")
	}
}

func TestWrite(t *testing.T) {
	_, m := newMirror(t, testutil.QuickFlat(2))
	var buf bytes.Buffer
	if err := Write(&buf, Build(m, nil, Options{Now: fixedNow})); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded struct {
		Count int `json:"count"`
		Tree  []struct {
			ID     int64    `json:"id"`
			Kind   string   `json:"kind"`
			Values []string `json:"values"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded.Count != 2 || len(decoded.Tree) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Tree[0].ID != 2 || decoded.Tree[0].Kind != "leaf" || len(decoded.Tree[0].Values) != 3 {
		t.Errorf("first node = %+v", decoded.Tree[0])
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("{\n  \"generated_at\"")) {
		t.Errorf("output not indented:\n%s", buf.String())
	}
}
