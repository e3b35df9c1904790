package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	cols, err := cfg.ParsedColumns()
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 3 || cols[0] != model.ColumnTitle {
		t.Errorf("expected default columns, got %v", cols)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("expected 200ms debounce, got %v", cfg.Watch.Debounce)
	}
	if !cfg.WatchEnabled() {
		t.Error("expected watch enabled by default")
	}
	if cfg.Favorites == nil {
		t.Error("expected favorites map to be initialized")
	}
	if cfg.Icons[string(model.TypeFile)] == "" {
		t.Error("expected a default file icon")
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if len(cfg.Columns) != 3 {
		t.Errorf("expected default config, got columns %v", cfg.Columns)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
columns: [title, album, duration, uri]
sort:
  column: duration
  order: desc
show_disabled: true
icons:
  net: "@"
watch:
  enabled: false
  debounce: 500ms
  poll_interval: 5s
  force_poll: true
store: ~/plm/session.db
playlists:
  - name: party
    path: ~/music/party.m3u
favorites:
  1: party
recent:
  - /tmp/a.jsonl
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	cols, err := cfg.ParsedColumns()
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 4 || cols[1] != model.ColumnAlbum || cols[3] != model.ColumnURI {
		t.Errorf("columns = %v", cols)
	}
	if cfg.Sort.Column != "duration" || cfg.Sort.Order != "desc" || !cfg.ShowDisabled {
		t.Errorf("display settings = %+v", cfg)
	}
	if cfg.Icons["net"] != "@" {
		t.Errorf("expected net icon override, got %q", cfg.Icons["net"])
	}
	if cfg.Icons["file"] != DefaultIcons()["file"] {
		t.Error("expected unspecified icons to keep their defaults")
	}
	if cfg.WatchEnabled() || cfg.Watch.Debounce != 500*time.Millisecond ||
		cfg.Watch.PollInterval != 5*time.Second || !cfg.Watch.ForcePoll {
		t.Errorf("watch = %+v", cfg.Watch)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		if cfg.Store != filepath.Join(home, "plm/session.db") {
			t.Errorf("store = %q", cfg.Store)
		}
		if cfg.Playlists[0].Path != filepath.Join(home, "music/party.m3u") {
			t.Errorf("playlist path = %q", cfg.Playlists[0].Path)
		}
	}
	if p := cfg.FavoritePlaylist(1); p == nil || p.Name != "party" {
		t.Errorf("favorite 1 = %v", p)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Sort = SortConfig{Column: "artist", Order: "asc"}
	cfg.Playlists = []Playlist{{Name: "a", Path: "/a.m3u"}}
	cfg.SetFavorite(3, "a")
	cfg.Watch.PollInterval = 750 * time.Millisecond

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Sort != cfg.Sort {
		t.Errorf("sort = %+v, want %+v", loaded.Sort, cfg.Sort)
	}
	if loaded.Favorites[3] != "a" {
		t.Errorf("favorite 3 = %q", loaded.Favorites[3])
	}
	if loaded.Watch.PollInterval != 750*time.Millisecond {
		t.Errorf("poll interval = %v", loaded.Watch.PollInterval)
	}
}

func TestMirrorOptions(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(*Config)
		wantErr bool
		wantN   int
	}{
		{"defaults", func(*Config) {}, false, 3},
		{"with sort", func(c *Config) { c.Sort = SortConfig{Column: "title", Order: "desc"} }, false, 4},
		{"bad column", func(c *Config) { c.Columns = []string{"title", "bpm"} }, true, 0},
		{"bad sort column", func(c *Config) { c.Sort.Column = "bpm" }, true, 0},
		{"bad sort order", func(c *Config) { c.Sort = SortConfig{Column: "title", Order: "sideways"} }, true, 0},
		{"bad icon type", func(c *Config) { c.Icons["hologram"] = "?" }, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			opts, err := cfg.MirrorOptions()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(opts) != tt.wantN {
				t.Errorf("got %d options, want %d", len(opts), tt.wantN)
			}
		})
	}
}

func TestPresentationIsCaseInsensitive(t *testing.T) {
	cfg := Config{Icons: map[string]string{"FILE": "f"}}
	p, err := cfg.Presentation()
	if err != nil {
		t.Fatal(err)
	}
	if p[model.TypeFile] != "f" {
		t.Errorf("presentation = %v", p)
	}
}

func TestFindPlaylist(t *testing.T) {
	cfg := Config{Playlists: []Playlist{{Name: "alpha", Path: "/a"}, {Name: "Beta", Path: "/b"}}}

	if p := cfg.FindPlaylist("alpha"); p == nil || p.Path != "/a" {
		t.Error("expected to find 'alpha'")
	}
	if p := cfg.FindPlaylist("BETA"); p == nil || p.Name != "Beta" {
		t.Error("expected to find 'Beta' case-insensitively")
	}
	if p := cfg.FindPlaylist("nonexistent"); p != nil {
		t.Error("expected nil for nonexistent playlist")
	}
	if p := cfg.FavoritePlaylist(5); p != nil {
		t.Error("expected nil for unset favorite")
	}
}

func TestSetFavorite(t *testing.T) {
	var cfg Config
	cfg.SetFavorite(1, "mix")
	if cfg.Favorites[1] != "mix" {
		t.Error("expected favorite 1 set to 'mix'")
	}
	cfg.SetFavorite(1, "")
	if _, ok := cfg.Favorites[1]; ok {
		t.Error("expected favorite 1 to be cleared")
	}
}

func TestAddRecent(t *testing.T) {
	var cfg Config
	for i := 0; i < MaxRecent+3; i++ {
		cfg.AddRecent(filepath.Join("/p", string(rune('a'+i))))
	}
	if len(cfg.Recent) != MaxRecent {
		t.Fatalf("recent has %d entries, want %d", len(cfg.Recent), MaxRecent)
	}
	cfg.AddRecent("/p/e")
	if cfg.Recent[0] != "/p/e" || len(cfg.Recent) != MaxRecent {
		t.Errorf("recent = %v", cfg.Recent)
	}
	seen := map[string]bool{}
	for _, p := range cfg.Recent {
		if seen[p] {
			t.Errorf("duplicate recent entry %s", p)
		}
		seen[p] = true
	}
}

func TestStorePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	if got, want := (Config{}).StorePath(), filepath.Join(dir, "plm", "session.db"); got != want {
		t.Errorf("StorePath = %q, want %q", got, want)
	}
	if got := (Config{Store: "/x.db"}).StorePath(); got != "/x.db" {
		t.Errorf("StorePath = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	tests := []struct {
		input    string
		expected string
	}{
		{"~/foo", filepath.Join(home, "foo")},
		{"/absolute", "/absolute"},
		{"relative", "relative"},
	}
	for _, tt := range tests {
		if got := expandHome(tt.input); got != tt.expected {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestXDGOverrides(t *testing.T) {
	tests := []struct {
		env string
		fn  func() string
	}{
		{"XDG_CONFIG_HOME", ConfigDir},
		{"XDG_DATA_HOME", DataDir},
		{"XDG_STATE_HOME", StateDir},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv(tt.env, dir)
			if got, want := tt.fn(), filepath.Join(dir, "plm"); got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		})
	}
}
