// Package config handles loading and saving plm configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/plm/config.yaml
//   - Data:    ~/.local/share/plm/
//   - State:   ~/.local/state/plm/ (session database)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/plmirror/pkg/mirror"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

const appName = "plm"

// MaxRecent bounds the recently opened list.
const MaxRecent = 10

// Playlist is a named playlist file.
type Playlist struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// SortConfig selects the initial sort.
type SortConfig struct {
	Column string `yaml:"column,omitempty"` // empty = backend order
	Order  string `yaml:"order,omitempty"`  // asc, desc
}

// WatchConfig controls live reload of the playlist file.
type WatchConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"`
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty"`
}

// Config is the top-level configuration for plm.
type Config struct {
	Columns      []string          `yaml:"columns,omitempty"`
	Sort         SortConfig        `yaml:"sort,omitempty"`
	ShowDisabled bool              `yaml:"show_disabled,omitempty"`
	Icons        map[string]string `yaml:"icons,omitempty"` // item type -> decoration
	Watch        WatchConfig       `yaml:"watch,omitempty"`
	Store        string            `yaml:"store,omitempty"` // session database path
	Playlists    []Playlist        `yaml:"playlists,omitempty"`
	Favorites    map[int]string    `yaml:"favorites,omitempty"` // number key (1-9) -> playlist name
	Recent       []string          `yaml:"recent,omitempty"`
}

// DefaultIcons is the decoration per item type used when none is configured.
func DefaultIcons() map[string]string {
	return map[string]string{
		string(model.TypeUnknown):   "·",
		string(model.TypeFile):      "♪",
		string(model.TypeDirectory): "▸",
		string(model.TypeDisc):      "◉",
		string(model.TypeCard):      "▣",
		string(model.TypeNet):       "≈",
		string(model.TypePlaylist):  "≡",
		string(model.TypeNode):      "▾",
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	cols := model.DefaultColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.String()
	}
	return Config{
		Columns:   names,
		Icons:     DefaultIcons(),
		Favorites: make(map[int]string),
		Watch: WatchConfig{
			Debounce:     200 * time.Millisecond,
			PollInterval: 2 * time.Second,
		},
	}
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

// ConfigDir returns the XDG config directory for plm.
func ConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// DataDir returns the XDG data directory for plm.
func DataDir() string { return xdgDir("XDG_DATA_HOME", ".local", "share") }

// StateDir returns the XDG state directory for plm.
func StateDir() string { return xdgDir("XDG_STATE_HOME", ".local", "state") }

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	// Icons merge over the defaults instead of replacing them.
	icons := cfg.Icons
	cfg.Icons = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config: %w", err)
	}
	for k, v := range cfg.Icons {
		icons[strings.ToLower(k)] = v
	}
	cfg.Icons = icons

	if cfg.Favorites == nil {
		cfg.Favorites = make(map[int]string)
	}
	for i := range cfg.Playlists {
		cfg.Playlists[i].Path = expandHome(cfg.Playlists[i].Path)
	}
	for i := range cfg.Recent {
		cfg.Recent[i] = expandHome(cfg.Recent[i])
	}
	cfg.Store = expandHome(cfg.Store)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// StorePath returns the session database path, defaulting to the state
// directory.
func (c Config) StorePath() string {
	if c.Store != "" {
		return c.Store
	}
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "session.db")
}

// WatchEnabled reports whether live reload is on. It defaults to true.
func (c Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// ParsedColumns resolves the configured column names.
func (c Config) ParsedColumns() ([]model.Column, error) {
	if len(c.Columns) == 0 {
		return model.DefaultColumns(), nil
	}
	cols := make([]model.Column, 0, len(c.Columns))
	for _, name := range c.Columns {
		col, err := model.ParseColumn(name)
		if err != nil {
			return nil, fmt.Errorf("columns: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Presentation converts Icons into a mirror presentation map. Unknown
// item types are rejected.
func (c Config) Presentation() (mirror.Presentation, error) {
	p := make(mirror.Presentation, len(c.Icons))
	for k, v := range c.Icons {
		t := model.ItemType(strings.ToLower(k))
		if !t.IsValid() {
			return nil, fmt.Errorf("icons: %w: %q", model.ErrUnknownItemType, k)
		}
		p[t] = v
	}
	return p, nil
}

// MirrorOptions turns the display settings into mirror options.
func (c Config) MirrorOptions() ([]mirror.Option, error) {
	cols, err := c.ParsedColumns()
	if err != nil {
		return nil, err
	}
	pres, err := c.Presentation()
	if err != nil {
		return nil, err
	}
	opts := []mirror.Option{
		mirror.WithColumns(cols...),
		mirror.WithPresentation(pres),
		mirror.WithShowDisabled(c.ShowDisabled),
	}
	if c.Sort.Column != "" {
		col, err := model.ParseColumn(c.Sort.Column)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		order, err := mirror.ParseSortOrder(c.Sort.Order)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		opts = append(opts, mirror.WithSort(col, order))
	}
	return opts, nil
}

// FindPlaylist returns the playlist with the given name, or nil.
func (c Config) FindPlaylist(name string) *Playlist {
	for i := range c.Playlists {
		if strings.EqualFold(c.Playlists[i].Name, name) {
			return &c.Playlists[i]
		}
	}
	return nil
}

// FavoritePlaylist returns the playlist assigned to number key n (1-9), or nil.
func (c Config) FavoritePlaylist(n int) *Playlist {
	name, ok := c.Favorites[n]
	if !ok {
		return nil
	}
	return c.FindPlaylist(name)
}

// SetFavorite assigns a playlist name to a number key (1-9).
func (c *Config) SetFavorite(n int, name string) {
	if c.Favorites == nil {
		c.Favorites = make(map[int]string)
	}
	if name == "" {
		delete(c.Favorites, n)
	} else {
		c.Favorites[n] = name
	}
}

// AddRecent moves path to the front of the recent list.
func (c *Config) AddRecent(path string) {
	out := []string{path}
	for _, p := range c.Recent {
		if p != path && len(out) < MaxRecent {
			out = append(out, p)
		}
	}
	c.Recent = out
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
