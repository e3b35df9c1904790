// Package testutil provides playlist fixture generators and assertions.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/vanderheijden86/plmirror/pkg/loader"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

// GeneratorConfig controls playlist generation.
type GeneratorConfig struct {
	Seed        int64            // Random seed for determinism (0 = use current time)
	FirstID     int64            // First identity handed out (default: 2, after the root)
	TitlePrefix string           // Prefix for generated titles (default: "Track")
	TypeMix     []model.ItemType // Leaf type distribution (nil = all file)
	SharedInput float64          // Probability that a leaf reuses an earlier input
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42,
		FirstID:     2,
		TitlePrefix: "Track",
		TypeMix:     []model.ItemType{model.TypeFile},
	}
}

// Generator creates playlist fixtures of various shapes.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	nextID int64
	inputs []int64
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.FirstID == 0 {
		cfg.FirstID = 2
	}
	if cfg.TitlePrefix == "" {
		cfg.TitlePrefix = "Track"
	}
	if len(cfg.TypeMix) == 0 {
		cfg.TypeMix = []model.ItemType{model.TypeFile}
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		nextID: cfg.FirstID,
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var artists = []string{"Arca", "Bonobo", "Caribou", "Daft Punk", "Eno", "Floating Points"}

func (g *Generator) leaf(parent int64) model.Item {
	id := g.nextID
	g.nextID++
	input := id
	if len(g.inputs) > 0 && g.rng.Float64() < g.cfg.SharedInput {
		input = g.inputs[g.rng.Intn(len(g.inputs))]
	} else {
		g.inputs = append(g.inputs, input)
	}
	return model.Item{
		ID:       id,
		ParentID: parent,
		InputID:  input,
		Kind:     model.KindLeaf,
		Type:     g.cfg.TypeMix[g.rng.Intn(len(g.cfg.TypeMix))],
		Title:    fmt.Sprintf("%s %d", g.cfg.TitlePrefix, id),
		Artist:   artists[g.rng.Intn(len(artists))],
		Duration: time.Duration(60+g.rng.Intn(400)) * time.Second,
		URI:      fmt.Sprintf("file:///music/%d.ogg", id),
		Position: model.AppendPosition,
	}
}

func (g *Generator) category(parent int64, title string) model.Item {
	id := g.nextID
	g.nextID++
	return model.Item{
		ID:       id,
		ParentID: parent,
		Kind:     model.KindCategory,
		Type:     model.TypeNode,
		Title:    title,
		Position: model.AppendPosition,
	}
}

// Flat creates size leaves directly under parent.
func (g *Generator) Flat(parent int64, size int) []model.Item {
	items := make([]model.Item, 0, size)
	for i := 0; i < size; i++ {
		items = append(items, g.leaf(parent))
	}
	return items
}

// Albums creates n categories under parent, each holding tracks leaves.
func (g *Generator) Albums(parent int64, n, tracks int) []model.Item {
	var items []model.Item
	for i := 0; i < n; i++ {
		album := g.category(parent, fmt.Sprintf("Album %d", i+1))
		items = append(items, album)
		items = append(items, g.Flat(album.ID, tracks)...)
	}
	return items
}

// Tree creates a full tree of categories of the given depth and breadth
// whose last level holds leaves. Parents precede their children.
func (g *Generator) Tree(parent int64, depth, breadth int) []model.Item {
	if depth <= 0 {
		return g.Flat(parent, breadth)
	}
	var items []model.Item
	for i := 0; i < breadth; i++ {
		c := g.category(parent, fmt.Sprintf("Folder %d.%d", depth, i+1))
		items = append(items, c)
		items = append(items, g.Tree(c.ID, depth-1, breadth)...)
	}
	return items
}

// Random creates size items with random nesting. Roughly one item in
// five is a category; parents precede their children.
func (g *Generator) Random(parent int64, size int) []model.Item {
	containers := []int64{parent}
	items := make([]model.Item, 0, size)
	for i := 0; i < size; i++ {
		p := containers[g.rng.Intn(len(containers))]
		if g.rng.Intn(5) == 0 {
			c := g.category(p, fmt.Sprintf("Folder %d", g.nextID))
			containers = append(containers, c.ID)
			items = append(items, c)
			continue
		}
		items = append(items, g.leaf(p))
	}
	return items
}

// ToJSONL renders items in the playlist file format.
func ToJSONL(items []model.Item) string {
	var sb strings.Builder
	if err := loader.WriteJSONL(&sb, items); err != nil {
		return ""
	}
	return sb.String()
}

// QuickFlat returns size leaves under the default root.
func QuickFlat(size int) []model.Item {
	return NewDefault().Flat(0, size)
}

// QuickAlbums returns n albums of tracks leaves under the default root.
func QuickAlbums(n, tracks int) []model.Item {
	return NewDefault().Albums(0, n, tracks)
}

// QuickTree returns a tree of the given depth and breadth under the
// default root.
func QuickTree(depth, breadth int) []model.Item {
	return NewDefault().Tree(0, depth, breadth)
}

// QuickRandom returns size randomly nested items under the default root.
func QuickRandom(size int) []model.Item {
	return NewDefault().Random(0, size)
}
