// Package robot renders a mirror as JSON for scripts and agents. It is what
// plm prints instead of starting the TUI when stdout is not a terminal.
package robot

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/plmirror/internal/datasource"
	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/metrics"
	"github.com/vanderheijden86/plmirror/pkg/mirror"
	"github.com/vanderheijden86/plmirror/pkg/version"
)

// Source describes where the playlist was read from.
type Source struct {
	Type    string    `json:"type"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Items   int       `json:"items"`
}

// Sort is the active sort key, if any.
type Sort struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

// Modes mirrors the backend playback toggles.
type Modes struct {
	Random bool `json:"random"`
	Loop   bool `json:"loop"`
	Repeat bool `json:"repeat"`
}

// Metrics is the optional performance section.
type Metrics struct {
	Timing   []metrics.TimingStats `json:"timing,omitempty"`
	Cache    []metrics.CacheStats  `json:"cache,omitempty"`
	Counters map[string]int64      `json:"counters,omitempty"`
}

// Output is the top-level robot document.
type Output struct {
	GeneratedAt string                `json:"generated_at"`
	Version     string                `json:"version"`
	Source      *Source               `json:"source,omitempty"`
	Columns     []string              `json:"columns"`
	Query       string                `json:"query,omitempty"`
	Sort        *Sort                 `json:"sort,omitempty"`
	Modes       Modes                 `json:"modes"`
	Count       int                   `json:"count"`
	Shown       int                   `json:"shown"`
	Tree        []mirror.SnapshotNode `json:"tree"`
	Metrics     *Metrics              `json:"metrics,omitempty"`
	UsageHints  []string              `json:"usage_hints,omitempty"`
}

// Options selects what Build includes.
type Options struct {
	IncludeHidden  bool // keep rows hidden by search or show-disabled
	IncludeMetrics bool
	Now            func() time.Time
}

// Build captures the current state of m. It must run on the goroutine
// that drains m.
func Build(m *mirror.Mirror, src *datasource.DataSource, opts Options) Output {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	out := Output{
		GeneratedAt: now().UTC().Format(time.RFC3339),
		Version:     version.Version,
		Query:       m.Query(),
		Modes: Modes{
			Random: m.Mode(backend.ModeRandom),
			Loop:   m.Mode(backend.ModeLoop),
			Repeat: m.Mode(backend.ModeRepeat),
		},
		Count: m.Len(),
		Tree:  []mirror.SnapshotNode{},
	}
	for _, c := range m.Columns() {
		out.Columns = append(out.Columns, c.String())
	}
	if src != nil {
		out.Source = &Source{Type: string(src.Type), Path: src.Path, ModTime: src.ModTime, Items: src.ItemCount}
	}
	if col, order, ok := m.SortColumn(); ok {
		out.Sort = &Sort{Column: col.String(), Order: order.String()}
	}

	snap := m.Snapshot()
	for _, c := range snap.Children {
		if n, ok := prune(c, opts.IncludeHidden); ok {
			out.Tree = append(out.Tree, n)
		}
	}
	for _, c := range out.Tree {
		c.Walk(func(n mirror.SnapshotNode) {
			if !n.Hidden {
				out.Shown++
			}
		})
	}

	if opts.IncludeMetrics {
		out.Metrics = collectMetrics()
	}
	if out.Count == 0 {
		out.UsageHints = append(out.UsageHints, "playlist is empty: pass a .jsonl or .m3u file, or set PLM_PLAYLIST")
	}
	return out
}

// prune drops hidden nodes unless keep is set.
func prune(n mirror.SnapshotNode, keep bool) (mirror.SnapshotNode, bool) {
	if n.Hidden && !keep {
		return n, false
	}
	kids := n.Children
	n.Children = nil
	for _, c := range kids {
		if pc, ok := prune(c, keep); ok {
			n.Children = append(n.Children, pc)
		}
	}
	return n, true
}

func collectMetrics() *Metrics {
	m := &Metrics{Timing: metrics.AllTimingStats()}
	for _, c := range metrics.AllCacheMetrics() {
		m.Cache = append(m.Cache, c.Stats())
	}
	for _, c := range metrics.AllCounters() {
		if m.Counters == nil {
			m.Counters = make(map[string]int64)
		}
		m.Counters[c.Name()] = c.Value()
	}
	return m
}

// Write encodes out as indented JSON.
func Write(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
