package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
)

// helpMarkdown lists every binding as markdown tables, one per section.
func helpMarkdown(k keyMap) string {
	sections := []struct {
		title string
		keys  []key.Binding
	}{
		{"Navigation", []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom, k.Collapse, k.Expand, k.Toggle}},
		{"Playlist", []key.Binding{k.Activate, k.Delete, k.MoveUp, k.MoveDown, k.Copy}},
		{"View", []key.Binding{k.Search, k.Sort, k.Reverse, k.Disabled, k.Rebuild, k.Reload}},
		{"Playback", []key.Binding{k.Random, k.Loop, k.Repeat}},
		{"General", []key.Binding{k.Help, k.Quit}},
	}

	var sb strings.Builder
	sb.WriteString("# Keyboard shortcuts\n\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, "## %s\n\n| Key | Action |\n|---|---|\n", s.title)
		for _, b := range s.keys {
			h := b.Help()
			fmt.Fprintf(&sb, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Search matches titles, case-insensitively. Press `esc` to clear it.\n")
	return sb.String()
}

// renderHelp renders the help markdown for width columns, falling back to
// the raw markdown when glamour cannot.
func renderHelp(k keyMap, width int) string {
	md := helpMarkdown(k)
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
