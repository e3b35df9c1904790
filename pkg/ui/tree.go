package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/plmirror/pkg/mirror"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

// Fixed widths of the non-tree columns; the first column takes the rest.
var columnWidths = map[model.Column]int{
	model.ColumnTitle:    32,
	model.ColumnArtist:   18,
	model.ColumnAlbum:    18,
	model.ColumnDuration: 8,
	model.ColumnGenre:    12,
	model.ColumnURI:      28,
}

const minTreeColumnWidth = 12

// treeRow is one visible line of the flattened tree.
type treeRow struct {
	addr  mirror.Address
	node  *mirror.Node
	depth int
	last  bool
	// branches[i] is true when the ancestor at depth i has visible
	// siblings below it.
	branches []bool
}

// TreeView renders the mirror as an expandable tree. The selection is kept
// by identity so rows can come and go underneath it.
//
// TreeView implements mirror.Listener; notifications only mark it dirty
// and the owner calls Refresh after draining.
type TreeView struct {
	m     *mirror.Mirror
	theme Theme

	rows      []treeRow
	collapsed map[int64]bool
	selected  int64
	cursor    int
	offset    int
	width     int
	height    int
	dirty     bool
}

// NewTreeView creates a view over m. Register it with m.AddListener.
func NewTreeView(m *mirror.Mirror, theme Theme) *TreeView {
	return &TreeView{
		m:         m,
		theme:     theme,
		collapsed: make(map[int64]bool),
		width:     80,
		height:    20,
		dirty:     true,
	}
}

func (t *TreeView) RowsInserted(mirror.Address, int, int)         { t.dirty = true }
func (t *TreeView) RowsAboutToBeRemoved(mirror.Address, int, int) { t.dirty = true }
func (t *TreeView) RowsRemoved(mirror.Address, int, int)          { t.dirty = true }
func (t *TreeView) DataChanged(mirror.Address, []int)             { t.dirty = true }
func (t *TreeView) LayoutAboutToChange()                          {}
func (t *TreeView) LayoutChanged()                                { t.dirty = true }

// Dirty reports whether the mirror changed since the last Refresh.
func (t *TreeView) Dirty() bool { return t.dirty }

// SetSize sets the area available to the tree, column header included.
func (t *TreeView) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// Refresh re-flattens the tree and restores the selection. When the
// selected item is gone the cursor stays on the same line.
func (t *TreeView) Refresh() {
	t.rows = t.rows[:0]
	t.flatten(mirror.RootAddress, 0, nil)
	t.dirty = false

	for id := range t.collapsed {
		if t.m.LookupByID(id) == nil {
			delete(t.collapsed, id)
		}
	}

	idx := t.indexOf(t.selected)
	if idx < 0 {
		idx = t.cursor
	}
	t.setCursor(idx)
}

func (t *TreeView) flatten(parent mirror.Address, depth int, branches []bool) {
	n, err := t.m.ChildCount(parent)
	if err != nil {
		return
	}
	shown := make([]treeRow, 0, n)
	for row := 0; row < n; row++ {
		a, err := t.m.Index(parent, row, 0)
		if err != nil {
			continue
		}
		if ok, _ := t.m.IsVisible(a); !ok {
			continue
		}
		node, err := t.m.NodeAt(a)
		if err != nil {
			continue
		}
		shown = append(shown, treeRow{addr: a, node: node, depth: depth, branches: branches})
	}
	for i, r := range shown {
		r.last = i == len(shown)-1
		t.rows = append(t.rows, r)
		if r.node.Kind() == mirror.KindCategory && !t.collapsed[r.node.ID()] {
			next := append(append([]bool(nil), branches...), !r.last)
			t.flatten(r.addr, depth+1, next)
		}
	}
}

func (t *TreeView) indexOf(id int64) int {
	if id == 0 {
		return -1
	}
	for i, r := range t.rows {
		if r.node.ID() == id {
			return i
		}
	}
	return -1
}

func (t *TreeView) setCursor(i int) {
	if i >= len(t.rows) {
		i = len(t.rows) - 1
	}
	if i < 0 {
		i = 0
	}
	t.cursor = i
	if len(t.rows) > 0 {
		t.selected = t.rows[i].node.ID()
	} else {
		t.selected = 0
	}
	t.ensureCursorVisible()
}

func (t *TreeView) bodyHeight() int {
	h := t.height - 2 // column header + position line
	if h < 1 {
		h = 1
	}
	return h
}

func (t *TreeView) ensureCursorVisible() {
	h := t.bodyHeight()
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+h {
		t.offset = t.cursor - h + 1
	}
	if last := len(t.rows) - h; t.offset > last {
		t.offset = last
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// Len returns the number of visible rows.
func (t *TreeView) Len() int { return len(t.rows) }

// Cursor returns the selected line.
func (t *TreeView) Cursor() int { return t.cursor }

// SelectedID returns the identity of the selected item, zero when empty.
func (t *TreeView) SelectedID() int64 { return t.selected }

// Selected returns the address and node of the selected row.
func (t *TreeView) Selected() (mirror.Address, *mirror.Node, bool) {
	if t.cursor < 0 || t.cursor >= len(t.rows) {
		return mirror.NoAddress, nil, false
	}
	r := t.rows[t.cursor]
	return r.addr, r.node, true
}

// Select moves the cursor to identity id if it is shown.
func (t *TreeView) Select(id int64) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.setCursor(i)
	return true
}

// VisibleIDs returns the identities of the visible rows, in order.
func (t *TreeView) VisibleIDs() []int64 {
	ids := make([]int64, len(t.rows))
	for i, r := range t.rows {
		ids[i] = r.node.ID()
	}
	return ids
}

func (t *TreeView) MoveUp()   { t.setCursor(t.cursor - 1) }
func (t *TreeView) MoveDown() { t.setCursor(t.cursor + 1) }
func (t *TreeView) PageUp()   { t.setCursor(t.cursor - t.bodyHeight()) }
func (t *TreeView) PageDown() { t.setCursor(t.cursor + t.bodyHeight()) }
func (t *TreeView) Top()      { t.setCursor(0) }
func (t *TreeView) Bottom()   { t.setCursor(len(t.rows) - 1) }

// Collapse folds the selected category, or jumps to the parent when it is
// already folded or a leaf.
func (t *TreeView) Collapse() {
	_, n, ok := t.Selected()
	if !ok {
		return
	}
	if n.Kind() == mirror.KindCategory && !t.collapsed[n.ID()] && n.ChildCount() > 0 {
		t.collapsed[n.ID()] = true
		t.Refresh()
		return
	}
	if p := n.Parent(); p != nil && p.Kind() != mirror.KindRoot {
		t.Select(p.ID())
	}
}

// Expand unfolds the selected category, or steps into its first child
// when it is already open.
func (t *TreeView) Expand() {
	_, n, ok := t.Selected()
	if !ok || n.Kind() != mirror.KindCategory {
		return
	}
	if t.collapsed[n.ID()] {
		delete(t.collapsed, n.ID())
		t.Refresh()
		return
	}
	if next := t.cursor + 1; next < len(t.rows) && t.rows[next].depth > t.rows[t.cursor].depth {
		t.setCursor(next)
	}
}

// Toggle folds or unfolds the selected category.
func (t *TreeView) Toggle() {
	_, n, ok := t.Selected()
	if !ok || n.Kind() != mirror.KindCategory {
		return
	}
	if t.collapsed[n.ID()] {
		delete(t.collapsed, n.ID())
	} else {
		t.collapsed[n.ID()] = true
	}
	t.Refresh()
}

// IsCollapsed reports whether category id is folded.
func (t *TreeView) IsCollapsed(id int64) bool { return t.collapsed[id] }

// layout returns the width of the tree column and of each other column.
// Trailing columns are dropped when the terminal is too narrow.
func (t *TreeView) layout() (int, []model.Column, []int) {
	cols := t.m.Columns()
	width := t.width - 1 // selection border
	var rest []model.Column
	var widths []int
	used := 0
	for _, c := range cols[1:] {
		w := columnWidths[c]
		if width-used-w-1 < minTreeColumnWidth {
			break
		}
		rest = append(rest, c)
		widths = append(widths, w)
		used += w + 1
	}
	return width - used, rest, widths
}

// View renders the column header, the visible rows and a position line.
func (t *TreeView) View() string {
	if len(t.rows) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	sb.WriteString(t.RenderHeader())
	sb.WriteString("\n")

	h := t.bodyHeight()
	end := t.offset + h
	if end > len(t.rows) {
		end = len(t.rows)
	}
	for i := t.offset; i < end; i++ {
		sb.WriteString(t.renderRow(t.rows[i], i == t.cursor))
		sb.WriteString("\n")
	}

	if len(t.rows) > h {
		sb.WriteString(t.theme.MutedText.Render(fmt.Sprintf(" %d-%d of %d", t.offset+1, end, len(t.rows))))
	}
	return sb.String()
}

func (t *TreeView) headerLabel(c model.Column) string {
	label := c.Header()
	if col, order, ok := t.m.SortColumn(); ok && col == c {
		if order == mirror.Descending {
			label += " ▼"
		} else {
			label += " ▲"
		}
	}
	return label
}

// RenderHeader renders the column titles aligned with the rows.
func (t *TreeView) RenderHeader() string {
	treeWidth, rest, widths := t.layout()
	cols := t.m.Columns()

	var sb strings.Builder
	sb.WriteString(" ")
	sb.WriteString(t.theme.ColumnHeader.Render(fitCell(t.headerLabel(cols[0]), treeWidth, false)))
	for i, c := range rest {
		sb.WriteString(" ")
		sb.WriteString(t.theme.ColumnHeader.Render(fitCell(t.headerLabel(c), widths[i], c == model.ColumnDuration)))
	}
	return sb.String()
}

func (t *TreeView) branchPrefix(r treeRow) string {
	if r.depth == 0 {
		return ""
	}
	var sb strings.Builder
	for _, more := range r.branches[1:] {
		if more {
			sb.WriteString("│ ")
		} else {
			sb.WriteString("  ")
		}
	}
	if r.last {
		sb.WriteString("└ ")
	} else {
		sb.WriteString("├ ")
	}
	return sb.String()
}

func (t *TreeView) indicator(n *mirror.Node) string {
	switch {
	case n.Playing():
		return "▶"
	case n.Kind() != mirror.KindCategory:
		return " "
	case t.collapsed[n.ID()]:
		return "▸"
	default:
		return "▾"
	}
}

func (t *TreeView) titleStyle(n *mirror.Node, title string) lipgloss.Style {
	switch {
	case n.Playing():
		return t.theme.PlayingText
	case n.Flags()&mirror.FlagDisabled != 0:
		return t.theme.DisabledText
	case t.m.Query() != "" && strings.Contains(strings.ToLower(title), t.m.Query()):
		return t.theme.MatchText
	default:
		return t.theme.TitleText
	}
}

func (t *TreeView) renderRow(r treeRow, selected bool) string {
	treeWidth, rest, widths := t.layout()

	prefix := t.branchPrefix(r)
	deco, _ := t.m.Decoration(r.addr)
	deco = truncate(deco, 2)
	if deco == "" {
		deco = " "
	}
	lead := prefix + t.indicator(r.node) + " " + deco + " "
	leadWidth := lipgloss.Width(lead)

	title, _ := t.m.ValueAt(r.addr, 0)
	titleWidth := treeWidth - leadWidth
	if titleWidth < 1 {
		titleWidth = 1
	}
	title = fitCell(title, titleWidth, false)

	var sb strings.Builder
	sb.WriteString(t.theme.TreeBranch.Render(prefix))
	sb.WriteString(t.theme.InfoText.Render(t.indicator(r.node)))
	sb.WriteString(" ")
	typeStyle := t.theme.Renderer.NewStyle().Foreground(t.theme.TypeColor(r.node.ItemType()))
	sb.WriteString(typeStyle.Render(deco))
	sb.WriteString(" ")
	sb.WriteString(t.titleStyle(r.node, title).Render(title))

	all := t.m.Columns()
	for i, c := range rest {
		idx := columnIndex(all, c)
		v, _ := t.m.ValueAt(r.addr, idx)
		sb.WriteString(" ")
		sb.WriteString(t.theme.MutedText.Render(fitCell(v, widths[i], c == model.ColumnDuration)))
	}

	line := sb.String()
	if selected {
		return t.theme.Selected.Render(line)
	}
	return " " + line
}

func columnIndex(cols []model.Column, c model.Column) int {
	for i, x := range cols {
		if x == c {
			return i
		}
	}
	return -1
}

func (t *TreeView) renderEmptyState() string {
	msg := "Playlist is empty"
	if q := t.m.Query(); q != "" {
		msg = fmt.Sprintf("No titles match %q", q)
	}
	return t.theme.MutedText.Render("  " + msg)
}
