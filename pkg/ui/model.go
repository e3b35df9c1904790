// Package ui is the terminal front end of plm: a bubbletea program that
// shows a mirror of the playlist and turns key presses into mirror
// requests.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/metrics"
	"github.com/vanderheijden86/plmirror/pkg/mirror"
	"github.com/vanderheijden86/plmirror/pkg/model"
	"github.com/vanderheijden86/plmirror/pkg/watcher"
)

// FileChangedMsg is sent when the playlist file changes on disk.
type FileChangedMsg struct {
	Removed bool
}

// ReloadedMsg carries the outcome of a playlist reload.
type ReloadedMsg struct {
	Diff backend.Diff
	Err  error
}

// ReloadFunc re-reads the playlist into the backend.
type ReloadFunc func(ctx context.Context) (backend.Diff, error)

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		c := <-w.Changes()
		return FileChangedMsg{Removed: c.Removed}
	}
}

func drainCmd() tea.Cmd {
	return func() tea.Msg { return DrainMsg{} }
}

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the name shown in the title bar.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithTheme overrides the default theme.
func WithTheme(t Theme) Option {
	return func(m *Model) { m.theme = t }
}

// WithReload enables reloading the playlist file with the reload key.
func WithReload(fn ReloadFunc) Option {
	return func(m *Model) { m.reload = fn }
}

// WithWatcher reloads whenever w reports a change. It needs WithReload.
func WithWatcher(w *watcher.Watcher) Option {
	return func(m *Model) { m.watcher = w }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(m *Model) { m.copy = fn }
}

// Model is the bubbletea model of the playlist view. It owns the mirror:
// every Drain and every read happens inside Update or View.
type Model struct {
	mirror *mirror.Mirror
	tree   *TreeView
	theme  Theme
	keys   keyMap

	title  string
	width  int
	height int

	searching bool
	search    textinput.Model

	showHelp bool
	help     viewport.Model

	status        string
	statusIsError bool

	reload  ReloadFunc
	watcher *watcher.Watcher
	copy    func(string) error
}

// NewModel creates the view of a started mirror and registers its tree as
// a listener.
func NewModel(mr *mirror.Mirror, opts ...Option) Model {
	m := Model{
		mirror: mr,
		theme:  DefaultTheme(lipgloss.DefaultRenderer()),
		keys:   defaultKeyMap(),
		title:  "plm",
		copy:   clipboard.WriteAll,
		width:  80,
		height: 24,
	}
	for _, opt := range opts {
		opt(&m)
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search titles"
	ti.CharLimit = 100
	m.search = ti

	m.help = viewport.New(m.width, m.height-2)

	m.tree = NewTreeView(mr, m.theme)
	mr.AddListener(m.tree)
	m.tree.SetSize(m.width, m.bodyHeight())
	m.tree.Refresh()
	return m
}

// Tree exposes the tree view.
func (m Model) Tree() *TreeView { return m.tree }

// Status returns the status line text and whether it reports an error.
func (m Model) Status() (string, bool) { return m.status, m.statusIsError }

// Searching reports whether the search box has focus.
func (m Model) Searching() bool { return m.searching }

// HelpVisible reports whether the help overlay is shown.
func (m Model) HelpVisible() bool { return m.showHelp }

func (m Model) bodyHeight() int {
	h := m.height - 2 // title bar + footer
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{drainCmd()}
	if m.watcher != nil && m.reload != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

// drain applies queued events and refreshes the tree when anything moved.
func (m *Model) drain() {
	m.mirror.Drain()
	if m.tree.Dirty() {
		m.tree.Refresh()
	}
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusIsError = isErr
}

func (m *Model) reportErr(action string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, mirror.ErrStaleAddress) {
		m.setStatus(action+": item changed, try again", true)
		return
	}
	m.setStatus(fmt.Sprintf("%s: %v", action, err), true)
}

func (m Model) reloadCmd() tea.Cmd {
	reload := m.reload
	return func() tea.Msg {
		d, err := reload(context.Background())
		return ReloadedMsg{Diff: d, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tree.SetSize(m.width, m.bodyHeight())
		m.help.Width = m.width
		m.help.Height = m.bodyHeight()
		if m.showHelp {
			m.help.SetContent(renderHelp(m.keys, m.width-4))
		}
		return m, nil

	case DrainMsg:
		m.drain()
		return m, nil

	case FileChangedMsg:
		if m.reload == nil {
			return m, nil
		}
		var cmds []tea.Cmd
		if msg.Removed {
			m.reportErr("watch", watcher.ErrFileRemoved)
		} else {
			m.setStatus("playlist changed, reloading…", false)
			cmds = append(cmds, m.reloadCmd())
		}
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		return m, tea.Batch(cmds...)

	case ReloadedMsg:
		m.drain()
		if msg.Err != nil {
			m.reportErr("reload", msg.Err)
		} else {
			m.setStatus("reloaded: "+msg.Diff.Summary(), false)
		}
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			return m.handleHelpKeys(msg)
		}
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help), msg.String() == "esc", msg.String() == "q":
		m.showHelp = false
		return m, nil
	}
	var cmd tea.Cmd
	m.help, cmd = m.help.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.mirror.RequestSearch("")
		m.drain()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.mirror.RequestSearch(v)
		m.drain()
	}
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	m.setStatus("", false)
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Up):
		m.tree.MoveUp()
	case key.Matches(msg, k.Down):
		m.tree.MoveDown()
	case key.Matches(msg, k.PageUp):
		m.tree.PageUp()
	case key.Matches(msg, k.PageDown):
		m.tree.PageDown()
	case key.Matches(msg, k.Top):
		m.tree.Top()
	case key.Matches(msg, k.Bottom):
		m.tree.Bottom()
	case key.Matches(msg, k.Collapse):
		m.tree.Collapse()
	case key.Matches(msg, k.Expand):
		m.tree.Expand()
	case key.Matches(msg, k.Toggle):
		m.tree.Toggle()

	case key.Matches(msg, k.Activate):
		m.activate()
	case key.Matches(msg, k.Delete):
		m.deleteSelected()
	case key.Matches(msg, k.MoveUp):
		m.moveSelected(-1)
	case key.Matches(msg, k.MoveDown):
		m.moveSelected(1)
	case key.Matches(msg, k.Copy):
		m.copyURI()

	case key.Matches(msg, k.Search):
		m.searching = true
		m.search.SetValue(m.mirror.Query())
		return m, m.search.Focus()
	case key.Matches(msg, k.Sort):
		m.cycleSort()
	case key.Matches(msg, k.Reverse):
		m.reverseSort()
	case key.Matches(msg, k.Disabled):
		show := !m.mirror.ShowDisabled()
		m.mirror.SetShowDisabled(show)
		m.drain()
		m.setStatus(fmt.Sprintf("disabled items %s", onOff(show)), false)
	case key.Matches(msg, k.Rebuild):
		m.mirror.Rebuild()
		m.drain()
		m.setStatus("rebuilt", false)
	case key.Matches(msg, k.Reload):
		if m.reload == nil {
			m.setStatus("no playlist file to reload", true)
			return m, nil
		}
		m.setStatus("reloading…", false)
		return m, m.reloadCmd()

	case key.Matches(msg, k.Random):
		m.toggleMode(backend.ModeRandom)
	case key.Matches(msg, k.Loop):
		m.toggleMode(backend.ModeLoop)
	case key.Matches(msg, k.Repeat):
		m.toggleMode(backend.ModeRepeat)

	case key.Matches(msg, k.Help):
		m.showHelp = true
		m.help.Width = m.width
		m.help.Height = m.bodyHeight()
		m.help.SetContent(renderHelp(m.keys, m.width-4))
		m.help.GotoTop()
	}
	return m, nil
}

func (m *Model) activate() {
	addr, n, ok := m.tree.Selected()
	if !ok {
		return
	}
	if err := m.mirror.RequestActivate(addr); err != nil {
		m.reportErr("play", err)
		return
	}
	m.drain()
	m.setStatus("playing "+n.Value(model.ColumnTitle), false)
}

func (m *Model) deleteSelected() {
	addr, n, ok := m.tree.Selected()
	if !ok {
		return
	}
	title := n.Value(model.ColumnTitle)
	if err := m.mirror.RequestDelete(addr); err != nil {
		m.reportErr("delete", err)
		return
	}
	m.drain()
	m.setStatus(fmt.Sprintf("deleted %q", title), false)
}

// moveSelected moves the selected item one row up (dir < 0) or down
// among its siblings.
func (m *Model) moveSelected(dir int) {
	addr, _, ok := m.tree.Selected()
	if !ok {
		return
	}
	parent, err := m.mirror.ParentOf(addr)
	if err != nil {
		m.reportErr("move", err)
		return
	}
	count, err := m.mirror.ChildCount(parent)
	if err != nil {
		m.reportErr("move", err)
		return
	}
	row := addr.Row()
	var dest int
	if dir < 0 {
		if row == 0 {
			return
		}
		dest = row - 1
	} else {
		if row >= count-1 {
			return
		}
		dest = row + 2
	}
	if err := m.mirror.RequestMove([]mirror.Address{addr}, parent, dest); err != nil {
		m.reportErr("move", err)
		return
	}
	m.drain()
	if _, _, sorted := m.mirror.SortColumn(); sorted {
		m.setStatus("moved; the view stays sorted", false)
	}
}

func (m *Model) copyURI() {
	_, n, ok := m.tree.Selected()
	if !ok {
		return
	}
	uri := n.Value(model.ColumnURI)
	if uri == "" {
		m.setStatus("nothing to copy", true)
		return
	}
	if err := m.copy(uri); err != nil {
		m.reportErr("copy", err)
		return
	}
	m.setStatus("copied "+uri, false)
}

func (m *Model) cycleSort() {
	cols := m.mirror.Columns()
	next := 0
	if col, _, ok := m.mirror.SortColumn(); ok {
		next = (columnIndex(cols, col) + 1) % len(cols)
	}
	if err := m.mirror.RequestSort(cols[next], mirror.Ascending); err != nil {
		m.reportErr("sort", err)
		return
	}
	m.drain()
	m.setStatus("sorted by "+cols[next].String(), false)
}

func (m *Model) reverseSort() {
	col, order, ok := m.mirror.SortColumn()
	if !ok {
		col = m.mirror.Columns()[0]
		order = mirror.Descending
	} else if order == mirror.Ascending {
		order = mirror.Descending
	} else {
		order = mirror.Ascending
	}
	if err := m.mirror.RequestSort(col, order); err != nil {
		m.reportErr("sort", err)
		return
	}
	m.drain()
	m.setStatus(fmt.Sprintf("sorted by %s %s", col, order), false)
}

func (m *Model) toggleMode(mode backend.Mode) {
	on := !m.mirror.Mode(mode)
	m.mirror.SetMode(mode, on)
	m.setStatus(fmt.Sprintf("%s %s", mode, onOff(on)), false)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	var body string
	if m.showHelp {
		body = m.help.View()
	} else {
		body = m.tree.View()
	}
	body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderTitleBar(), body, m.renderFooter())
}

func (m Model) renderTitleBar() string {
	r := m.theme.Renderer
	left := m.theme.Header.Render(m.title)

	info := fmt.Sprintf(" %d items", m.mirror.Len())
	if q := m.mirror.Query(); q != "" {
		info += fmt.Sprintf(" · %d shown", m.tree.Len())
	}
	left += m.theme.MutedText.Render(info)

	badges := []string{
		RenderModeBadge(r, "random", m.mirror.Mode(backend.ModeRandom)),
		RenderModeBadge(r, "loop", m.mirror.Mode(backend.ModeLoop)),
		RenderModeBadge(r, "repeat", m.mirror.Mode(backend.ModeRepeat)),
	}
	right := strings.Join(badges, " ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderFooter() string {
	if m.searching {
		return m.search.View()
	}
	if m.status != "" {
		if m.statusIsError {
			return m.theme.ErrorText.Render(truncate(m.status, m.width))
		}
		return m.theme.InfoText.Render(truncate(m.status, m.width))
	}
	var parts []string
	for _, b := range m.keys.footerHints() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.MutedText.Render(truncate(strings.Join(parts, " • "), m.width))
}
