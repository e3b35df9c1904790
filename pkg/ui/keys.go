package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding of the playlist view.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Collapse key.Binding
	Expand   key.Binding
	Toggle   key.Binding

	Activate key.Binding
	Delete   key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Sort     key.Binding
	Reverse  key.Binding
	Search   key.Binding
	Random   key.Binding
	Loop     key.Binding
	Repeat   key.Binding
	Rebuild  key.Binding
	Reload   key.Binding
	Copy     key.Binding
	Disabled key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("ctrl+u", "page up")),
		PageDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("ctrl+d", "page down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Collapse: key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "collapse / parent")),
		Expand:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "expand / child")),
		Toggle:   key.NewBinding(key.WithKeys("tab", " "), key.WithHelp("tab", "fold")),

		Activate: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		Delete:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		MoveUp:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown: key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		Reverse:  key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sort order")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Random:   key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "random")),
		Loop:     key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "loop")),
		Repeat:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "repeat")),
		Rebuild:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "rebuild")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload file")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy URI")),
		Disabled: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "disabled items")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// footerHints are the bindings listed in the status bar.
func (k keyMap) footerHints() []key.Binding {
	return []key.Binding{k.Activate, k.Delete, k.Search, k.Sort, k.Random, k.Help, k.Quit}
}
