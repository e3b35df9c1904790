package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Rows
	Playing  lipgloss.AdaptiveColor
	Disabled lipgloss.AdaptiveColor
	Match    lipgloss.AdaptiveColor

	// Item types
	File      lipgloss.AdaptiveColor
	Directory lipgloss.AdaptiveColor
	Disc      lipgloss.AdaptiveColor
	Card      lipgloss.AdaptiveColor
	Net       lipgloss.AdaptiveColor
	Playlist  lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base         lipgloss.Style
	Selected     lipgloss.Style
	Header       lipgloss.Style
	ColumnHeader lipgloss.Style

	// Pre-computed row styles, created once instead of per frame.
	MutedText    lipgloss.Style
	TreeBranch   lipgloss.Style
	TitleText    lipgloss.Style
	PlayingText  lipgloss.Style
	MatchText    lipgloss.Style
	DisabledText lipgloss.Style
	ErrorText    lipgloss.Style
	InfoText     lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   ColorPrimary,
		Secondary: ColorSecondary,
		Subtext:   ColorSubtext,

		Playing:  ColorSuccess,
		Disabled: lipgloss.AdaptiveColor{Light: "#888888", Dark: "#44475A"},
		Match:    ColorWarning,

		File:      lipgloss.AdaptiveColor{Light: "#2684FF", Dark: "#4C9AFF"},
		Directory: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Disc:      lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Card:      lipgloss.AdaptiveColor{Light: "#008080", Dark: "#00CED1"},
		Net:       lipgloss.AdaptiveColor{Light: "#36B37E", Dark: "#57D9A3"},
		Playlist:  lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF79C6"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: ColorBgHighlight,
		Muted:     ColorMuted,
	}

	t.Base = r.NewStyle().Foreground(ColorText)

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.ColumnHeader = r.NewStyle().Foreground(t.Secondary).Bold(true).Underline(true)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.TreeBranch = r.NewStyle().Foreground(t.Muted)
	t.TitleText = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E8E8E8"})
	t.PlayingText = r.NewStyle().Foreground(t.Playing).Bold(true)
	t.MatchText = r.NewStyle().Foreground(t.Match)
	t.DisabledText = r.NewStyle().Foreground(t.Disabled).Strikethrough(true)
	t.ErrorText = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.InfoText = r.NewStyle().Foreground(ColorInfo)

	return t
}

// TypeColor returns the accent used for an item type's decoration.
func (t Theme) TypeColor(typ model.ItemType) lipgloss.AdaptiveColor {
	switch typ {
	case model.TypeFile:
		return t.File
	case model.TypeDirectory:
		return t.Directory
	case model.TypeDisc:
		return t.Disc
	case model.TypeCard:
		return t.Card
	case model.TypeNet:
		return t.Net
	case model.TypePlaylist:
		return t.Playlist
	case model.TypeNode:
		return t.Primary
	default:
		return t.Subtext
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
