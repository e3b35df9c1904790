package model

import (
	"fmt"
	"strings"
	"time"
)

// Column identifies one display column of a playlist item.
type Column int

const (
	ColumnTitle Column = iota
	ColumnArtist
	ColumnAlbum
	ColumnDuration
	ColumnGenre
	ColumnURI
	NumColumns
)

var columnNames = [...]string{"title", "artist", "album", "duration", "genre", "uri"}

func (c Column) String() string {
	if c < 0 || c >= NumColumns {
		return "unknown"
	}
	return columnNames[c]
}

// Header returns the column label shown above the tree.
func (c Column) Header() string {
	s := c.String()
	if s == "uri" {
		return "URI"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseColumn maps a config name back to its Column.
func ParseColumn(name string) (Column, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range columnNames {
		if n == name {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}

// DefaultColumns is the column set used when none is configured.
func DefaultColumns() []Column {
	return []Column{ColumnTitle, ColumnArtist, ColumnDuration}
}

// Value renders the item's text for column c.
// Categories only carry a title.
func (it Item) Value(c Column) string {
	if it.Kind == KindCategory && c != ColumnTitle {
		return ""
	}
	switch c {
	case ColumnTitle:
		return it.DisplayTitle()
	case ColumnArtist:
		return it.Artist
	case ColumnAlbum:
		return it.Album
	case ColumnDuration:
		return FormatDuration(it.Duration)
	case ColumnGenre:
		return it.Genre
	case ColumnURI:
		return it.URI
	}
	return ""
}

// FormatDuration renders d as m:ss or h:mm:ss. Zero renders as "--:--".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
