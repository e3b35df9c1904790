// Package loader reads playlist files into item descriptors that a
// backend.Playlist can Replace its content with.
//
// Two formats are understood: JSON Lines, one item per line, and extended
// M3U. Malformed lines are skipped with a warning rather than failing the
// whole load.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/plmirror/pkg/metrics"
	"github.com/vanderheijden86/plmirror/pkg/model"
)

// PlaylistEnvVar names a playlist file that overrides discovery.
const PlaylistEnvVar = "PLM_PLAYLIST"

// PreferredNames defines the lookup priority inside a playlist directory.
var PreferredNames = []string{"playlist.jsonl", "playlist.m3u8", "playlist.m3u"}

// DefaultMaxBufferSize is the longest line the scanner accepts (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// Format identifies a playlist file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSONL
	FormatM3U
)

func (f Format) String() string {
	switch f {
	case FormatJSONL:
		return "jsonl"
	case FormatM3U:
		return "m3u"
	default:
		return "unknown"
	}
}

// Common errors.
var (
	ErrNoPlaylist      = errors.New("no playlist file found")
	ErrUnknownFormat   = errors.New("unknown playlist format")
	ErrLineTooLong     = errors.New("line too long")
	ErrUnknownParent   = errors.New("parent not declared earlier")
	ErrDuplicateItemID = errors.New("duplicate item id")
)

// LoadError describes one line that could not be used.
type LoadError struct {
	Line  int
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ParseOptions configures parsing.
type ParseOptions struct {
	// WarningHandler receives a *LoadError for every skipped line. If nil,
	// warnings are printed to os.Stderr unless PLM_ROBOT=1.
	WarningHandler func(error)

	// BufferSize caps the length of one line. Zero means DefaultMaxBufferSize.
	BufferSize int

	// Filter optionally drops parsed items. Return true to keep.
	// Children of a dropped category are dropped too.
	Filter func(*model.Item) bool
}

func (o ParseOptions) warner() func(error) {
	if o.WarningHandler != nil {
		return func(err error) {
			metrics.MalformedItems.Inc()
			o.WarningHandler(err)
		}
	}
	if os.Getenv("PLM_ROBOT") == "1" {
		return func(error) { metrics.MalformedItems.Inc() }
	}
	return func(err error) {
		metrics.MalformedItems.Inc()
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func (o ParseOptions) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultMaxBufferSize
	}
	return o.BufferSize
}

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	case ".m3u", ".m3u8":
		return FormatM3U
	}
	return FormatUnknown
}

// FindPlaylist resolves the playlist to open. A file path is returned as
// is; a directory is searched for PreferredNames, then for any other
// supported file. PLM_PLAYLIST wins over both.
func FindPlaylist(path string) (string, error) {
	if env := os.Getenv(PlaylistEnvVar); env != "" {
		return env, nil
	}
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		path = wd
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat playlist: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist directory: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || DetectFormat(name) == FormatUnknown {
			continue
		}
		if strings.Contains(name, ".backup") || strings.HasSuffix(name, "~") || strings.HasPrefix(name, ".") {
			continue
		}
		candidates = append(candidates, name)
	}
	for _, preferred := range PreferredNames {
		for _, name := range candidates {
			if name == preferred {
				return filepath.Join(path, name), nil
			}
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoPlaylist, path)
	}
	return filepath.Join(path, candidates[0]), nil
}

// LoadFile reads the playlist at path, choosing the parser by extension.
func LoadFile(path string) ([]model.Item, error) {
	return LoadFileWithOptions(path, ParseOptions{})
}

// LoadFileWithOptions is LoadFile with custom options.
func LoadFileWithOptions(path string, opts ParseOptions) ([]model.Item, error) {
	defer metrics.Timer(metrics.PlaylistLoad)()

	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	if format == FormatM3U {
		return ParseM3U(f, opts)
	}
	return ParseJSONL(f, opts)
}

// lines feeds fn every line of r with its 1-based number. Over-long lines
// are reported through warn and skipped.
func lines(r io.Reader, size int, warn func(error), fn func(n int, line []byte)) error {
	reader := bufio.NewReaderSize(r, size)
	for n := 1; ; n++ {
		line, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading playlist at line %d: %w", n, err)
		}
		if isPrefix {
			warn(&LoadError{Line: n, Cause: fmt.Errorf("%w (exceeds %d bytes)", ErrLineTooLong, size)})
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return fmt.Errorf("error skipping long line at line %d: %w", n, err)
				}
			}
			continue
		}
		if n == 1 {
			line = stripBOM(line)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		fn(n, line)
	}
}

func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

// placed tracks which ids have been accepted so far, so that parents
// precede children and identities stay unique.
type placed struct {
	kinds   map[int64]model.Kind
	dropped map[int64]bool
	maxID   int64
}

func newPlaced() *placed {
	return &placed{kinds: make(map[int64]model.Kind), dropped: make(map[int64]bool)}
}

func (p *placed) check(it *model.Item) error {
	if _, dup := p.kinds[it.ID]; dup {
		return fmt.Errorf("%w %d", ErrDuplicateItemID, it.ID)
	}
	if it.ParentID != 0 {
		kind, ok := p.kinds[it.ParentID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownParent, it.ParentID)
		}
		if kind != model.KindCategory {
			return fmt.Errorf("parent %d is not a category", it.ParentID)
		}
	}
	return it.Validate()
}

func (p *placed) add(it model.Item) {
	p.kinds[it.ID] = it.Kind
	if it.ID > p.maxID {
		p.maxID = it.ID
	}
}
