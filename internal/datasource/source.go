// Package datasource picks where a playlist session starts from: the
// playlist file itself or the session database saved by a previous run,
// whichever is fresher.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/vanderheijden86/plmirror/pkg/loader"
	"github.com/vanderheijden86/plmirror/pkg/store"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSession is a session database written by plm
	SourceTypeSession SourceType = "session"
	// SourceTypeJSONL is a JSONL playlist file
	SourceTypeJSONL SourceType = "jsonl"
	// SourceTypeM3U is an M3U/M3U8 playlist file
	SourceTypeM3U SourceType = "m3u"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySession = 100
	PriorityFile    = 50
)

// ErrNoSources is returned when discovery finds nothing valid to load.
var ErrNoSources = errors.New("no valid playlist source")

// DataSource represents a potential source of playlist items
type DataSource struct {
	Type SourceType `json:"type"`
	Path string     `json:"path"`
	// Priority breaks ties when modification times are equal.
	Priority int `json:"priority"`
	// ModTime is the file mtime, or the save time for a session.
	ModTime         time.Time `json:"mod_time"`
	Valid           bool      `json:"valid"`
	ValidationError string    `json:"validation_error,omitempty"`
	ItemCount       int       `json:"item_count"`
	Size            int64     `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, items=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.ItemCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// PlaylistPath is a playlist file or a directory holding one.
	PlaylistPath string
	// StorePath is the session database; empty skips it.
	StorePath string
	// ValidateAfterDiscovery loads each discovered source once.
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages when set.
	Logger func(msg string)
}

// DiscoverSources finds the candidate sources, freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	var sources []DataSource

	if opts.PlaylistPath != "" || os.Getenv(loader.PlaylistEnvVar) != "" {
		path, err := loader.FindPlaylist(opts.PlaylistPath)
		switch {
		case err == nil:
			if s, ok := fileSource(path); ok {
				sources = append(sources, s)
				logf("Found playlist: %s (mod=%s)", path, s.ModTime.Format(time.RFC3339))
			}
		case errors.Is(err, loader.ErrNoPlaylist):
			logf("No playlist file under %s", opts.PlaylistPath)
		default:
			return nil, err
		}
	}

	if opts.StorePath != "" {
		if info, err := os.Stat(opts.StorePath); err == nil {
			sources = append(sources, DataSource{
				Type:     SourceTypeSession,
				Path:     opts.StorePath,
				Priority: PrioritySession,
				ModTime:  info.ModTime(),
				Size:     info.Size(),
			})
			logf("Found session: %s", opts.StorePath)
		}
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(ctx, &sources[i]); err != nil {
				logf("Validation failed for %s: %v", sources[i].Path, err)
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sortSources(sources)
	logf("Discovered %d sources", len(sources))
	return sources, nil
}

func fileSource(path string) (DataSource, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return DataSource{}, false
	}
	typ := SourceTypeJSONL
	if loader.DetectFormat(path) == loader.FormatM3U {
		typ = SourceTypeM3U
	}
	return DataSource{
		Type:     typ,
		Path:     path,
		Priority: PriorityFile,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, true
}

func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

// ValidateSource loads s once, recording whether it is usable and how many
// items it holds. A session's ModTime becomes its recorded save time.
func ValidateSource(ctx context.Context, s *DataSource) error {
	s.Valid = false
	s.ValidationError = ""

	fail := func(err error) error {
		s.ValidationError = err.Error()
		return err
	}

	switch s.Type {
	case SourceTypeSession:
		st, err := store.Open(s.Path)
		if err != nil {
			return fail(err)
		}
		defer st.Close()
		n, err := st.Count(ctx)
		if err != nil {
			return fail(err)
		}
		if n == 0 {
			return fail(errors.New("session is empty"))
		}
		if at, err := st.SavedAt(ctx); err == nil && !at.IsZero() {
			s.ModTime = at
		}
		s.ItemCount = n

	case SourceTypeJSONL, SourceTypeM3U:
		items, err := loader.LoadFileWithOptions(s.Path, loader.ParseOptions{WarningHandler: func(error) {}})
		if err != nil {
			return fail(err)
		}
		s.ItemCount = len(items)

	default:
		return fail(fmt.Errorf("unknown source type: %s", s.Type))
	}

	s.Valid = true
	return nil
}

// SelectBestSource returns the first valid source of an already sorted list.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, ErrNoSources
}
