package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// RootID is reserved for the playlist root and never assigned to an item.
const RootID int64 = 1

// record is the on-disk shape of one JSONL line.
type record struct {
	ID       int64          `json:"id,omitempty"`
	ParentID int64          `json:"parent_id,omitempty"`
	InputID  int64          `json:"input_id,omitempty"`
	Kind     model.Kind     `json:"kind"`
	Type     model.ItemType `json:"type,omitempty"`
	Title    string         `json:"title,omitempty"`
	Artist   string         `json:"artist,omitempty"`
	Album    string         `json:"album,omitempty"`
	Genre    string         `json:"genre,omitempty"`
	Duration duration       `json:"duration,omitempty"`
	URI      string         `json:"uri,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
}

func (r record) item() model.Item {
	return model.Item{
		ID:       r.ID,
		ParentID: r.ParentID,
		InputID:  r.InputID,
		Kind:     r.Kind,
		Type:     r.Type,
		Title:    r.Title,
		Artist:   r.Artist,
		Album:    r.Album,
		Genre:    r.Genre,
		Duration: time.Duration(r.Duration),
		URI:      r.URI,
		Disabled: r.Disabled,
		Position: model.AppendPosition,
	}
}

func recordOf(it model.Item) record {
	r := record{
		ID:       it.ID,
		ParentID: it.ParentID,
		Kind:     it.Kind,
		Type:     it.Type,
		Title:    it.Title,
		Artist:   it.Artist,
		Album:    it.Album,
		Genre:    it.Genre,
		Duration: duration(it.Duration),
		URI:      it.URI,
		Disabled: it.Disabled,
	}
	if r.ParentID == RootID {
		r.ParentID = 0
	}
	if it.InputID != it.ID {
		r.InputID = it.InputID
	}
	return r
}

// duration decodes either seconds as a number, a Go duration string such
// as "3m20s", or a clock string such as "3:20" or "1:02:03".
type duration time.Duration

func (d duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] != '"' {
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = duration(secs * float64(time.Second))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ":") {
		return time.ParseDuration(s)
	}
	var total time.Duration
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid clock duration %q", s)
		}
		total = total*60 + time.Duration(n)
	}
	return total * time.Second, nil
}

type pendingRecord struct {
	line int
	rec  record
}

// ParseJSONL reads one item per line. Items without an id are numbered
// after the highest explicit id; parent_id zero places an item under the
// root, and a parent must appear before its children.
func ParseJSONL(r io.Reader, opts ParseOptions) ([]model.Item, error) {
	warn := opts.warner()

	var pending []pendingRecord
	maxID := RootID
	err := lines(r, opts.bufferSize(), warn, func(n int, line []byte) {
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			warn(&LoadError{Line: n, Cause: fmt.Errorf("malformed JSON: %w", err)})
			return
		}
		if rec.ID > maxID {
			maxID = rec.ID
		}
		pending = append(pending, pendingRecord{line: n, rec: rec})
	})
	if err != nil {
		return nil, err
	}

	nextID := maxID + 1
	seen := newPlaced()
	items := make([]model.Item, 0, len(pending))
	for _, p := range pending {
		it := p.rec.item()
		if it.ID == RootID {
			warn(&LoadError{Line: p.line, Cause: fmt.Errorf("id %d is reserved for the root", RootID)})
			continue
		}
		if it.ID == 0 {
			it.ID = nextID
			nextID++
		}
		if it.Kind == model.KindLeaf && it.InputID == 0 {
			it.InputID = it.ID
		}
		if seen.dropped[it.ParentID] {
			seen.dropped[it.ID] = true
			continue
		}
		if err := seen.check(&it); err != nil {
			warn(&LoadError{Line: p.line, Cause: err})
			continue
		}
		if opts.Filter != nil && !opts.Filter(&it) {
			seen.dropped[it.ID] = true
			continue
		}
		seen.add(it)
		items = append(items, it)
	}
	return items, nil
}

// WriteJSONL writes items in the format ParseJSONL reads. Items must be
// in parents-first order, which backend.Playlist.Items guarantees.
func WriteJSONL(w io.Writer, items []model.Item) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, it := range items {
		if err := enc.Encode(recordOf(it)); err != nil {
			return fmt.Errorf("encode item %d: %w", it.ID, err)
		}
	}
	return bw.Flush()
}
