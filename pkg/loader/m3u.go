package loader

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// m3uState accumulates directives until the URI line they describe.
type m3uState struct {
	title    string
	artist   string
	album    string
	genre    string
	group    string
	duration time.Duration
}

// ParseM3U reads an extended M3U playlist. #EXTINF supplies the duration
// and "artist - title", #EXTGRP places the following entries in a
// category of that name under the root, #EXTALB and #EXTGENRE fill the
// album and genre. Other comments are ignored.
func ParseM3U(r io.Reader, opts ParseOptions) ([]model.Item, error) {
	warn := opts.warner()

	var (
		items  []model.Item
		cur    m3uState
		nextID = RootID + 1
		groups = make(map[string]int64)
		// group names dropped by the filter
		skipped = make(map[string]bool)
	)

	groupID := func(name string) (int64, bool) {
		if name == "" {
			return 0, true
		}
		if skipped[name] {
			return 0, false
		}
		if id, ok := groups[name]; ok {
			return id, true
		}
		cat := model.Item{ID: nextID, Kind: model.KindCategory, Title: name, Position: model.AppendPosition}
		if opts.Filter != nil && !opts.Filter(&cat) {
			skipped[name] = true
			return 0, false
		}
		nextID++
		groups[name] = cat.ID
		items = append(items, cat)
		return cat.ID, true
	}

	err := lines(r, opts.bufferSize(), warn, func(n int, raw []byte) {
		line := string(raw)
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			cur.title, cur.artist, cur.duration = "", "", 0
			if err := cur.parseExtinf(line[len("#EXTINF:"):]); err != nil {
				warn(&LoadError{Line: n, Cause: err})
			}
		case strings.HasPrefix(line, "#EXTGRP:"):
			cur.group = strings.TrimSpace(line[len("#EXTGRP:"):])
		case strings.HasPrefix(line, "#EXTALB:"):
			cur.album = strings.TrimSpace(line[len("#EXTALB:"):])
		case strings.HasPrefix(line, "#EXTGENRE:"):
			cur.genre = strings.TrimSpace(line[len("#EXTGENRE:"):])
		case strings.HasPrefix(line, "#"):
			// other directives and comments
		default:
			parent, ok := groupID(cur.group)
			it := model.Item{
				ID:       nextID,
				ParentID: parent,
				Kind:     model.KindLeaf,
				Type:     typeForURI(line),
				Title:    cur.title,
				Artist:   cur.artist,
				Album:    cur.album,
				Genre:    cur.genre,
				Duration: cur.duration,
				URI:      line,
				Position: model.AppendPosition,
			}
			it.InputID = it.ID
			group := cur.group
			cur = m3uState{group: group}
			if !ok || (opts.Filter != nil && !opts.Filter(&it)) {
				return
			}
			nextID++
			items = append(items, it)
		}
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// parseExtinf reads "<seconds>[ attributes],<display>".
func (s *m3uState) parseExtinf(v string) error {
	head, display, ok := strings.Cut(v, ",")
	if !ok {
		return fmt.Errorf("#EXTINF without a title separator")
	}
	display = strings.TrimSpace(display)
	if artist, title, found := strings.Cut(display, " - "); found {
		s.artist, s.title = strings.TrimSpace(artist), strings.TrimSpace(title)
	} else {
		s.title = display
	}

	secs, _, _ := strings.Cut(strings.TrimSpace(head), " ")
	f, err := strconv.ParseFloat(secs, 64)
	if err != nil {
		return fmt.Errorf("#EXTINF duration %q: %w", secs, err)
	}
	if f > 0 {
		s.duration = time.Duration(f * float64(time.Second))
	}
	return nil
}

func typeForURI(uri string) model.ItemType {
	if strings.HasSuffix(uri, "/") {
		return model.TypeDirectory
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return model.TypeFile
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return model.TypeFile
	case "dvd", "dvdsimple", "cdda", "vcd", "bluray":
		return model.TypeDisc
	case "v4l2", "dshow", "qtcapture":
		return model.TypeCard
	case "http", "https", "rtsp", "rtp", "udp", "mms", "ftp", "sftp", "smb":
		return model.TypeNet
	}
	return model.TypeUnknown
}
