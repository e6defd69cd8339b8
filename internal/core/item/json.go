package item

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// rawEntry is one entry of yt-dlp's --flat-playlist -j output.
type rawEntry struct {
	ID           json.RawMessage `json:"id"`
	Title        *string         `json:"title"`
	Duration     *float64        `json:"duration"`
	URL          string          `json:"url"`
	WebpageURL   string          `json:"webpage_url"`
	IEKey        string          `json:"ie_key"`
	ExtractorKey string          `json:"extractor_key"`
}

// ParseJSON reads playlist entries either as a JSON array or as one JSON
// object per line. Entries come newest first from most sources, so the list
// is reversed unless sorted is set. Indexes start at 1.
//
// Entries missing an id or any way to build a URL are dropped.
func ParseJSON(data []byte, sorted bool) ([]*Item, error) {
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(entries)).Msg("found raw playlist items")

	if !sorted {
		slices.Reverse(entries)
	}

	items := make([]*Item, 0, len(entries))
	for i, e := range entries {
		it, err := e.toItem(i + 1)
		if err != nil {
			log.Warn().Err(err).Int("idx", i+1).Msg("dropping playlist entry")
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeEntries(data []byte) ([]rawEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var entries []rawEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse playlist json: %w", err)
		}
		return entries, nil
	}

	var entries []rawEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e rawEntry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse playlist json line %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (e rawEntry) toItem(idx int) (*Item, error) {
	id, err := e.id()
	if err != nil {
		return nil, err
	}

	var u string
	switch strings.ToLower(e.extractor()) {
	case "youtube":
		u = "https://" + youtubeShortHost + "/" + id
	default:
		u = e.URL
		if u == "" {
			u = e.WebpageURL
		}
	}
	if u == "" {
		return nil, fmt.Errorf("entry %q: no url", id)
	}

	var title string
	if e.Title != nil {
		title = *e.Title
	} else {
		title, err = titleFromURL(e.URL)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", id, err)
		}
	}

	it := New(idx, id, u, title)
	if e.Duration != nil {
		it.WithDuration(time.Duration(*e.Duration * float64(time.Second)))
	}
	return it, nil
}

func (e rawEntry) extractor() string {
	if e.IEKey != "" {
		return e.IEKey
	}
	return e.ExtractorKey
}

func (e rawEntry) id() (string, error) {
	if len(e.ID) == 0 || string(e.ID) == "null" {
		return "", errors.New("missing id")
	}
	var s string
	if err := json.Unmarshal(e.ID, &s); err == nil {
		if s == "" {
			return "", errors.New("empty id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(e.ID, &n); err != nil {
		return "", fmt.Errorf("invalid id %s", e.ID)
	}
	return n.String(), nil
}

func titleFromURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("no title and no url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "", fmt.Errorf("no title in url %q", raw)
	}
	return base, nil
}
