package item

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const youtubeShortHost = "youtu.be"

// TitleFunc fetches the real title of an item from its source.
type TitleFunc func(ctx context.Context, url string) (string, error)

// Item is one playlist entry.
type Item struct {
	Index    int
	ID       string
	URL      string
	Duration *time.Duration

	title      string
	fetchTitle TitleFunc

	once     sync.Once
	resolved string
}

func New(index int, id, url, title string) *Item {
	return &Item{Index: index, ID: id, URL: url, title: title}
}

func (it *Item) WithDuration(d time.Duration) *Item {
	it.Duration = &d
	return it
}

// WithTitleFetcher sets the function used to replace a placeholder title.
// It must be called before the first call to Title.
func (it *Item) WithTitleFetcher(fn TitleFunc) *Item {
	it.fetchTitle = fn
	return it
}

// RawTitle is the title as reported by the playlist source.
func (it *Item) RawTitle() string { return it.title }

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// PlaceholderTitle reports whether the source gave a generic title instead of
// the item's own (YouTube flat playlists report "Play all" for some entries).
func (it *Item) PlaceholderTitle() bool {
	u, err := url.Parse(it.URL)
	if err != nil || u.Host != youtubeShortHost {
		return false
	}
	return strings.TrimSpace(nonWordRe.ReplaceAllString(it.title, "")) == "Play all"
}

// Title returns the display title, fetching the real one at most once when
// the source reported a placeholder.
func (it *Item) Title(ctx context.Context) string {
	it.once.Do(func() {
		it.resolved = it.title
		if it.fetchTitle == nil || !it.PlaceholderTitle() {
			return
		}
		title, err := it.fetchTitle(ctx, it.URL)
		if err != nil {
			log.Warn().Err(err).Str("item", it.ID).Msg("failed to fetch real title, keeping placeholder")
			return
		}
		if title = strings.TrimSpace(title); title != "" {
			log.Debug().Str("item", it.ID).Str("title", title).Msg("replaced placeholder title")
			it.resolved = title
		}
	})
	return it.resolved
}
