// Package resolver turns a playlist URL into an ordered list of items.
//
// Site specific scrapers plug in through the Resolver interface; the first
// registered resolver that claims a URL wins.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/viperadnan-git/playdl/internal/core/item"
)

// ErrNotApplicable is returned by a resolver that does not handle a URL.
var ErrNotApplicable = errors.New("resolver: url not handled")

// Result is a resolved playlist.
type Result struct {
	Items []*item.Item
	// MinDuration is the resolver's recommended minimum item duration, zero
	// for none.
	MinDuration time.Duration
}

type Resolver interface {
	Name() string
	Resolve(ctx context.Context, url string) (Result, error)
}

// Registry keeps resolvers in priority order.
type Registry struct {
	mu        sync.RWMutex
	resolvers []Resolver
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers = append(r.resolvers, res)
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for _, res := range r.resolvers {
		names = append(names, res.Name())
	}
	return names
}

// Resolve asks each resolver in turn. It returns ErrNotApplicable when none
// claims the URL.
func (r *Registry) Resolve(ctx context.Context, rawURL string) (Result, error) {
	r.mu.RLock()
	resolvers := make([]Resolver, len(r.resolvers))
	copy(resolvers, r.resolvers)
	r.mu.RUnlock()

	for _, res := range resolvers {
		result, err := res.Resolve(ctx, rawURL)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", res.Name(), err)
		}
		log.Info().Str("resolver", res.Name()).Int("items", len(result.Items)).Msg("playlist resolved")
		return result, nil
	}
	return Result{}, fmt.Errorf("%w: %s", ErrNotApplicable, rawURL)
}

// FlatLister lists a playlist as line delimited JSON entries.
type FlatLister interface {
	FlatPlaylist(ctx context.Context, url, proxy string) ([]byte, error)
}

// Flat resolves any http(s) URL through the extractor's flat playlist mode.
// It belongs last in a registry.
type Flat struct {
	lister FlatLister
	proxy  string
	sorted bool
}

func NewFlat(lister FlatLister, proxy string, sorted bool) *Flat {
	return &Flat{lister: lister, proxy: proxy, sorted: sorted}
}

func (f *Flat) Name() string { return "flat-playlist" }

func (f *Flat) Resolve(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, ErrNotApplicable
	}
	log.Info().Str("url", rawURL).Msg("getting playlist")
	out, err := f.lister.FlatPlaylist(ctx, rawURL, f.proxy)
	if err != nil {
		return Result{}, err
	}
	items, err := item.ParseJSON(out, f.sorted)
	if err != nil {
		return Result{}, err
	}
	return Result{Items: items}, nil
}
