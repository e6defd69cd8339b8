package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viperadnan-git/playdl/internal/core/extractor"
)

// Playlist is one named entry of a playlists file.
type Playlist struct {
	Name  string
	URLs  []string
	Proxy string
	// ExtractorOpts includes the audio options when audio was requested.
	ExtractorOpts []string
	SyncDest      string
	MinDuration   time.Duration
	Workers       int
	// MinFree is in bytes.
	MinFree uint64
	Sorted  bool
}

type playlistsDoc struct {
	Proxies   map[string]string    `yaml:"proxies"`
	Playlists map[string]yaml.Node `yaml:"playlists"`
}

type playlistEntry struct {
	URL         string   `yaml:"url"`
	URLs        []string `yaml:"urls"`
	Proxy       string   `yaml:"proxy"`
	Audio       bool     `yaml:"audio"`
	YdlOpts     []string `yaml:"ydl_opts"`
	RcloneDest  string   `yaml:"rclone_dest"`
	MinDuration string   `yaml:"min_duration"`
	NThreads    int      `yaml:"nthreads"`
	MinDF       float64  `yaml:"min_df"`
	Sorted      bool     `yaml:"sorted"`
}

// LoadPlaylists reads a playlists file. Entries whose name starts with "_"
// only hold YAML anchors and are dropped.
func LoadPlaylists(path string) ([]Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open playlists: %w", err)
	}
	defer f.Close()
	return ParsePlaylists(f)
}

// ParsePlaylists decodes playlists sorted by name.
func ParsePlaylists(r io.Reader) ([]Playlist, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read playlists: %w", err)
	}
	var doc playlistsDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse playlists: %w", err)
	}

	names := make([]string, 0, len(doc.Playlists))
	for name := range doc.Playlists {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]Playlist, 0, len(names))
	for _, name := range names {
		node := doc.Playlists[name]
		var e playlistEntry
		if err := node.Decode(&e); err != nil {
			return nil, fmt.Errorf("playlist %s: %w", name, err)
		}
		pl, err := e.playlist(name, doc.Proxies)
		if err != nil {
			return nil, fmt.Errorf("playlist %s: %w", name, err)
		}
		out = append(out, pl)
	}
	return out, nil
}

func (e playlistEntry) playlist(name string, proxies map[string]string) (Playlist, error) {
	pl := Playlist{
		Name:          name,
		Proxy:         e.Proxy,
		ExtractorOpts: append([]string(nil), e.YdlOpts...),
		SyncDest:      e.RcloneDest,
		Workers:       e.NThreads,
		Sorted:        e.Sorted,
	}
	if e.URL != "" {
		pl.URLs = append(pl.URLs, e.URL)
	}
	pl.URLs = append(pl.URLs, e.URLs...)
	if len(pl.URLs) == 0 {
		return Playlist{}, errors.New("no url")
	}
	if p, ok := proxies[e.Proxy]; ok {
		pl.Proxy = p
	}
	if e.Audio {
		pl.ExtractorOpts = append(pl.ExtractorOpts, extractor.AudioOptions...)
	}
	if strings.HasSuffix(pl.SyncDest, "/") {
		pl.SyncDest += name
	}
	d, err := ParseDuration(e.MinDuration)
	if err != nil {
		return Playlist{}, fmt.Errorf("min_duration: %w", err)
	}
	pl.MinDuration = d
	if e.MinDF < 0 {
		return Playlist{}, errors.New("min_df: must not be negative")
	}
	pl.MinFree = uint64(e.MinDF * 1e9)
	return pl, nil
}

// Select returns the named playlists in the given order, or all of them when
// names is empty.
func Select(pls []Playlist, names []string) ([]Playlist, error) {
	if len(names) == 0 {
		return pls, nil
	}
	byName := make(map[string]Playlist, len(pls))
	for _, pl := range pls {
		byName[pl.Name] = pl
	}
	out := make([]Playlist, 0, len(names))
	for _, n := range names {
		pl, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown playlist %q", n)
		}
		out = append(out, pl)
	}
	return out, nil
}
