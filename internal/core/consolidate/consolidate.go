// Package consolidate reduces the files produced for one item to a single
// video plus sidecar files.
//
// Every video is first merged with its companions (files sharing its base
// name, such as subtitle tracks). When several videos remain they are
// concatenated into one. Results are then renamed through a caller supplied
// naming function.
package consolidate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultTmpSuffix marks intermediate files created while consolidating.
const DefaultTmpSuffix = ".vidcat_tmp"

var videoExts = []string{".mp4", ".mkv", ".webm"}

// Muxer performs the actual stream copies.
type Muxer interface {
	// Merge muxes all inputs into out as a single file.
	Merge(ctx context.Context, inputs []string, out string) error
	// Concat joins inputs one after another into out.
	Concat(ctx context.Context, inputs []string, out string) error
}

// Basename maps a result's extension-less base name to its final one.
type Basename func(base string) string

type Consolidator struct {
	muxer     Muxer
	tmpSuffix string
}

func New(muxer Muxer) *Consolidator {
	return &Consolidator{muxer: muxer, tmpSuffix: DefaultTmpSuffix}
}

// WithTmpSuffix overrides DefaultTmpSuffix.
func (c *Consolidator) WithTmpSuffix(s string) *Consolidator {
	c.tmpSuffix = s
	return c
}

// Consolidate returns the final file set. Inputs are consumed.
func (c *Consolidator) Consolidate(ctx context.Context, files []string, basename Basename) ([]string, error) {
	if basename == nil {
		basename = func(s string) string { return s }
	}
	files = slices.Clone(files)
	sort.Strings(files)

	// 1. merge every video with its companion files
	var vids, other []string
	for _, f := range files {
		if !isVideo(f) {
			other = append(other, f)
			continue
		}
		if !exists(f) {
			continue
		}
		group, err := companions(f)
		if err != nil {
			return nil, err
		}
		if len(group) <= 1 {
			vids = append(vids, f)
			continue
		}
		out := c.addSuffix(f, ".mkv")
		group = slices.DeleteFunc(group, func(s string) bool { return s == out })
		log.Debug().Strs("in", names(group)).Str("out", filepath.Base(out)).Msg("merging companion files")
		if err := c.muxer.Merge(ctx, group, out); err != nil {
			return nil, fmt.Errorf("merge %s: %w", filepath.Base(f), err)
		}
		if err := removeAll(group); err != nil {
			return nil, err
		}
		vids = append(vids, out)
	}
	vids = slices.DeleteFunc(vids, func(s string) bool { return !exists(s) })
	other = slices.DeleteFunc(other, func(s string) bool { return !exists(s) })

	// 2. concatenate what remains into the shortest named video
	if len(vids) >= 2 {
		shortest := vids[0]
		for _, v := range vids[1:] {
			if len(c.removeSuffix(v)) < len(c.removeSuffix(shortest)) {
				shortest = v
			}
		}
		out := c.addSuffix(shortest, ".mkv")
		vids = slices.DeleteFunc(vids, func(s string) bool { return s == out })
		log.Info().Strs("in", names(vids)).Str("out", filepath.Base(out)).Msg("concatenating video parts")
		if err := c.muxer.Concat(ctx, vids, out); err != nil {
			return nil, fmt.Errorf("concat into %s: %w", filepath.Base(out), err)
		}
		if err := removeAll(vids); err != nil {
			return nil, err
		}
		vids = []string{out}
	}

	// 3. final names
	var result []string
	for _, f := range append(vids, other...) {
		clean := c.removeSuffix(f)
		ext := filepath.Ext(clean)
		base := strings.TrimSuffix(filepath.Base(clean), ext)
		dest := filepath.Join(filepath.Dir(f), basename(base)+ext)
		if dest != f {
			if err := os.Rename(f, dest); err != nil {
				return nil, fmt.Errorf("rename %s: %w", filepath.Base(f), err)
			}
		}
		result = append(result, dest)
	}
	return result, nil
}

func (c *Consolidator) addSuffix(f, ext string) string {
	e := filepath.Ext(f)
	if ext == "" {
		ext = e
	}
	return strings.TrimSuffix(f, e) + c.tmpSuffix + ext
}

func (c *Consolidator) removeSuffix(f string) string {
	e := filepath.Ext(f)
	base := strings.TrimSuffix(f, e)
	for strings.HasSuffix(base, c.tmpSuffix) {
		base = strings.TrimSuffix(base, c.tmpSuffix)
	}
	return base + e
}

// companions returns f and every file next to it sharing its base name.
func companions(f string) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(f), escapeGlob(base)+".*"))
	if err != nil {
		return nil, fmt.Errorf("glob companions of %s: %w", filepath.Base(f), err)
	}
	group := []string{f}
	for _, m := range matches {
		if m != f {
			group = append(group, m)
		}
	}
	return group, nil
}

var globMeta = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)

func escapeGlob(s string) string {
	return globMeta.Replace(s)
}

func isVideo(f string) bool {
	return slices.Contains(videoExts, filepath.Ext(f))
}

func exists(f string) bool {
	_, err := os.Stat(f)
	return err == nil
}

func removeAll(files []string) error {
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

func names(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f)
	}
	return out
}
