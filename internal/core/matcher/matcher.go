// Package matcher owns the filename convention that ties files on disk to
// playlist items:
//
//	<index> - <title>[ (<duration>)] - <id><suffix>
//
// The index is zero padded so that a directory listing sorts in playlist
// order, and both index and id can be recovered from any related file.
package matcher

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/viperadnan-git/playdl/internal/core/item"
)

// SkipExt marks an item that permanently failed. The marker holds the
// extractor's error text and its mtime is the retry clock.
const SkipExt = ".skip"

const sep = " - "

var unsafeChars = strings.NewReplacer("/", "_", `\`, "_", ":", "_", "!", "_")

// Sanitize makes a title safe to embed in a filename. Control characters
// such as newlines become spaces.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return unsafeChars.Replace(s)
}

// Name builds the extension-less file name of an item.
func Name(index int, title string, duration *time.Duration, id string) string {
	title = Sanitize(title)
	if duration != nil {
		title += " (" + item.FormatDuration(*duration) + ")"
	}
	return fmt.Sprintf("%05d%s%s%s%s", index, sep, title, sep, Sanitize(id))
}

var parseRe = regexp.MustCompile(`(?s)^(\d+) - .* - ([^.\s]+)(\..*)?$`)

// Parse recovers the index and id from a file name built by Name. Ids
// containing dots or whitespace cannot be recovered.
func Parse(base string) (index int, id string, ok bool) {
	m := parseRe.FindStringSubmatch(base)
	if m == nil {
		return 0, "", false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return index, m[2], true
}

// Matcher finds files belonging to one item id.
type Matcher struct {
	id string
	re *regexp.Regexp
}

func New(id string) *Matcher {
	id = Sanitize(id)
	return &Matcher{
		id: id,
		re: regexp.MustCompile(`(?s)^\d+ - .* - ` + regexp.QuoteMeta(id) + `\.`),
	}
}

// Match reports whether base is a file name of this item.
func (m *Matcher) Match(base string) bool {
	return m.re.MatchString(base)
}

// Filter returns the names (or paths) whose base name matches. Skip markers
// are never a delivered file and are left out.
func (m *Matcher) Filter(names []string) []string {
	var out []string
	for _, n := range names {
		if m.Match(filepath.Base(n)) && !IsSkip(n) {
			out = append(out, n)
		}
	}
	return out
}

// Glob lists the matching regular files of dir as full paths, sorted.
// A missing dir yields no matches.
func (m *Matcher) Glob(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !m.Match(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Rename replaces everything up to and including the id in base with name,
// keeping whatever suffix follows the id. Names not containing the id are
// returned unchanged.
func (m *Matcher) Rename(base, name string) string {
	key := sep + m.id
	i := strings.LastIndex(base, key)
	for i >= 0 {
		rest := base[i+len(key):]
		if rest == "" || rest[0] == '.' {
			return name + rest
		}
		i = strings.LastIndex(base[:i], key)
	}
	return base
}

// IsSkip reports whether path is a skip marker.
func IsSkip(path string) bool {
	return filepath.Ext(path) == SkipExt
}
