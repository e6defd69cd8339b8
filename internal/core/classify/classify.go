// Package classify decides what to do with a failed extractor run by matching
// its error text against ordered tables of known upstream messages.
//
// The tables encode knowledge of third-party error strings and will go stale;
// extra patterns can be supplied through configuration.
package classify

import (
	"fmt"
	"regexp"
)

// Class is the policy outcome for a failure.
type Class int

const (
	// Fatal failures are unexpected and abort the run.
	Fatal Class = iota
	// Temporary failures abandon the item for this run only.
	Temporary
	// Throttled failures stop every further extractor invocation.
	Throttled
	// Unavailable failures permanently skip the item.
	Unavailable
	// Transient failures are retried a bounded number of times.
	Transient
)

func (c Class) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case Temporary:
		return "temporary"
	case Throttled:
		return "throttled"
	case Unavailable:
		return "unavailable"
	case Transient:
		return "transient"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Rule maps an error pattern to a class.
type Rule struct {
	Class   Class
	Service string
	Pattern *regexp.Regexp
}

// Outcome is the result of classifying one failure.
type Outcome struct {
	Class Class
	// Rule is the matched rule, nil when the class came from the exit status.
	Rule *Rule
}

func rule(class Class, service, pattern string) Rule {
	return Rule{Class: class, Service: service, Pattern: regexp.MustCompile(pattern)}
}

// DefaultRules are evaluated top-down; the first match wins.
var DefaultRules = []Rule{
	rule(Throttled, "", `HTTP Error 429`),
	rule(Throttled, "", `(?i)too many requests`),

	rule(Unavailable, "youtube", `Video unavailable`),
	rule(Unavailable, "youtube", `(?i)private video`),
	rule(Unavailable, "youtube", `This video is private`),
	rule(Unavailable, "youtube", `This video has been removed`),
	rule(Unavailable, "youtube", `This video is no longer available`),
	rule(Unavailable, "youtube", `account associated with this video has been terminated`),
	rule(Unavailable, "youtube", `who has blocked it`),
	rule(Unavailable, "youtube", `not made this video available in your country`),
	rule(Unavailable, "youtube", `Sign in to confirm your age`),
	rule(Unavailable, "youtube", `(?i)members-only content`),
	rule(Unavailable, "dailymotion", `(?i)video has been (deleted|removed)`),
	rule(Unavailable, "6play", `(?i)this content is not available`),
	rule(Unavailable, "", `HTTP Error 404`),
	rule(Unavailable, "", `HTTP Error 410`),
	rule(Unavailable, "", `(?i)geo.?restricted`),
	rule(Unavailable, "", `(?i)drm protected`),

	rule(Transient, "", `(?i)unable to extract`),
	rule(Transient, "", `(?i)unknown reason`),
	rule(Transient, "", `IncompleteRead`),
	rule(Transient, "", `(?i)connection reset by peer`),
	rule(Transient, "", `(?i)connection (was )?aborted`),
	rule(Transient, "", `(?i)remote end closed connection`),
	rule(Transient, "", `(?i)the read operation timed out`),
	rule(Transient, "", `(?i)giving up after \d+ (fragment )?retries`),
	rule(Transient, "", `HTTP Error 5\d\d`),
}

// Classifier evaluates rules in order.
type Classifier struct {
	rules []Rule
}

// New returns a classifier with extra patterns placed ahead of their class in
// the default table, so configured patterns win over built-in ones of other
// classes only by position.
func New(extraUnavailable, extraTransient []string) (*Classifier, error) {
	var rules []Rule
	for _, r := range DefaultRules {
		if r.Class == Throttled {
			rules = append(rules, r)
		}
	}
	for _, p := range extraUnavailable {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile unavailable pattern %q: %w", p, err)
		}
		rules = append(rules, Rule{Class: Unavailable, Service: "config", Pattern: re})
	}
	for _, p := range extraTransient {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile transient pattern %q: %w", p, err)
		}
		rules = append(rules, Rule{Class: Transient, Service: "config", Pattern: re})
	}
	for _, r := range DefaultRules {
		if r.Class != Throttled {
			rules = append(rules, r)
		}
	}
	return &Classifier{rules: rules}, nil
}

// Default returns a classifier using only DefaultRules.
func Default() *Classifier {
	return &Classifier{rules: DefaultRules}
}

// Rules returns the table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify maps an exit status and the captured error text to an outcome.
// Unmatched failures with status 1 are temporary; any other status is fatal.
func (c *Classifier) Classify(status int, stderr string) Outcome {
	for i := range c.rules {
		if c.rules[i].Pattern.MatchString(stderr) {
			return Outcome{Class: c.rules[i].Class, Rule: &c.rules[i]}
		}
	}
	if status == 1 {
		return Outcome{Class: Temporary}
	}
	return Outcome{Class: Fatal}
}

var unrecoverableTitleRe = regexp.MustCompile(`(?i)^\s*\[?(deleted|private) video\]?\s*$`)

// UnrecoverableTitle reports whether a playlist title already tells that the
// item can never be downloaded.
func UnrecoverableTitle(title string) bool {
	return unrecoverableTitleRe.MatchString(title)
}
