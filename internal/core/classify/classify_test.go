package classify

import (
	"strings"
	"testing"
)

func TestClassifyDefaultTable(t *testing.T) {
	c := Default()
	cases := []struct {
		stderr string
		want   Class
	}{
		{"ERROR: [youtube] abc: HTTP Error 429: Too Many Requests", Throttled},
		{"ERROR: [youtube] abc: Video unavailable", Unavailable},
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access", Unavailable},
		{"ERROR: [youtube] abc: This video has been removed by the uploader", Unavailable},
		{"ERROR: unable to download video data: HTTP Error 404: Not Found", Unavailable},
		{"ERROR: [generic] Unable to extract title; please report this issue", Transient},
		{"ERROR: ('Connection aborted.', RemoteDisconnected('Remote end closed connection without response'))", Transient},
		{"ERROR: [Errno 104] Connection reset by peer", Transient},
		{"ERROR: The read operation timed out", Transient},
	}
	for _, tc := range cases {
		got := c.Classify(1, tc.stderr)
		if got.Class != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.stderr, got.Class, tc.want)
		}
		if got.Rule == nil {
			t.Errorf("Classify(%q) has no rule", tc.stderr)
		}
	}
}

func TestClassifyEveryRuleMatchesItself(t *testing.T) {
	c := Default()
	for _, r := range c.Rules() {
		sample := "ERROR: " + literal(r.Pattern.String())
		got := c.Classify(1, sample)
		if got.Class != r.Class {
			t.Errorf("pattern %q sample %q classified %v, want %v", r.Pattern, sample, got.Class, r.Class)
		}
	}
}

// literal turns the simple patterns used in the table into matching text.
var literal = strings.NewReplacer(
	`(?i)`, "",
	`(deleted|removed)`, "deleted",
	`(was )?`, "",
	`geo.?restricted`, "geo restricted",
	`\d+ (fragment )?`, "10 ",
	`5\d\d`, "503",
).Replace

func TestClassifyByExitStatus(t *testing.T) {
	c := Default()
	if got := c.Classify(1, "ERROR: something new"); got.Class != Temporary || got.Rule != nil {
		t.Fatalf("unmatched status 1 = %+v, want temporary", got)
	}
	if got := c.Classify(2, "usage: yt-dlp [OPTIONS]"); got.Class != Fatal {
		t.Fatalf("unmatched status 2 = %v, want fatal", got.Class)
	}
	if got := c.Classify(-1, "signal: killed"); got.Class != Fatal {
		t.Fatalf("killed = %v, want fatal", got.Class)
	}
}

func TestClassifyThrottleWins(t *testing.T) {
	got := Default().Classify(1, "ERROR: Video unavailable\nERROR: HTTP Error 429: Too Many Requests")
	if got.Class != Throttled {
		t.Fatalf("got %v, want throttled", got.Class)
	}
}

func TestNewWithExtras(t *testing.T) {
	c, err := New([]string{`(?i)episode expired`}, []string{`SSL: WRONG_VERSION`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Classify(1, "ERROR: Episode expired on 2020-01-01"); got.Class != Unavailable || got.Rule.Service != "config" {
		t.Fatalf("extra unavailable = %+v", got)
	}
	if got := c.Classify(1, "ERROR: [SSL: WRONG_VERSION_NUMBER]"); got.Class != Transient {
		t.Fatalf("extra transient = %v", got.Class)
	}
	if got := c.Classify(1, "HTTP Error 429"); got.Class != Throttled {
		t.Fatalf("throttle must stay first, got %v", got.Class)
	}

	if _, err := New([]string{"("}, nil); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestUnrecoverableTitle(t *testing.T) {
	for _, title := range []string{"[Deleted video]", "[Private video]", "private video", " [deleted video] "} {
		if !UnrecoverableTitle(title) {
			t.Errorf("UnrecoverableTitle(%q) = false", title)
		}
	}
	for _, title := range []string{"My private video diary", "Deleted scenes", "Episode 1"} {
		if UnrecoverableTitle(title) {
			t.Errorf("UnrecoverableTitle(%q) = true", title)
		}
	}
}
