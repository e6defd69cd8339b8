// Package extractor wraps the external download tool (yt-dlp or a
// compatible fork) that fetches one item into a directory.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/viperadnan-git/playdl/internal/core/process"
)

// ExtTemplate is appended to the output name; the extractor substitutes the
// real extension.
const ExtTemplate = ".%(ext)s"

// AudioOptions make the extractor keep only an mp3 audio track.
var AudioOptions = []string{"-x", "--audio-format", "mp3"}

// Request describes one download.
type Request struct {
	URL string
	// Output is the path template, ending in ExtTemplate.
	Output  string
	Options []string
	Proxy   string
}

// Extractor downloads single items. A non-zero exit is reported as a
// *process.ExitError carrying the status and captured stderr.
type Extractor interface {
	Download(ctx context.Context, req Request) error
	Title(ctx context.Context, url string) (string, error)
	CommandLine(req Request) string
}

// YtDlp runs a yt-dlp compatible binary.
type YtDlp struct {
	exe *process.Exe
}

func New(binary string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{exe: process.NewExe(binary)}
}

func (y *YtDlp) Name() string { return y.exe.Name() }

// Check verifies the binary is installed.
func (y *YtDlp) Check() error {
	return y.exe.LookPath()
}

func (y *YtDlp) args(req Request) []string {
	args := []string{"-o", req.Output, "-q"}
	args = append(args, req.Options...)
	if req.Proxy != "" {
		args = append(args, "--proxy", req.Proxy)
	}
	return append(args, req.URL)
}

func (y *YtDlp) Download(ctx context.Context, req Request) error {
	_, err := y.exe.Run(ctx, y.args(req)...)
	return err
}

// CommandLine renders the command Download would run, shell quoted.
func (y *YtDlp) CommandLine(req Request) string {
	return shellescape.QuoteCommand(y.exe.Command(y.args(req)...))
}

// Title asks the extractor for the item's real title without downloading.
func (y *YtDlp) Title(ctx context.Context, url string) (string, error) {
	out, err := y.exe.Run(ctx, "--get-title", "--no-warnings", url)
	if err != nil {
		return "", fmt.Errorf("get title: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FlatPlaylist returns the line delimited JSON entries of a playlist without
// resolving each entry.
func (y *YtDlp) FlatPlaylist(ctx context.Context, url string, proxy string) ([]byte, error) {
	args := []string{"-j", "--flat-playlist"}
	if proxy != "" {
		args = append(args, "--proxy", proxy)
	}
	out, err := y.exe.Run(ctx, append(args, url)...)
	if err != nil {
		return nil, fmt.Errorf("flat playlist: %w", err)
	}
	return out, nil
}
