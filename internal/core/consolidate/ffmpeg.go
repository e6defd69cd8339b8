package consolidate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viperadnan-git/playdl/internal/core/process"
)

// FFmpeg muxes with stream copies, never re-encoding.
type FFmpeg struct {
	exe *process.Exe
}

func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{exe: process.NewExe(binary)}
}

func (f *FFmpeg) Merge(ctx context.Context, inputs []string, out string) error {
	args := []string{"-loglevel", "error", "-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy", out)
	if _, err := f.exe.Run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg merge: %w", err)
	}
	return nil
}

func (f *FFmpeg) Concat(ctx context.Context, inputs []string, out string) error {
	list, err := os.CreateTemp("", "playdl-concat-*.txt")
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(list.Name()) }()

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			_ = list.Close()
			return err
		}
		if _, err := fmt.Fprintf(list, "file %s\n", quoteConcat(abs)); err != nil {
			_ = list.Close()
			return fmt.Errorf("write concat list: %w", err)
		}
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	if _, err := f.exe.Run(ctx,
		"-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", list.Name(), "-c", "copy", out,
	); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// quoteConcat quotes a path for the concat demuxer: single quoted segments
// joined by escaped quotes.
func quoteConcat(s string) string {
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return strings.Join(parts, `\'`)
}
