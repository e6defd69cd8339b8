package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/viperadnan-git/playdl/internal/core/process"
)

// RcloneProvider shells out to the rclone CLI.
type RcloneProvider struct {
	exe  *process.Exe
	dest string
}

func NewRcloneProvider(binary, dest string) *RcloneProvider {
	if binary == "" {
		binary = "rclone"
	}
	return &RcloneProvider{exe: process.NewExe(binary), dest: dest}
}

func (p *RcloneProvider) Name() string { return "rclone" }

// Check validates that the rclone binary works.
func (p *RcloneProvider) Check(ctx context.Context) error {
	start := time.Now()
	out, err := p.exe.Run(ctx, "version")
	if err != nil {
		return fmt.Errorf("rclone binary not found or not working: %w", err)
	}
	version := strings.SplitN(string(out), "\n", 2)[0]
	log.Debug().Str("version", version).Dur("duration", time.Since(start)).Msg("rclone binary found")
	return nil
}

func (p *RcloneProvider) Move(ctx context.Context, localDir, exclude string) error {
	args := []string{"move", localDir, p.dest}
	if exclude != "" {
		args = append(args, "--exclude", exclude)
	}

	start := time.Now()
	if _, err := p.exe.Run(ctx, args...); err != nil {
		log.Warn().Err(err).Str("dest", p.dest).Dur("duration", time.Since(start)).Msg("rclone move failed")
		return fmt.Errorf("rclone move: %w", err)
	}
	log.Debug().Str("local_dir", localDir).Str("dest", p.dest).Dur("duration", time.Since(start)).Msg("rclone move completed")
	return nil
}

func (p *RcloneProvider) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	out, err := p.exe.Run(ctx, "lsf", "-R", "--files-only", p.dest)
	if err != nil {
		return nil, fmt.Errorf("rclone lsf: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	log.Debug().Int("count", len(names)).Dur("duration", time.Since(start)).Msg("rclone listing complete")
	return names, nil
}
