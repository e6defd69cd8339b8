package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/viperadnan-git/playdl/internal/core/extractor"
	"github.com/viperadnan-git/playdl/internal/core/item"
	"github.com/viperadnan-git/playdl/internal/downloader"
)

func jsonCmd() *cli.Command {
	return &cli.Command{
		Name:      "json",
		Usage:     "Download playlists from extractor JSON files (\"-\" reads stdin)",
		ArgsUsage: "FILE...",
		Flags:     downloadFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				files = []string{"-"}
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.String("done") == doneStdin {
				for _, f := range files {
					if f == "-" {
						return fmt.Errorf("stdin cannot hold both the playlist and the done list")
					}
				}
			}
			sorted := cfg.Download.Sorted
			return runDownload(ctx, cfg, cmd.String("done"), func(ctx context.Context, d *downloader.Downloader, ext *extractor.YtDlp) error {
				for _, f := range files {
					data, err := readInput(f)
					if err != nil {
						return err
					}
					items, err := item.ParseJSON(data, sorted)
					if err != nil {
						return fmt.Errorf("%s: %w", f, err)
					}
					if err := d.Enqueue(withTitles(items, ext)); err != nil {
						return fmt.Errorf("%s: %w", f, err)
					}
				}
				return nil
			})
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
