package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/viperadnan-git/playdl/internal/config"
	"github.com/viperadnan-git/playdl/internal/core/extractor"
	"github.com/viperadnan-git/playdl/internal/core/item"
	"github.com/viperadnan-git/playdl/internal/core/resolver"
	"github.com/viperadnan-git/playdl/internal/downloader"
)

func urlCmd() *cli.Command {
	return &cli.Command{
		Name:      "url",
		Usage:     "Download playlists by URL (a JSON array argument is read as the playlist itself)",
		ArgsUsage: "URL...",
		Flags:     downloadFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			urls := cmd.Args().Slice()
			if len(urls) == 0 {
				return errors.New("at least one playlist URL is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDownload(ctx, cfg, cmd.String("done"), feedURLs(cfg, urls))
		},
	}
}

func feedURLs(cfg *config.Config, urls []string) feedFunc {
	return func(ctx context.Context, d *downloader.Downloader, ext *extractor.YtDlp) error {
		reg := resolver.NewRegistry()
		reg.Register(resolver.NewFlat(ext, cfg.Download.Proxy, cfg.Download.Sorted))

		for _, u := range urls {
			if strings.HasPrefix(u, "[") {
				items, err := item.ParseJSON([]byte(u), cfg.Download.Sorted)
				if err != nil {
					return err
				}
				if err := d.Enqueue(withTitles(items, ext)); err != nil {
					return err
				}
				continue
			}
			res, err := reg.Resolve(ctx, u)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", u, err)
			}
			if err := d.EnqueueMin(withTitles(res.Items, ext), res.MinDuration); err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
		}
		return nil
	}
}
