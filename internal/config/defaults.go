package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"download.out_dir":           "out",
		"download.meta_dir":          "meta",
		"download.workers":           4,
		"download.retry_attempts":    3,
		"download.retry_wait":        "10s",
		"download.skip_retry_delay":  "72h",
		"download.skip_retry_jitter": "24h",

		"extractor.binary": "yt-dlp",
		"extractor.ffmpeg": "ffmpeg",

		"disk.min_free":      "",
		"disk.max_wait":      "30m",
		"disk.poll_interval": "10s",

		"sync.binary":   "rclone",
		"sync.interval": "1m",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
