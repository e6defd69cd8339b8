package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Download.Workers != 4 {
		t.Fatalf("workers = %d", cfg.Download.Workers)
	}
	if cfg.Download.OutDir != "out" || cfg.Download.MetaDir != "meta" {
		t.Fatalf("dirs = %q %q, want sibling out and meta dirs", cfg.Download.OutDir, cfg.Download.MetaDir)
	}
	if cfg.Extractor.Binary != "yt-dlp" {
		t.Fatalf("binary = %q", cfg.Extractor.Binary)
	}
	if got := MustDuration(cfg.Download.SkipRetryDelay); got != 72*time.Hour {
		t.Fatalf("skip retry delay = %s", got)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playdl.toml")
	data := `
[download]
out_dir = "/srv/out"
workers = 8

[disk]
min_free = "2GB"

[classify]
unavailable = ["removed for copyright"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLDL_DOWNLOAD_WORKERS", "2")
	t.Setenv("PLDL_SYNC_DEST", "remote:media")
	t.Setenv("PLDL_DOWNLOAD_META_DIR", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Download.OutDir != "/srv/out" {
		t.Fatalf("out_dir = %q", cfg.Download.OutDir)
	}
	if cfg.Download.Workers != 2 {
		t.Fatalf("workers = %d, env should win", cfg.Download.Workers)
	}
	if cfg.Download.MetaDir != "meta" {
		t.Fatalf("meta_dir = %q, empty env must not override", cfg.Download.MetaDir)
	}
	if cfg.Sync.Dest != "remote:media" {
		t.Fatalf("sync dest = %q", cfg.Sync.Dest)
	}
	if n, _ := ParseSize(cfg.Disk.MinFree); n != 2_000_000_000 {
		t.Fatalf("min free = %d", n)
	}
	if len(cfg.Classify.Unavailable) != 1 {
		t.Fatalf("classify = %+v", cfg.Classify)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PLDL_DOWNLOAD_WORKERS":          "download.workers",
		"PLDL_DOWNLOAD_SKIP_RETRY_DELAY": "download.skip_retry_delay",
		"PLDL_LOGGING_LEVEL":             "logging.level",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PLDL_DISK_MAX_WAIT", "soon")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "disk.max_wait") {
		t.Fatalf("err = %v", err)
	}
}
