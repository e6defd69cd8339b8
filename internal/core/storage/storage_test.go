package storage

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"gocloud.dev/blob"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBlobProviderMoveExcludesTemporary(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	p := NewBlobProvider(bucket)
	defer p.Close()

	dir := t.TempDir()
	writeFiles(t, dir, "00001 - a - x.mkv", "00002 - b - y.mkv.playdl_tmp", "sub/00003 - c - z.mp3")

	if err := p.Move(ctx, dir, "*.playdl_tmp"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	names, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(names)
	want := []string{"00001 - a - x.mkv", "00003 - c - z.mp3"}
	if !slices.Equal(names, want) {
		t.Fatalf("List = %v, want %v", names, want)
	}

	data, err := bucket.ReadAll(ctx, "sub/00003 - c - z.mp3")
	if err != nil || string(data) != "sub/00003 - c - z.mp3" {
		t.Fatalf("uploaded content = %q, %v", data, err)
	}

	if _, err := os.Stat(filepath.Join(dir, "00001 - a - x.mkv")); !os.IsNotExist(err) {
		t.Fatalf("moved file still present locally: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "00002 - b - y.mkv.playdl_tmp")); err != nil {
		t.Fatalf("temporary file should stay: %v", err)
	}
}

func TestNewProviderFromSettings(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Settings{})
	if err != nil || p != nil {
		t.Fatalf("empty dest = %v, %v", p, err)
	}

	p, err = NewProvider(ctx, Settings{Dest: "remote:shows/"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Name() != "rclone" {
		t.Fatalf("provider = %s, want rclone", p.Name())
	}

	bucketDir := t.TempDir()
	p, err = NewProvider(ctx, Settings{Dest: "file://" + bucketDir})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Name() != "blob" {
		t.Fatalf("provider = %s, want blob", p.Name())
	}
	if err := Close(p); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := NewProvider(ctx, Settings{Provider: "ftp", Dest: "x"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestRcloneProviderArgs(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "rclone")
	script := "#!/bin/sh\necho \"$@\" >> \"" + filepath.Join(dir, "calls") + "\"\n" +
		"if [ \"$1\" = lsf ]; then printf '00001 - a - x.mkv\\n\\n00002 - b - y.mkv\\n'; fi\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewRcloneProvider(bin, "remote:shows/x")
	ctx := context.Background()
	if err := p.Move(ctx, "/out", "*.playdl_tmp"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	names, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(names, []string{"00001 - a - x.mkv", "00002 - b - y.mkv"}) {
		t.Fatalf("List = %v", names)
	}

	calls, err := os.ReadFile(filepath.Join(dir, "calls"))
	if err != nil {
		t.Fatal(err)
	}
	want := "move /out remote:shows/x --exclude *.playdl_tmp\nlsf -R --files-only remote:shows/x\n"
	if string(calls) != want {
		t.Fatalf("calls =\n%s\nwant\n%s", calls, want)
	}
}
