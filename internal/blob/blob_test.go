package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSPutGet(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	if err := fs.Put(ctx, "frames/ev-abc.jpg", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := fs.Get(ctx, "frames/ev-abc.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("roundtrip mismatch: got %v", got)
	}
}

func TestFSGetMissing(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if _, err := fs.Get(context.Background(), "frames/nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSOverwrite(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := fs.Put(ctx, "a.bin", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Put(ctx, "a.bin", []byte("two")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := fs.Get(ctx, "a.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two" {
		t.Fatalf("got %q, want %q", got, "two")
	}
}

func TestFSPathTraversalStaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFS(filepath.Join(root, "media"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	if err := fs.Put(ctx, "../../escape.txt", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// The ".." segments collapse, so the file lands inside the media root.
	if _, err := os.Stat(filepath.Join(root, "media", "escape.txt")); err != nil {
		t.Fatalf("expected file inside root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("file escaped the blob root")
	}

	if _, err := fs.Get(ctx, "../../escape.txt"); err != nil {
		t.Fatalf("Get through the same path should resolve identically: %v", err)
	}
}

func TestFSEmptyPathRejected(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	for _, p := range []string{"", ".", "/", "//", "a/.."} {
		if err := fs.Put(context.Background(), p, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", p)
		}
	}
}

func TestS3KeyPrefix(t *testing.T) {
	s := &S3{bucket: "b", prefix: "media"}
	if got := s.key("frames/ev-1.jpg"); got != "media/frames/ev-1.jpg" {
		t.Errorf("key = %q", got)
	}
	s.prefix = ""
	if got := s.key("frames/ev-1.jpg"); got != "frames/ev-1.jpg" {
		t.Errorf("key = %q", got)
	}
	if !strings.HasPrefix((&S3{prefix: "p"}).key("x"), "p/") {
		t.Error("prefix not applied")
	}
}
