package main

import (
	"context"
	"testing"
	"time"

	"github.com/arenvale/fieldnet/internal/config"
)

func TestOpenStoreMemory(t *testing.T) {
	st, err := openStore(context.Background(), &config.Config{DatabaseURL: "memory"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st.Close()
}

func TestOpenHeartbeatsMemory(t *testing.T) {
	hb, err := openHeartbeats(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hb.Close()
}

func TestOpenBlobsFS(t *testing.T) {
	blobs, err := openBlobs(context.Background(), &config.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := blobs.Put(context.Background(), "frames/x.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestOpenArchiverDisabled(t *testing.T) {
	st, err := openStore(context.Background(), &config.Config{DatabaseURL: "memory"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	a, err := openArchiver(context.Background(), &config.Config{}, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Error("expected nil archiver when no interval is configured")
	}
}

func TestOpenArchiverFS(t *testing.T) {
	st, err := openStore(context.Background(), &config.Config{DatabaseURL: "memory"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	cfg := &config.Config{
		DataDir:         t.TempDir(),
		ArchiveInterval: 15 * time.Minute,
	}
	a, err := openArchiver(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected an archiver")
	}
}
