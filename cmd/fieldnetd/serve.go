package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/arenvale/fieldnet/internal/archive"
	"github.com/arenvale/fieldnet/internal/blob"
	"github.com/arenvale/fieldnet/internal/config"
	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/heartbeat"
	"github.com/arenvale/fieldnet/internal/paywall"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/rooms"
	"github.com/arenvale/fieldnet/internal/server"
	"github.com/arenvale/fieldnet/internal/store"
	"github.com/arenvale/fieldnet/internal/store/memory"
	"github.com/arenvale/fieldnet/internal/store/sqldoc"
)

func serve() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	heartbeats, err := openHeartbeats(ctx, cfg)
	if err != nil {
		st.Close()
		return err
	}

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			heartbeats.Close()
			st.Close()
			return err
		}
		publisher = pub
		logger.Info("event bus enabled", "nats_url", cfg.NATSURL)
	} else {
		publisher = &events.NoopPublisher{}
		logger.Info("event bus disabled (FIELDNET_NATS_URL not set)")
	}

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		publisher.Close()
		heartbeats.Close()
		st.Close()
		return err
	}

	queue := push.NewQueue(st, publisher, cfg.PushBuffer)

	archiver, err := openArchiver(ctx, cfg, st)
	if err != nil {
		publisher.Close()
		heartbeats.Close()
		st.Close()
		return err
	}

	fieldServer := server.NewFieldServer(st, server.Options{
		Heartbeats: heartbeats,
		Hub:        rooms.NewHub(),
		Blobs:      blobs,
		Publisher:  publisher,
		Push:       queue,
		H3Res:      cfg.H3Res,
		RegSecret:  cfg.RegSecret,
	})

	gate := paywall.New(cfg.PaywallSecret, paywall.Routes(cfg.PaywallRoutes, cfg.PaywallCurrency))
	if gate.Enabled() {
		logger.Info("paywall enabled", "routes", len(cfg.PaywallRoutes), "currency", cfg.PaywallCurrency)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.LoggingMiddleware(fieldServer.NewHTTPHandler(gate)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "h3_res", cfg.H3Res)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return queue.Run(gctx)
	})
	if archiver != nil {
		g.Go(func() error {
			return archiver.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		queue.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if cerr := publisher.Close(); cerr != nil {
		logger.Error("error closing publisher", "err", cerr)
	}
	if cerr := heartbeats.Close(); cerr != nil {
		logger.Error("error closing heartbeat store", "err", cerr)
	}
	if cerr := st.Close(); cerr != nil {
		logger.Error("error closing store", "err", cerr)
	}

	logger.Info("shutdown complete")
	return err
}

// openStore opens the configured store, retrying transient failures so the
// server survives a database that comes up after it does.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "memory" {
		slog.Info("using in-memory store; state is lost on restart")
		return memory.New(), nil
	}

	var st store.Store
	b := retry.NewFibonacci(1 * time.Second)
	err := retry.Do(ctx, retry.WithMaxRetries(5, b), func(ctx context.Context) error {
		s, err := sqldoc.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Warn("store open failed, retrying", "err", err)
			return retry.RetryableError(err)
		}
		st = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("store opened", "database_url", cfg.DatabaseURL)
	return st, nil
}

func openHeartbeats(ctx context.Context, cfg *config.Config) (heartbeat.Store, error) {
	if cfg.RedisURL == "" {
		return heartbeat.NewMemory(), nil
	}
	hb, err := heartbeat.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := hb.Ping(pingCtx); err != nil {
		hb.Close()
		return nil, err
	}
	slog.Info("heartbeats in redis", "url", cfg.RedisURL)
	return hb, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.MediaS3Bucket != "" {
		blobs, err := blob.NewS3(ctx, cfg.MediaS3Bucket, "media", cfg.MediaS3Region, cfg.MediaS3Endpoint)
		if err != nil {
			return nil, err
		}
		slog.Info("media in s3", "bucket", cfg.MediaS3Bucket)
		return blobs, nil
	}
	return blob.NewFS(filepath.Join(cfg.DataDir, "media"))
}

// openArchiver builds the periodic events archiver, or returns nil when
// archiving is disabled. Snapshots go under an "archives" prefix so they never
// mix with uploaded media.
func openArchiver(ctx context.Context, cfg *config.Config, st store.Store) (*archive.Archiver, error) {
	if cfg.ArchiveInterval <= 0 {
		return nil, nil
	}

	var blobs blob.Store
	if cfg.MediaS3Bucket != "" {
		s3, err := blob.NewS3(ctx, cfg.MediaS3Bucket, "archives", cfg.MediaS3Region, cfg.MediaS3Endpoint)
		if err != nil {
			return nil, err
		}
		blobs = s3
	} else {
		fs, err := blob.NewFS(filepath.Join(cfg.DataDir, "archives"))
		if err != nil {
			return nil, err
		}
		blobs = fs
	}

	dests := []archive.Destination{archive.NewBlobDestination(blobs, "events.jsonl")}
	if cfg.ArchiveGitRepo != "" {
		dests = append(dests, archive.NewGitDestination(cfg.ArchiveGitRepo, "events.jsonl", cfg.ArchiveGitBranch))
	}
	slog.Info("archiving enabled", "interval", cfg.ArchiveInterval, "destinations", len(dests))
	return archive.New(st, dests, cfg.ArchiveInterval), nil
}
