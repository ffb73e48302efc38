package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string // FIELDNET_HTTP_ADDR (default ":8080")
	DatabaseURL string // FIELDNET_DATABASE_URL (default: sqlite file under DataDir; "memory" for ephemeral)
	DataDir     string // FIELDNET_DATA_DIR (default "data"; holds media and the default sqlite file)
	NATSURL     string // FIELDNET_NATS_URL (optional, empty = no bus, push delivery disabled)
	RedisURL    string // FIELDNET_REDIS_URL (optional, heartbeats kept in redis when set)
	RegSecret   string // FIELDNET_REG_SECRET (optional, node registration requires the secret when set)
	H3Res       int    // FIELDNET_H3_RES (default 9)
	PushBuffer  int    // FIELDNET_PUSH_BUFFER (default 256)

	// Media storage settings
	MediaS3Bucket   string // FIELDNET_MEDIA_S3_BUCKET (stores frames in S3 when set)
	MediaS3Endpoint string // FIELDNET_MEDIA_S3_ENDPOINT (custom endpoint for MinIO)
	MediaS3Region   string // FIELDNET_MEDIA_S3_REGION (default "us-east-1")

	// Paid access settings
	PaywallSecret   string             // FIELDNET_PAYWALL_SECRET (HS256 key for payment proofs)
	PaywallCurrency string             // FIELDNET_PAYWALL_CURRENCY (default "USD")
	PaywallRoutes   map[string]float64 // FIELDNET_PAYWALL ("/v1/world/stats=0.01,/v1/world/cells=0.005")

	// Events-log archive settings
	ArchiveInterval  time.Duration // FIELDNET_ARCHIVE_INTERVAL (e.g. "15m"; zero disables archiving)
	ArchiveGitRepo   string        // FIELDNET_ARCHIVE_GIT_REPO (optional local clone to commit snapshots to)
	ArchiveGitBranch string        // FIELDNET_ARCHIVE_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	// A .env file in the working directory seeds the environment when present.
	_ = godotenv.Load()

	c := &Config{
		HTTPAddr:        envOrDefault("FIELDNET_HTTP_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("FIELDNET_DATABASE_URL"),
		DataDir:         envOrDefault("FIELDNET_DATA_DIR", "data"),
		NATSURL:         os.Getenv("FIELDNET_NATS_URL"),
		RedisURL:        os.Getenv("FIELDNET_REDIS_URL"),
		RegSecret:       os.Getenv("FIELDNET_REG_SECRET"),
		MediaS3Bucket:   os.Getenv("FIELDNET_MEDIA_S3_BUCKET"),
		MediaS3Endpoint: os.Getenv("FIELDNET_MEDIA_S3_ENDPOINT"),
		MediaS3Region:   envOrDefault("FIELDNET_MEDIA_S3_REGION", "us-east-1"),
		PaywallSecret:   os.Getenv("FIELDNET_PAYWALL_SECRET"),
		PaywallCurrency: envOrDefault("FIELDNET_PAYWALL_CURRENCY", "USD"),
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "sqlite:" + filepath.Join(c.DataDir, "fieldnet.db")
	}

	resStr := envOrDefault("FIELDNET_H3_RES", "9")
	res, err := strconv.Atoi(resStr)
	if err != nil {
		return nil, fmt.Errorf("FIELDNET_H3_RES: %w", err)
	}
	if res < 0 || res > 15 {
		return nil, fmt.Errorf("FIELDNET_H3_RES must be between 0 and 15, got %d", res)
	}
	c.H3Res = res

	bufStr := envOrDefault("FIELDNET_PUSH_BUFFER", "256")
	buf, err := strconv.Atoi(bufStr)
	if err != nil {
		return nil, fmt.Errorf("FIELDNET_PUSH_BUFFER: %w", err)
	}
	if buf < 1 {
		return nil, fmt.Errorf("FIELDNET_PUSH_BUFFER must be positive, got %d", buf)
	}
	c.PushBuffer = buf

	if v := os.Getenv("FIELDNET_PAYWALL"); v != "" {
		routes, err := parsePaywall(v)
		if err != nil {
			return nil, fmt.Errorf("FIELDNET_PAYWALL: %w", err)
		}
		c.PaywallRoutes = routes
	}

	if v := os.Getenv("FIELDNET_ARCHIVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FIELDNET_ARCHIVE_INTERVAL: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("FIELDNET_ARCHIVE_INTERVAL must not be negative, got %s", d)
		}
		c.ArchiveInterval = d
	}
	c.ArchiveGitRepo = os.Getenv("FIELDNET_ARCHIVE_GIT_REPO")
	c.ArchiveGitBranch = envOrDefault("FIELDNET_ARCHIVE_GIT_BRANCH", "main")

	return c, nil
}

// parsePaywall parses a comma-separated route=price table.
func parsePaywall(s string) (map[string]float64, error) {
	routes := make(map[string]float64)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		route, priceStr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not route=price", entry)
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return nil, fmt.Errorf("price in %q: %w", entry, err)
		}
		if price < 0 {
			return nil, fmt.Errorf("price in %q must not be negative", entry)
		}
		routes[route] = price
	}
	return routes, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
