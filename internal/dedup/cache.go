// Package dedup provides the time-expiring marker store used to suppress
// repeated notifications for the same error group.
//
// Backends:
//   - memory: in-process map (single instance only)
//   - sqlite: SQLite file shared by every process on the host
//   - nats:   JetStream KeyValue bucket shared across hosts
//
// Dedup is best-effort: a get-then-set race between two dispatchers may let
// both notifications through, and losing the store resets suppression.
package dedup

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "hiprelay/pkg/logx"
)

var ErrClosed = errors.New("dedup cache closed")

// Cache records "this key was notified" markers that expire after a TTL.
type Cache interface {
	// Get reports whether an unexpired marker exists for key.
	Get(ctx context.Context, key string) (bool, error)
	// SetWithTTL stores a marker for key, replacing any existing one.
	SetWithTTL(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

// Pruner is implemented by caches that need expired entries removed
// explicitly. It returns the number of removed entries.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Key returns the marker key for an error group.
func Key(groupID string) string { return "delay_" + groupID }

// Config selects and configures a backend.
//
// Driver values: "memory" (default), "sqlite", "nats".
type Config struct {
	Driver string

	// memory
	MaxEntries int

	// sqlite
	Path        string
	BusyTimeout time.Duration

	// nats
	NATSURL   string
	Bucket    string
	BucketTTL time.Duration
}

// Open initializes the configured cache.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Cache, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "memory":
		return NewMemory(cfg.MaxEntries), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.Path, cfg.BusyTimeout, log)
	case "nats":
		return OpenNATS(ctx, cfg.NATSURL, cfg.Bucket, cfg.BucketTTL, log)
	default:
		return nil, errors.New("unknown dedup driver: " + driver)
	}
}

// ValidDriver reports whether Open understands driver.
func ValidDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory", "sqlite", "sqlite3", "nats":
		return true
	}
	return false
}
