// Package dedupe tracks which item IDs have already been handled so a
// listing is dispatched at most once per store lifetime.
package dedupe

import (
	"context"
	"fmt"
	"time"
)

// SeenStore answers whether an item ID is new and records handled IDs.
// Presence-only semantics; implementations impose no ordering.
type SeenStore interface {
	// IsNew reports whether id has not been marked seen yet.
	IsNew(ctx context.Context, id string) (bool, error)
	// MarkSeen records id. Marking an already-seen id refreshes it.
	MarkSeen(ctx context.Context, id string) error
	Close() error
}

// Config selects and parameterizes a store driver.
type Config struct {
	// Driver is one of "memory", "file", "sqlite".
	Driver string
	// Path locates the backing file for the file and sqlite drivers.
	Path string
	// TTL expires entries after the given duration. Zero keeps entries
	// for the lifetime of the store.
	TTL time.Duration
}

// Open constructs the store named by cfg.Driver. The memory driver
// starts empty on every process start, which makes previously handled
// items eligible again after a restart.
func Open(cfg Config) (SeenStore, error) {
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("dedupe ttl must not be negative")
	}
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "file":
		return OpenFileStore(cfg.Path, cfg.TTL)
	case "sqlite":
		return OpenSQLiteStore(cfg.Path, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown dedupe driver %q", cfg.Driver)
	}
}
