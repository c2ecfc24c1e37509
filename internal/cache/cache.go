// Package cache holds in-process caches placed in front of slower lookups.
package cache

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/ports"
)

// Directory caches successful user lookups for a short TTL. Failed lookups
// are never cached, so a user created after a miss is found on the next call.
type Directory struct {
	next  ports.UserDirectory
	users *LRUCache[core.User]
}

var _ ports.UserDirectory = (*Directory)(nil)

func NewDirectory(next ports.UserDirectory, size int, ttl time.Duration) *Directory {
	return &Directory{next: next, users: NewLRUCache[core.User](size, ttl)}
}

func (d *Directory) FindByUsername(ctx context.Context, username string) (core.User, error) {
	if u, ok := d.users.Get(username); ok {
		return u, nil
	}

	u, err := d.next.FindByUsername(ctx, username)
	if err != nil {
		return core.User{}, err
	}
	d.users.Set(username, u)
	return u, nil
}

// Run drops expired entries every interval until ctx is cancelled.
func (d *Directory) Run(ctx context.Context, interval time.Duration, logger *log.Logger) {
	if logger == nil {
		logger = log.Discard()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := d.users.CleanExpired(); removed > 0 {
				logger.DebugContext(ctx, "Expired cached users removed", "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}
