package ratelimit

import (
	"context"
	"time"
)

// Bucket is the fixed-window counter for one (route, client) key.
type Bucket struct {
	Count   int
	ResetAt time.Time
}

// Store persists buckets. Hit must be atomic per key: when the key is absent
// or its window has elapsed a new window starting at now with Count 1
// replaces it, otherwise Count is incremented. The resulting bucket is
// returned.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (Bucket, error)
}
