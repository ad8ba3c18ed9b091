// Package ratelimit guards sensitive routes with a fixed-window request
// counter per (route, client) pair.
package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const unknownClient = "unknown"

// DefaultMessage is the human readable body of a 429.
const DefaultMessage = "Too many requests, please try again later."

// Rejection describes a blocked request.
type Rejection struct {
	Message    string `json:"error"`
	RetryAfter int    `json:"retryAfter"` // seconds, at least 1
}

// Write emits the 429 response.
func (rj *Rejection) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Retry-After", strconv.Itoa(rj.RetryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rj)
}

// Limiter decides whether a request may proceed.
type Limiter struct {
	store   Store
	nowFunc func() time.Time
}

type Option func(*Limiter)

func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) {
		l.nowFunc = now
	}
}

func New(store Store, options ...Option) *Limiter {
	l := &Limiter{store: store}
	for _, opt := range options {
		opt(l)
	}
	if l.nowFunc == nil {
		l.nowFunc = time.Now
	}
	return l
}

// Check counts the request against the (keyPrefix, client) bucket and
// returns a Rejection once more than limit requests fall within one window.
// Rejected requests keep counting; only the decision changes. A store failure
// lets the request through.
func (l *Limiter) Check(r *http.Request, keyPrefix string, limit int, window time.Duration) *Rejection {
	key := keyPrefix + ":" + ClientID(r)
	now := l.nowFunc()

	b, err := l.store.Hit(r.Context(), key, window, now)
	if err != nil {
		log.Err(err).Str("key", key).Msg("rate limit store unavailable, allowing request")
		return nil
	}
	if b.Count <= limit {
		return nil
	}
	return &Rejection{
		Message:    DefaultMessage,
		RetryAfter: retryAfterSeconds(b.ResetAt.Sub(now)),
	}
}

func retryAfterSeconds(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ClientID derives the client identifier: the first X-Forwarded-For entry,
// then X-Real-IP, then the connection address. Callers with no derivable
// address all share the "unknown" bucket.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return unknownClient
}
