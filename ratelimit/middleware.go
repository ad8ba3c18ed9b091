package ratelimit

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-daybook/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Guard returns middleware that rejects requests over limit per window for
// the given route prefix.
func (l *Limiter) Guard(keyPrefix string, limit int, window time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if rj := l.Check(r, keyPrefix, limit, window); rj != nil {
				metrics.RecordRateLimitRejection(keyPrefix)
				log.Warn().
					Str("route", keyPrefix).
					Str("client", ClientID(r)).
					Int("retry_after", rj.RetryAfter).
					Msg("rate limit exceeded")
				rj.Write(w)
				return
			}
			next(w, r)
		}
	}
}
