package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/internal/metrics"
	"github.com/jrsteele09/go-daybook/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// TokenResponse is the body returned by the login and refresh routes.
type TokenResponse = token.Response

// RefreshCoordinator renews the access credential using the refresh cookie.
// Concurrent callers share a single in-flight call and all observe its
// outcome; once it completes the next call starts a fresh attempt.
type RefreshCoordinator struct {
	client  *http.Client
	url     string
	tokens  *token.Store
	timeout time.Duration
	group   singleflight.Group
	failed  atomic.Bool
}

// NewRefreshCoordinator posts to refreshURL with client, whose cookie jar
// carries the refresh credential.
func NewRefreshCoordinator(client *http.Client, refreshURL string, tokens *token.Store, timeout time.Duration) *RefreshCoordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RefreshCoordinator{
		client:  client,
		url:     refreshURL,
		tokens:  tokens,
		timeout: timeout,
	}
}

// Refresh returns the renewed credential. On failure the token store is
// cleared and a nil token is returned together with the cause.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (*oauth2.Token, error) {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		// detached so one caller giving up does not fail the others
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresh(callCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *RefreshCoordinator) refresh(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.call(ctx)
	metrics.RecordRefresh("client", err == nil)
	if err != nil {
		c.tokens.Clear()
		c.failed.Store(true)
		log.Debug().Err(err).Msg("access credential refresh failed")
		return nil, err
	}
	c.tokens.Set(tok)
	c.failed.Store(false)
	return tok, nil
}

// Failed reports whether the most recent refresh failed. It is reset by a
// successful refresh or by Reset after a fresh login.
func (c *RefreshCoordinator) Failed() bool {
	return c.failed.Load()
}

// Reset forgets a previous failure.
func (c *RefreshCoordinator) Reset() {
	c.failed.Store(false)
}

func (c *RefreshCoordinator) call(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh: %s", apperrors.ErrNetwork, err.Error())
	}
	var body TokenResponse
	if err := DecodeJSON(resp, &body); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("refresh: %w", apperrors.ErrInvalidToken)
	}
	return body.Token(time.Now()), nil
}
