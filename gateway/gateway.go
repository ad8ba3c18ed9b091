// Package gateway is the single chokepoint for client to server calls. It
// attaches the access credential, recovers from a 401 with one refresh and
// one retry, and tears the session down when that is not possible.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/internal/metrics"
	"github.com/jrsteele09/go-daybook/token"
	"github.com/rs/zerolog/log"
)

// Auth routes on the API server.
const (
	PathLogin   = "/api/auth/login"
	PathLogout  = "/api/auth/logout"
	PathRefresh = "/api/auth/refresh"
)

var (
	// ErrSessionExpired is returned when the session cannot be recovered.
	ErrSessionExpired = apperrors.ErrSessionExpired
	// ErrNetwork is returned when no response was received.
	ErrNetwork = apperrors.ErrNetwork
)

// Gateway performs authenticated API calls.
type Gateway struct {
	baseURL          string
	client           *http.Client
	tokens           *token.Store
	refresher        *RefreshCoordinator
	onSessionExpired func()
	timeout          time.Duration

	// signedOut is set by the first teardown of a session and cleared by Login.
	signedOut atomic.Bool
}

type Option func(*Gateway)

// WithHTTPClient replaces the default client. Its Jar must persist cookies for
// the refresh credential to survive between calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithTokenStore replaces token.Default.
func WithTokenStore(store *token.Store) Option {
	return func(g *Gateway) {
		g.tokens = store
	}
}

// WithSessionExpiredHandler registers the hook run on forced teardown, usually
// a redirect to the login surface.
func WithSessionExpiredHandler(fn func()) Option {
	return func(g *Gateway) {
		g.onSessionExpired = fn
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

func New(baseURL string, options ...Option) (*Gateway, error) {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  token.Default,
		timeout: 30 * time.Second,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("gateway cookie jar: %w", err)
		}
		g.client = &http.Client{Jar: jar, Timeout: g.timeout}
	}
	g.refresher = NewRefreshCoordinator(g.client, g.baseURL+PathRefresh, g.tokens, g.timeout)
	return g, nil
}

// Tokens returns the store the gateway reads the credential from.
func (g *Gateway) Tokens() *token.Store {
	return g.tokens
}

// Refresher returns the coordinator used to renew the credential.
func (g *Gateway) Refresher() *RefreshCoordinator {
	return g.refresher
}

// URL resolves a path against the base URL.
func (g *Gateway) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return g.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Do sends req with the access credential attached. Any response other than
// 401 is returned as is, including error statuses. A 401 triggers one refresh
// and one retry; if either fails the session is torn down and the error
// matches ErrSessionExpired.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	st := stateIdle
	var (
		resp     *http.Response
		sentWith string
		cause    error
	)
	for !st.terminal() {
		switch st {
		case stateIdle:
			sentWith, resp, err = g.send(req, body)
			if err != nil {
				metrics.RecordGatewayOutcome("network_error")
				return nil, err
			}
			st = stateSent

		case stateSent:
			if resp.StatusCode != http.StatusUnauthorized {
				st = stateDone
				continue
			}
			drain(resp)
			st = stateRefreshing

		case stateRefreshing:
			current := g.tokens.AccessToken()
			// the credential was lost to a failed refresh: no further attempts
			// until the next login
			if current == "" && g.refresher.Failed() {
				cause = apperrors.ErrUnauthorized
				st = stateSessionExpired
				continue
			}
			// another caller may already have renewed the credential this
			// request was sent with
			if current == "" || current == sentWith {
				if _, cause = g.refresher.Refresh(req.Context()); cause != nil {
					if ctxErr := req.Context().Err(); ctxErr != nil {
						return nil, ctxErr
					}
					st = stateSessionExpired
					continue
				}
			}
			_, resp, err = g.send(req, body)
			if err != nil {
				metrics.RecordGatewayOutcome("network_error")
				return nil, err
			}
			st = stateRetried

		case stateRetried:
			if resp.StatusCode == http.StatusUnauthorized {
				drain(resp)
				cause = apperrors.ErrUnauthorized
				st = stateSessionExpired
				continue
			}
			st = stateDone
		}
	}

	metrics.RecordGatewayOutcome(st.String())
	if st == stateSessionExpired {
		g.teardown(req.Context())
		return nil, fmt.Errorf("%w: %s %s: %v", ErrSessionExpired, req.Method, req.URL.Path, cause)
	}
	return resp, nil
}

// send performs one attempt and returns the credential it carried.
func (g *Gateway) send(req *http.Request, body []byte) (string, *http.Response, error) {
	attempt := req.Clone(req.Context())
	if body != nil {
		attempt.Body = io.NopCloser(bytes.NewReader(body))
		attempt.ContentLength = int64(len(body))
	}
	sentWith := g.tokens.Authorize(attempt)

	resp, err := g.client.Do(attempt)
	if err != nil {
		return sentWith, nil, fmt.Errorf("%w: %s %s: %s", ErrNetwork, req.Method, req.URL.Path, err.Error())
	}
	return sentWith, resp, nil
}

// teardown clears the credential, revokes the refresh cookie on a best
// effort basis and runs the session expired hook. Callers that fail together
// on one expired session share a single revoke and a single hook call.
func (g *Gateway) teardown(ctx context.Context) {
	g.tokens.Clear()
	if !g.signedOut.CompareAndSwap(false, true) {
		return
	}
	g.revoke(ctx)
	log.Info().Msg("session expired, signing out")
	if g.onSessionExpired != nil {
		g.onSessionExpired()
	}
}

func (g *Gateway) revoke(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+PathLogout, nil)
	if err != nil {
		log.Err(err).Msg("logout request")
		return
	}
	resp, err := g.client.Do(req)
	if err != nil {
		log.Err(err).Msg("failed to revoke refresh cookie")
		return
	}
	drain(resp)
}

// Get, Post, Patch and Delete build a request against the base URL. A
// non-nil body is sent as JSON.
func (g *Gateway) Get(ctx context.Context, path string) (*http.Response, error) {
	return g.request(ctx, http.MethodGet, path, nil)
}

func (g *Gateway) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return g.request(ctx, http.MethodPost, path, body)
}

func (g *Gateway) Patch(ctx context.Context, path string, body any) (*http.Response, error) {
	return g.request(ctx, http.MethodPatch, path, body)
}

func (g *Gateway) Delete(ctx context.Context, path string) (*http.Response, error) {
	return g.request(ctx, http.MethodDelete, path, nil)
}

func (g *Gateway) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.URL(path), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return g.Do(req)
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
