package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-daybook/gateway"
	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testEmail    = "jane@example.com"
	testPassword = "Password123"
	cookieName   = "refreshToken"
)

// fakeAPI accepts exactly one access token at a time and rotates it, with the
// refresh cookie, on every refresh.
type fakeAPI struct {
	mu           sync.Mutex
	validAccess  string
	validRefresh string
	generation   int

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
	refreshDelay atomic.Int64
	refreshFails atomic.Bool
	alwaysDeny   atomic.Bool
	lastBody     atomic.Value
}

func (f *fakeAPI) rotate() (string, string) {
	f.generation++
	f.validAccess = fmt.Sprintf("access-%d", f.generation)
	f.validRefresh = fmt.Sprintf("refresh-%d", f.generation)
	return f.validAccess, f.validRefresh
}

func (f *fakeAPI) writeToken(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: refresh, Path: "/", HttpOnly: true})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(gateway.TokenResponse{AccessToken: access, TokenType: "Bearer", ExpiresIn: 900})
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+gateway.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var creds gateway.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Email != testEmail || creds.Password != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		f.mu.Lock()
		access, refresh := f.rotate()
		f.mu.Unlock()
		f.writeToken(w, access, refresh)
	})
	mux.HandleFunc("POST "+gateway.PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		time.Sleep(time.Duration(f.refreshDelay.Load()))
		cookie, err := r.Cookie(cookieName)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.refreshFails.Load() || err != nil || cookie.Value != f.validRefresh {
			http.SetCookie(w, &http.Cookie{Name: cookieName, Path: "/", MaxAge: -1})
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		access, refresh := f.rotate()
		f.writeToken(w, access, refresh)
	})
	mux.HandleFunc("POST "+gateway.PathLogout, func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/items", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := "Bearer " + f.validAccess
		f.mu.Unlock()
		if f.alwaysDeny.Load() || r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			f.lastBody.Store(string(raw))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})
	mux.HandleFunc("/api/limited", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
	})
	return mux
}

type testFixture struct {
	api      *fakeAPI
	server   *httptest.Server
	tokens   *token.Store
	gw       *gateway.Gateway
	expiries atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{api: &fakeAPI{}, tokens: token.NewStore()}
	f.server = httptest.NewServer(f.api.handler())
	t.Cleanup(f.server.Close)

	gw, err := gateway.New(f.server.URL,
		gateway.WithTokenStore(f.tokens),
		gateway.WithSessionExpiredHandler(func() { f.expiries.Add(1) }),
		gateway.WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	f.gw = gw
	return f
}

// login signs in and then invalidates the access credential server side, as
// if it had expired.
func (f *testFixture) loginAndExpire(t *testing.T) {
	t.Helper()
	_, err := f.gw.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	f.api.mu.Lock()
	f.api.validAccess = "not-what-the-client-holds"
	f.api.mu.Unlock()
}

func TestGateway_Login(t *testing.T) {
	f := setupTestFixture(t)

	tok, err := f.gw.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
	require.Equal(t, "access-1", f.tokens.AccessToken())
	require.WithinDuration(t, time.Now().Add(900*time.Second), tok.Expiry, 5*time.Second)

	resp, err := f.gw.Get(context.Background(), "/api/items")
	require.NoError(t, err)
	require.NoError(t, gateway.DecodeJSON(resp, nil))
	require.Equal(t, int32(0), f.api.refreshCalls.Load())
}

func TestGateway_LoginBadCredentialsDoesNotRefresh(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.gw.Login(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.Nil(t, f.tokens.Get())
	require.Equal(t, int32(0), f.api.refreshCalls.Load())
	require.Equal(t, int32(0), f.expiries.Load())
}

func TestGateway_RefreshesAndRetriesOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAndExpire(t)

	resp, err := f.gw.Post(context.Background(), "/api/items", map[string]string{"title": "hello"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, gateway.DecodeJSON(resp, nil))

	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, "access-2", f.tokens.AccessToken())
	require.JSONEq(t, `{"title":"hello"}`, f.api.lastBody.Load().(string))
}

func TestGateway_ConcurrentCallsShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAndExpire(t)
	f.api.refreshDelay.Store(int64(50 * time.Millisecond))

	const callers = 25
	var (
		wg       sync.WaitGroup
		statuses = make([]int, callers)
		errs     = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.gw.Get(context.Background(), "/api/items")
			errs[i] = err
			if err == nil {
				statuses[i] = resp.StatusCode
				_ = gateway.DecodeJSON(resp, nil)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, "access-2", f.tokens.AccessToken())
}

func TestGateway_RefreshFailureExpiresSession(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAndExpire(t)
	f.api.refreshFails.Store(true)

	_, err := f.gw.Get(context.Background(), "/api/items")
	require.ErrorIs(t, err, gateway.ErrSessionExpired)
	require.Nil(t, f.tokens.Get())
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.api.logoutCalls.Load())
	require.Equal(t, int32(1), f.expiries.Load())
	require.True(t, f.gw.Refresher().Failed())

	// the next call fails without another refresh, revoke or hook call
	_, err = f.gw.Get(context.Background(), "/api/items")
	require.ErrorIs(t, err, gateway.ErrSessionExpired)
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.api.logoutCalls.Load())
	require.Equal(t, int32(1), f.expiries.Load())

	// a new login recovers
	f.api.refreshFails.Store(false)
	_, err = f.gw.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.False(t, f.gw.Refresher().Failed())
	resp, err := f.gw.Get(context.Background(), "/api/items")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestGateway_ConcurrentFailuresTearDownOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAndExpire(t)
	f.api.refreshFails.Store(true)
	f.api.refreshDelay.Store(int64(50 * time.Millisecond))

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.gw.Get(context.Background(), "/api/items")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, gateway.ErrSessionExpired)
	}
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.api.logoutCalls.Load())
	require.Equal(t, int32(1), f.expiries.Load())

	// a later session that expires is torn down again
	f.api.refreshFails.Store(false)
	f.api.refreshDelay.Store(0)
	f.loginAndExpire(t)
	f.api.refreshFails.Store(true)
	_, err := f.gw.Get(context.Background(), "/api/items")
	require.ErrorIs(t, err, gateway.ErrSessionExpired)
	require.Equal(t, int32(2), f.api.logoutCalls.Load())
	require.Equal(t, int32(2), f.expiries.Load())
}

func TestGateway_RetriedCallStillUnauthorized(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.gw.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	f.api.alwaysDeny.Store(true)

	_, err = f.gw.Get(context.Background(), "/api/items")
	require.ErrorIs(t, err, gateway.ErrSessionExpired)
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.expiries.Load())
	require.Nil(t, f.tokens.Get())
}

func TestGateway_RestoresSessionFromCookieWithoutAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.gw.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	// process restart: the in-memory credential is gone, the cookie is not
	f.tokens.Clear()

	resp, err := f.gw.Get(context.Background(), "/api/items")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
}

func TestGateway_PassesThroughOtherErrors(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := f.gw.Get(context.Background(), "/api/broken")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	err = gateway.DecodeJSON(resp, nil)
	require.ErrorIs(t, err, apperrors.ErrServer)
	require.Contains(t, err.Error(), "boom")

	resp, err = f.gw.Get(context.Background(), "/api/limited")
	require.NoError(t, err)
	err = gateway.DecodeJSON(resp, nil)
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 17, apiErr.RetryAfter)

	require.Equal(t, int32(0), f.api.refreshCalls.Load())
}

func TestGateway_NetworkError(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Close()

	_, err := f.gw.Get(context.Background(), "/api/items")
	require.ErrorIs(t, err, gateway.ErrNetwork)
	require.Equal(t, int32(0), f.expiries.Load())
}

func TestGateway_UsesDefaultStore(t *testing.T) {
	gw, err := gateway.New("http://localhost")
	require.NoError(t, err)
	require.Same(t, token.Default, gw.Tokens())
	require.Equal(t, "http://localhost/api/posts", gw.URL("/api/posts"))
	require.Equal(t, "https://other/x", gw.URL("https://other/x"))
}

func TestRefreshCoordinator_SharesOutcome(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.gw.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	f.api.refreshDelay.Store(int64(50 * time.Millisecond))

	const callers = 10
	results := make([]*oauth2.Token, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.gw.Refresher().Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	for _, tok := range results {
		require.NotNil(t, tok)
		require.Equal(t, "access-2", tok.AccessToken)
	}

	// the marker is cleared: a later call makes a fresh attempt
	tok, err := f.gw.Refresher().Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-3", tok.AccessToken)
	require.Equal(t, int32(2), f.api.refreshCalls.Load())
}
