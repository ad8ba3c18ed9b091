package token

import (
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// Store is the process-wide holder of the current access credential. It is the
// only piece of global mutable session state on the client side; everything
// else reads the credential through it rather than keeping a copy.
//
// The credential lives in memory only and is lost on restart, after which a
// cookie based refresh (or a new login) is required.
type Store struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// Default is the shared Store used when no other store is injected.
var Default = NewStore()

func NewStore() *Store {
	return &Store{}
}

// Set replaces the current credential unconditionally. nil clears it.
func (s *Store) Set(t *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
}

// Get returns the current credential or nil.
func (s *Store) Get() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear is shorthand for Set(nil).
func (s *Store) Clear() {
	s.Set(nil)
}

// AccessToken returns the raw bearer value, "" when no credential is held.
func (s *Store) AccessToken() string {
	if t := s.Get(); t != nil {
		return t.AccessToken
	}
	return ""
}

// Authorize attaches the Authorization header when a credential is held and
// returns the raw value it attached.
func (s *Store) Authorize(r *http.Request) string {
	t := s.Get()
	if t == nil || t.AccessToken == "" {
		r.Header.Del("Authorization")
		return ""
	}
	t.SetAuthHeader(r)
	return t.AccessToken
}
