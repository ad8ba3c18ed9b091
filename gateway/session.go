package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access credential, which is stored in
// the token store. The server sets the refresh cookie on the same response.
// Login bypasses the refresh cycle: a 401 here means bad credentials.
func (g *Gateway) Login(ctx context.Context, email, password string) (*oauth2.Token, error) {
	raw, err := json.Marshal(Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+PathLogin, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %s", ErrNetwork, err.Error())
	}
	var body TokenResponse
	if err := DecodeJSON(resp, &body); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	tok := body.Token(time.Now())
	g.tokens.Set(tok)
	g.refresher.Reset()
	g.signedOut.Store(false)
	return tok, nil
}

// Logout clears the local credential and revokes the refresh cookie.
func (g *Gateway) Logout(ctx context.Context) {
	g.tokens.Clear()
	g.revoke(ctx)
}
