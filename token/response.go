package token

import (
	"time"

	"golang.org/x/oauth2"
)

// Response is the body returned by the login and refresh routes.
type Response struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"` // seconds
}

// NewResponse builds the wire form of t as seen at now.
func NewResponse(t *oauth2.Token, now time.Time) Response {
	resp := Response{AccessToken: t.AccessToken, TokenType: t.Type()}
	if !t.Expiry.IsZero() {
		resp.ExpiresIn = int(t.Expiry.Sub(now).Round(time.Second).Seconds())
	}
	return resp
}

// Token converts the wire form into an access credential.
func (r Response) Token(now time.Time) *oauth2.Token {
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = tokenTypeBearer
	}
	tok := &oauth2.Token{AccessToken: r.AccessToken, TokenType: tokenType}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}
