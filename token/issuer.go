package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const tokenTypeBearer = "Bearer"

// Claims carried by an access credential.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and validates short lived access credentials.
type Issuer struct {
	signer  Signer
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

type IssuerOption func(*Issuer)

func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = name
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(signer Signer, expiry time.Duration, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer: signer,
		expiry: expiry,
		issuer: "daybook",
	}
	for _, opt := range options {
		opt(i)
	}
	if i.expiry == 0 {
		i.expiry = 15 * time.Minute
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	return i
}

// Issue creates an access credential for the user's session.
func (i *Issuer) Issue(userID, sessionID string) (*oauth2.Token, error) {
	now := i.nowFunc()
	expiresAt := now.Add(i.expiry)
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	signed, err := i.signer.Sign(&claims)
	if err != nil {
		return nil, errors.Wrap(err, "Issuer.Issue")
	}
	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   tokenTypeBearer,
		Expiry:      expiresAt,
	}, nil
}

// Validate parses a raw access credential and returns its claims. Expired
// credentials return ErrTokenExpired, anything else unusable ErrInvalidToken.
func (i *Issuer) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.signer.VerificationKey,
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.nowFunc),
		jwt.WithValidMethods([]string{i.signer.Method().Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperrors.ErrTokenExpired
	case err != nil:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%s", err.Error())
	}
	return claims, nil
}

// ExpiresIn returns the configured credential lifetime.
func (i *Issuer) ExpiresIn() time.Duration {
	return i.expiry
}
