package token

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs access credential claims and resolves the key that verifies a
// presented credential.
type Signer interface {
	Sign(claims *Claims) (string, error)
	VerificationKey(token *jwt.Token) (any, error)
	Method() jwt.SigningMethod
}

// SecretSigner signs with HMAC-SHA256 under the current secret and still
// accepts credentials signed with a previous one, so rotating TOKEN_SECRET
// does not sign every session out before its access credential expires.
// Credentials carry the secret's key id in the kid header.
type SecretSigner struct {
	currentKID string
	secrets    map[string][]byte
}

func NewSecretSigner(current string, previous ...string) *SecretSigner {
	s := &SecretSigner{
		currentKID: keyID(current),
		secrets:    make(map[string][]byte, len(previous)+1),
	}
	s.secrets[s.currentKID] = []byte(current)
	for _, p := range previous {
		if p != "" {
			s.secrets[keyID(p)] = []byte(p)
		}
	}
	return s
}

func (s *SecretSigner) Sign(claims *Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = s.currentKID
	signed, err := t.SignedString(s.secrets[s.currentKID])
	if err != nil {
		return "", errors.Wrap(err, "SecretSigner.Sign")
	}
	return signed, nil
}

func (s *SecretSigner) VerificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	kid, _ := t.Header["kid"].(string)
	secret, ok := s.secrets[kid]
	if !ok {
		return nil, errors.Errorf("unknown key id %q", kid)
	}
	return secret, nil
}

func (s *SecretSigner) Method() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// keyID names a secret without revealing it.
func keyID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
