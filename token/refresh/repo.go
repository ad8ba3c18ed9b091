package refresh

import (
	"context"
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only ever receives Token, and only inside an HttpOnly cookie.
type StoredRefreshToken struct {
	Token     string    `json:"token"`     // The actual random token string (sent to client)
	UserID    string    `json:"userId"`    // Server-side metadata
	SessionID string    `json:"sessionId"` // Login session, stable across rotations
	Iat       time.Time `json:"iat"`       // Issued at time
	ExpiresAt time.Time `json:"expiresAt"` // Absolute expiry of this token
}

// Repo manages server-side storage of refresh token metadata, keyed by the
// token string. Implementations must be safe for concurrent use.
type Repo interface {
	Upsert(ctx context.Context, refreshToken *StoredRefreshToken) error
	Get(ctx context.Context, token string) (*StoredRefreshToken, error)
	// Take atomically returns and deletes a token so that two concurrent
	// rotations of the same value cannot both succeed.
	Take(ctx context.Context, token string) (*StoredRefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
}
