package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-daybook/internal/config"
	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles refresh token creation, validation, and rotation. Exactly
// one token is valid per login session: Rotate takes the presented token out
// of the repo before the replacement is stored.
type Manager struct {
	repo   Repo
	config config.SessionConfig
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.SessionConfig) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
	}
}

// Create starts a new login session for the user and returns its first token.
func (m *Manager) Create(ctx context.Context, userID string) (*StoredRefreshToken, error) {
	return m.issue(ctx, userID, uuid.New().String())
}

// Rotate exchanges a presented token for a new one in the same session. The
// presented token is invalid afterwards whether or not rotation succeeds.
func (m *Manager) Rotate(ctx context.Context, token string) (*StoredRefreshToken, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	current, err := m.repo.Take(ctx, token)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRefreshToken, "rotate: %s", err.Error())
	}
	if m.IsExpired(current) {
		return nil, apperrors.ErrRefreshTokenExpired
	}
	return m.issue(ctx, current.UserID, current.SessionID)
}

// Get retrieves a refresh token from storage
func (m *Manager) Get(ctx context.Context, token string) (*StoredRefreshToken, error) {
	return m.repo.Get(ctx, token)
}

// Revoke removes a refresh token from storage
func (m *Manager) Revoke(ctx context.Context, token string) error {
	return m.repo.Delete(ctx, token)
}

// RevokeUser ends every session of the user, e.g. after a password reset.
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	return m.repo.DeleteByUserID(ctx, userID)
}

// IsExpired checks if a refresh token has outlived the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	if !rt.ExpiresAt.IsZero() {
		return !NowTimeFunc().Before(rt.ExpiresAt)
	}
	return NowTimeFunc().Sub(rt.Iat) > m.config.GetRefreshTokenExpiry()
}

func (m *Manager) issue(ctx context.Context, userID, sessionID string) (*StoredRefreshToken, error) {
	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	now := NowTimeFunc()
	rt := &StoredRefreshToken{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    userID,
		SessionID: sessionID,
		Iat:       now,
		ExpiresAt: now.Add(m.config.GetRefreshTokenExpiry()),
	}
	if err := m.repo.Upsert(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rt, nil
}
