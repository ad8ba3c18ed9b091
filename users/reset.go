package users

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
)

// NowTimeFunc is overridden in tests.
var NowTimeFunc = time.Now

// ResetToken lets the holder of a reset email choose a new password.
type ResetToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PasswordResets issues and redeems reset tokens.
type PasswordResets struct {
	users  UserRepo
	tokens ResetTokenRepo
	expiry time.Duration
}

func NewPasswordResets(users UserRepo, tokens ResetTokenRepo, expiry time.Duration) *PasswordResets {
	return &PasswordResets{users: users, tokens: tokens, expiry: expiry}
}

// Request creates a reset token for email. An unknown address returns
// ErrUserNotFound; callers answering a public route must not reveal that.
func (p *PasswordResets) Request(email string) (*ResetToken, error) {
	user, err := p.users.GetByEmail(NormalizeEmail(email))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrUserNotFound, "reset for %s", email)
	}
	t := &ResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: NowTimeFunc().Add(p.expiry),
	}
	if err := p.tokens.PutResetToken(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset sets a new password for the owner of token and returns the user. The
// token is consumed even when the new password is rejected.
func (p *PasswordResets) Reset(token, newPassword string) (*User, error) {
	t, err := p.tokens.TakeResetToken(token)
	if err != nil || t == nil {
		return nil, apperrors.ErrInvalidResetToken
	}
	if !NowTimeFunc().Before(t.ExpiresAt) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidResetToken, "expired")
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "%s", err.Error())
	}
	user, err := p.users.GetByID(t.UserID)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrUserNotFound, "reset %s", t.UserID)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	updated := *user
	updated.PasswordHash = hash
	if err := p.users.Upsert(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
