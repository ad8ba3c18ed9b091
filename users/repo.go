package users

import "time"

type UserRepo interface {
	Upsert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetBlocked(email string, blocked bool) error
	SetLastLogin(email string, at time.Time) error
}

// ResetTokenRepo stores outstanding password reset tokens.
type ResetTokenRepo interface {
	PutResetToken(t *ResetToken) error
	// TakeResetToken returns and removes the token so that it can only be
	// redeemed once.
	TakeResetToken(token string) (*ResetToken, error)
}
