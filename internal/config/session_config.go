package config

import "time"

type SessionConfig interface {
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetRefreshCookieName() string
	GetPasswordResetExpiry() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Session) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour) // 30 days
}

func (Session) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (Session) GetRefreshCookieName() string {
	return "refreshToken"
}

func (Session) GetPasswordResetExpiry() time.Duration {
	return time.Hour
}
