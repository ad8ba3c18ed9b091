package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	RateLimitConfig
	ClientConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetRedisAddr() string
	GetTokenSecret() string
	GetPreviousTokenSecrets() []string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	RateLimits
	Client
}

// New loads an optional .env file from the working directory and returns the
// environment backed configuration.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
