package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	redisAddrVar      = "REDIS_ADDR"
	tokenSecretEnvVar = "TOKEN_SECRET"
	prevSecretsEnvVar = "TOKEN_SECRET_PREVIOUS"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Daybook")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetRedisAddr returns the address of the shared Redis instance. When empty the
// rate limiter and refresh token store fall back to process-local memory.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

// GetTokenSecret returns the HMAC secret used to sign access tokens.
func (EnvVars) GetTokenSecret() string {
	return GetEnv(tokenSecretEnvVar, "daybook-dev-secret")
}

// GetPreviousTokenSecrets returns retired secrets, comma separated in
// TOKEN_SECRET_PREVIOUS, whose access tokens are still accepted.
func (EnvVars) GetPreviousTokenSecrets() []string {
	var secrets []string
	for _, s := range strings.Split(GetEnv(prevSecretsEnvVar, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt reads an integer variable, falling back to defaultValue when it is
// unset or malformed.
func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvDuration reads a time.ParseDuration formatted variable.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}
