package config

import "time"

type ClientConfig interface {
	GetAPIBaseURL() string
	GetPageSize() int
	GetRequestTimeout() time.Duration
}

type Client struct{}

var _ ClientConfig = Client{}

// GetAPIBaseURL returns the base URL the client side gateway talks to.
func (Client) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8080")
}

func (Client) GetPageSize() int {
	return GetEnvInt("PAGE_SIZE", 20)
}

func (Client) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
}
