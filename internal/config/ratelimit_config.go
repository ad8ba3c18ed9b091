package config

import "time"

// Route names for the rate limited auth endpoints.
const (
	LimitLogin          = "login"
	LimitLogout         = "logout"
	LimitRefresh        = "refresh"
	LimitForgotPassword = "forgot-password"
	LimitResetPassword  = "reset-password"
)

// RouteLimit is the number of requests a single client may make to a route
// within one fixed window.
type RouteLimit struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig interface {
	GetRouteLimits() map[string]RouteLimit
	GetRateLimitSweepInterval() time.Duration
}

type RateLimits struct{}

var _ RateLimitConfig = RateLimits{}

func (RateLimits) GetRouteLimits() map[string]RouteLimit {
	window := GetEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	return map[string]RouteLimit{
		LimitLogin:          {Limit: GetEnvInt("RATE_LIMIT_LOGIN", 10), Window: window},
		LimitLogout:         {Limit: GetEnvInt("RATE_LIMIT_LOGOUT", 30), Window: window},
		LimitRefresh:        {Limit: GetEnvInt("RATE_LIMIT_REFRESH", 60), Window: window},
		LimitForgotPassword: {Limit: GetEnvInt("RATE_LIMIT_FORGOT_PASSWORD", 5), Window: window},
		LimitResetPassword:  {Limit: GetEnvInt("RATE_LIMIT_RESET_PASSWORD", 6), Window: window},
	}
}

func (RateLimits) GetRateLimitSweepInterval() time.Duration {
	return 5 * time.Minute
}
