package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Session
	RouteAuthLogin   = "/api/auth/login"
	RouteAuthRefresh = "/api/auth/refresh"
	RouteAuthLogout  = "/api/auth/logout"
	RouteAuthMe      = "/api/auth/me"

	// Auth Routes - Password Management
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteResetPassword  = "/api/auth/reset-password"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
