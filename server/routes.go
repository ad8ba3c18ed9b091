package server

import (
	"net/http"

	"github.com/jrsteele09/go-daybook/internal/config"
	"github.com/jrsteele09/go-daybook/internal/metrics"
)

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(s.rateLimit(config.LimitLogin))...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.rateLimit(config.LimitRefresh))...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.rateLimit(config.LimitLogout))...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))

	// PASSWORD
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware(s.rateLimit(config.LimitForgotPassword))...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware(s.rateLimit(config.LimitResetPassword))...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(notFoundHandler, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// rateLimit guards a route with its configured limit. A route without a
// configured limit is not guarded.
func (s *Server) rateLimit(route string) func(http.HandlerFunc) http.HandlerFunc {
	limit, ok := s.config.GetRouteLimits()[route]
	if !ok || limit.Limit <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	return s.limiter.Guard(route, limit.Limit, limit.Window)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
