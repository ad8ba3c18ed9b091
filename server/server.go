package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-daybook/internal/config"
	"github.com/jrsteele09/go-daybook/ratelimit"
	"github.com/jrsteele09/go-daybook/token"
	"github.com/jrsteele09/go-daybook/token/refresh"
	"github.com/jrsteele09/go-daybook/users"
	"github.com/rs/zerolog/log"
)

// Repos are the stores behind the auth surface.
type Repos struct {
	Users         users.UserRepo
	ResetTokens   users.ResetTokenRepo
	RefreshTokens refresh.Repo
	RateLimits    ratelimit.Store
}

// ResetNotifier delivers a password reset token to its owner.
type ResetNotifier func(user *users.User, t *users.ResetToken)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	repos   Repos
	issuer  *token.Issuer
	refresh *refresh.Manager
	resets  *users.PasswordResets
	limiter *ratelimit.Limiter
	notify  ResetNotifier
}

type Option func(*Server)

// WithResetNotifier replaces the default notifier, which only logs.
func WithResetNotifier(n ResetNotifier) Option {
	return func(s *Server) {
		s.notify = n
	}
}

// WithLimiter replaces the limiter built from Repos.RateLimits.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

func New(config config.Config, repos Repos, options ...Option) (*Server, error) {
	if repos.Users == nil || repos.ResetTokens == nil || repos.RefreshTokens == nil || repos.RateLimits == nil {
		return nil, fmt.Errorf("[Server New] every repo is required")
	}

	s := &Server{
		env:     config.GetEnv(),
		mux:     http.NewServeMux(),
		config:  config,
		repos:   repos,
		issuer:  token.NewIssuer(token.NewSecretSigner(config.GetTokenSecret(), config.GetPreviousTokenSecrets()...), config.GetAccessTokenExpiry(), token.WithIssuerName(config.GetAppName())),
		refresh: refresh.NewManager(repos.RefreshTokens, config),
		resets:  users.NewPasswordResets(repos.Users, repos.ResetTokens, config.GetPasswordResetExpiry()),
		limiter: ratelimit.New(repos.RateLimits),
	}
	s.notify = s.logResetToken
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Issuer returns the access credential issuer, for services sharing the
// server's tokens.
func (s *Server) Issuer() *token.Issuer {
	return s.issuer
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func (s *Server) logResetToken(user *users.User, t *users.ResetToken) {
	ev := log.Info().Str("user_id", user.ID).Time("expires_at", t.ExpiresAt)
	if s.env == "DEV" {
		ev = ev.Str("reset_token", t.Token)
	}
	ev.Msg("password reset requested")
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
