package server

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/internal/metrics"
	"github.com/jrsteele09/go-daybook/token"
	"github.com/jrsteele09/go-daybook/users"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// LoginHandler checks credentials, starts a refresh session in the cookie
// and returns the first access credential.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		email := users.NormalizeEmail(req.Email)
		user, err := s.repos.Users.GetByEmail(email)
		if err != nil || user.Blocked || !user.CheckPassword(req.Password) {
			log.Debug().Str("email", email).Msg("login rejected")
			writeError(w, http.StatusUnauthorized, apperrors.ErrInvalidCredentials.Error())
			return
		}

		rt, err := s.refresh.Create(r.Context(), user.ID)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to create refresh session")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err := s.repos.Users.SetLastLogin(email, time.Now()); err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to record login")
		}
		s.issueAccess(w, r, user.ID, rt.SessionID, rt.Token)
	}
}

// RefreshHandler rotates the refresh cookie and returns a new access
// credential. Any failure clears the cookie so the client stops retrying.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, err := s.refresh.Rotate(r.Context(), s.refreshCookie(r))
		if err != nil {
			metrics.RecordRefresh("server", false)
			log.Debug().Err(err).Msg("refresh rejected")
			s.clearRefreshCookie(w, r)
			writeError(w, http.StatusUnauthorized, refreshErrorMessage(err))
			return
		}

		user, err := s.repos.Users.GetByID(rt.UserID)
		if err != nil || user.Blocked {
			metrics.RecordRefresh("server", false)
			if err := s.refresh.Revoke(r.Context(), rt.Token); err != nil {
				log.Err(err).Msg("failed to revoke refresh token")
			}
			s.clearRefreshCookie(w, r)
			writeError(w, http.StatusUnauthorized, apperrors.ErrInvalidRefreshToken.Error())
			return
		}

		if s.issueAccess(w, r, rt.UserID, rt.SessionID, rt.Token) {
			metrics.RecordRefresh("server", true)
		}
	}
}

// LogoutHandler revokes the refresh cookie, if any. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if value := s.refreshCookie(r); value != "" {
			if err := s.refresh.Revoke(r.Context(), value); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
				log.Err(err).Msg("failed to revoke refresh token")
			}
		}
		s.clearRefreshCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ForgotPasswordHandler issues a reset token. The response is the same
// whether or not the account exists.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := decodeJSON(r, &req); err != nil || !strings.Contains(req.Email, "@") {
			writeError(w, http.StatusBadRequest, "a valid email is required")
			return
		}

		t, err := s.resets.Request(req.Email)
		switch {
		case apperrors.Is(err, apperrors.ErrUserNotFound):
			log.Debug().Msg("password reset for unknown account")
		case err != nil:
			log.Err(err).Msg("failed to create password reset token")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		default:
			if user, err := s.repos.Users.GetByID(t.UserID); err == nil {
				s.notify(user, t)
			}
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message": "If the account exists, a reset link has been sent.",
		})
	}
}

// ResetPasswordHandler sets a new password and ends every session of the
// user, including the caller's.
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "token and password are required")
			return
		}

		user, err := s.resets.Reset(req.Token, req.Password)
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidResetToken):
			writeError(w, http.StatusBadRequest, apperrors.ErrInvalidResetToken.Error())
			return
		case apperrors.Is(err, apperrors.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			log.Err(err).Msg("password reset failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := s.refresh.RevokeUser(r.Context(), user.ID); err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to revoke sessions after password reset")
		}
		s.clearRefreshCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the authenticated user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.repos.Users.GetByID(userID)
		if err != nil {
			writeError(w, http.StatusNotFound, apperrors.ErrUserNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// issueAccess sets the refresh cookie and writes a token response. It reports
// whether the response succeeded.
func (s *Server) issueAccess(w http.ResponseWriter, r *http.Request, userID, sessionID, refreshToken string) bool {
	access, err := s.issuer.Issue(userID, sessionID)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("failed to issue access token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	s.setRefreshCookie(w, r, refreshToken)
	writeJSON(w, http.StatusOK, token.NewResponse(access, time.Now()))
	return true
}

func refreshErrorMessage(err error) string {
	if apperrors.Is(err, apperrors.ErrRefreshTokenExpired) {
		return apperrors.ErrRefreshTokenExpired.Error()
	}
	return apperrors.ErrInvalidRefreshToken.Error()
}
