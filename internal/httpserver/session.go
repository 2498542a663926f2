package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/iammatthias/mysky.wtf/internal/bluesky"
	"github.com/iammatthias/mysky.wtf/internal/domain"
)

type agentKey struct{}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Handle == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "handle and password are required")
		return
	}

	token, sess, err := s.sessions.SignIn(r.Context(), req.Handle, req.Password)
	if bluesky.IsAuthError(err) {
		writeError(w, http.StatusUnauthorized, "InvalidCredentials", "handle or app password is wrong")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sess)
}

// handleLogout revokes the session, clears the cookie and sends the browser home.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.sessions.SignOut(r.Context(), token); err != nil {
			s.logger.Warn("sign out failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Session(r.Context(), sessionToken(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// requireAgent resolves the session cookie into an agent for the handlers
// behind it.
func (s *Server) requireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent, err := s.sessions.Agent(r.Context(), sessionToken(r))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), agentKey{}, domain.Agent(agent))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAgent returns the signed-in agent, or nil for anonymous requests.
func (s *Server) optionalAgent(r *http.Request) domain.Agent {
	token := sessionToken(r)
	if token == "" {
		return nil
	}
	agent, err := s.sessions.Agent(r.Context(), token)
	if err != nil {
		return nil
	}
	return agent
}

func agentFrom(ctx context.Context) domain.Agent {
	agent, _ := ctx.Value(agentKey{}).(domain.Agent)
	return agent
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
