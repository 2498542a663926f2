package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iammatthias/mysky.wtf/internal/auth"
	"github.com/iammatthias/mysky.wtf/internal/bluesky"
	"github.com/iammatthias/mysky.wtf/internal/config"
	"github.com/iammatthias/mysky.wtf/internal/domain"
)

// SessionCookie holds the signed session token.
const SessionCookie = "ms_session"

// Server is the HTTP server exposing the MySky JSON API.
type Server struct {
	cfg        *config.Config
	service    *domain.Service
	sessions   *auth.Manager
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, service *domain.Service, sessions *auth.Manager, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		service:  service,
		sessions: sessions,
		logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withLogging(s.logger))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)

		r.Route("/profiles/{did}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Get("/comments", s.handleGetComments)
			r.Get("/friends", s.handleGetFriends)
			r.Get("/documents", s.handleListDocuments)
			r.Get("/documents/{rkey}", s.handleGetDocument)
			r.Get("/bulletins", s.handleGetBulletins)
			r.Get("/albums", s.handleGetAlbums)
			r.Get("/albums/{rkey}/photos", s.handleGetAlbumPhotos)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAgent)
			r.Put("/profile", s.handleSaveProfile)
			r.Put("/friends", s.handleSaveFriends)
			r.Post("/comments", s.handlePostComment)
			r.Post("/bulletins", s.handlePostBulletin)
			r.Post("/documents", s.handleCreateDocument)
			r.Patch("/documents/{rkey}", s.handleUpdateDocument)
			r.Delete("/documents/{rkey}", s.handleDeleteDocument)
			r.Post("/albums", s.handleCreateAlbum)
			r.Delete("/albums/{rkey}", s.handleDeleteAlbum)
			r.Post("/albums/{rkey}/photos", s.handleUploadPhoto)
			r.Delete("/photos/{rkey}", s.handleDeletePhoto)
		})
	})

	return r
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

// writeDomainError maps service errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *bluesky.APIError
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, auth.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "AuthRequired", "sign in first")
	case bluesky.IsAuthError(err):
		s.logger.Info("pds session no longer valid", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusUnauthorized, "SessionExpired", "sign in again")
	case errors.Is(err, auth.ErrInvalidHandle):
		writeError(w, http.StatusBadRequest, "InvalidHandle", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", "record not found")
	case errors.Is(err, domain.ErrUnsupportedMedia), errors.Is(err, domain.ErrInvalidBlobRef):
		writeError(w, http.StatusBadRequest, "InvalidMedia", err.Error())
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrRejected), errors.As(err, &apiErr):
		s.logger.Warn("upstream failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "UpstreamError", "repository unavailable")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "something went wrong")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return false
	}
	return true
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
