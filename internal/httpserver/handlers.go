package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vcraescu/go-paginator"
	"github.com/vcraescu/go-paginator/adapter"

	"github.com/iammatthias/mysky.wtf/internal/domain"
	"github.com/iammatthias/mysky.wtf/internal/render"
)

const (
	documentsPerPage = 10
	documentsScan    = 100
	maxPhotoBytes    = 10 << 20
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	profile, err := s.service.GetMySpaceProfile(r.Context(), did)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.MySpaceProfile
	if !decodeJSON(w, r, &profile) {
		return
	}
	if profile.Mood != "" && !domain.IsMood(profile.Mood) {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "unknown mood")
		return
	}
	if err := s.service.SaveMySpaceProfile(r.Context(), agentFrom(r.Context()), profile); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetComments(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	comments, err := s.service.GetProfileComments(r.Context(), s.optionalAgent(r), did)
	writeJSON(w, http.StatusOK, map[string]any{
		"comments": comments,
		"degraded": err != nil,
	})
}

type postCommentRequest struct {
	TargetDID string `json:"targetDid"`
	Content   string `json:"content"`
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	var req postCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetDID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "targetDid and content are required")
		return
	}
	if err := s.service.PostComment(r.Context(), agentFrom(r.Context()), req.TargetDID, req.Content); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetFriends(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	friends, err := s.service.GetTopFriends(r.Context(), did)

	resp := map[string]any{
		"friends":  friends,
		"degraded": err != nil,
	}
	if agent := s.optionalAgent(r); agent != nil {
		resp["profiles"] = s.service.GetProfiles(r.Context(), agent, friends)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveFriends(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Friends []string `json:"friends"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.service.SaveTopFriends(r.Context(), agentFrom(r.Context()), req.Friends); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type documentPage struct {
	Documents []domain.DocumentRecord `json:"documents"`
	Page      int                     `json:"page"`
	MaxPages  int                     `json:"maxPages"`
	Total     int                     `json:"total"`
	Degraded  bool                    `json:"degraded"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "page must be a positive integer")
			return
		}
		page = parsed
	}

	docs, err := s.service.GetPublishedDocuments(r.Context(), did, documentsScan)
	degraded := err != nil

	var paged []domain.DocumentRecord
	pager := paginator.New(adapter.NewSliceAdapter(docs), documentsPerPage)
	pager.SetPage(page)
	if err := pager.Results(&paged); err != nil {
		s.logger.Error("failed to page documents", "did", did, "page", page, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to page documents")
		return
	}
	if paged == nil {
		paged = []domain.DocumentRecord{}
	}

	writeJSON(w, http.StatusOK, documentPage{
		Documents: paged,
		Page:      pager.Page(),
		MaxPages:  pager.PageNums(),
		Total:     pager.Nums(),
		Degraded:  degraded,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	rkey := chi.URLParam(r, "rkey")

	doc, err := s.service.GetDocument(r.Context(), did, rkey)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"html":     render.DocumentHTML(doc.Value),
	})
}

type documentRequest struct {
	Title       *string            `json:"title"`
	Content     *string            `json:"content"`
	Description *string            `json:"description"`
	Tags        []string           `json:"tags"`
	Visibility  *domain.Visibility `json:"visibility"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil || *req.Title == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "title is required")
		return
	}

	in := domain.DocumentInput{Title: *req.Title, Tags: req.Tags}
	if req.Content != nil {
		in.Content = *req.Content
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Visibility != nil {
		in.Visibility = *req.Visibility
	}

	doc, err := s.service.CreateDocument(r.Context(), agentFrom(r.Context()), in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd := domain.DocumentUpdate{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		Tags:        req.Tags,
		Visibility:  req.Visibility,
	}
	if err := s.service.UpdateDocument(r.Context(), agentFrom(r.Context()), chi.URLParam(r, "rkey"), upd); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.Context(), agentFrom(r.Context()), chi.URLParam(r, "rkey")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBulletins(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	bulletins, err := s.service.GetBulletins(r.Context(), did, 0)
	writeJSON(w, http.StatusOK, map[string]any{
		"bulletins": bulletins,
		"degraded":  err != nil,
	})
}

func (s *Server) handlePostBulletin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "subject is required")
		return
	}
	if err := s.service.PostBulletin(r.Context(), agentFrom(r.Context()), req.Subject, req.Body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetAlbums(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	albums, err := s.service.GetPhotoAlbums(r.Context(), did)
	writeJSON(w, http.StatusOK, map[string]any{
		"albums":   albums,
		"degraded": err != nil,
	})
}

type photoView struct {
	domain.PhotoRecord
	URL string `json:"url"`
}

func (s *Server) handleGetAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	photos, err := s.service.GetAlbumPhotos(r.Context(), did, chi.URLParam(r, "rkey"))

	views := make([]photoView, len(photos))
	for i, p := range photos {
		views[i] = photoView{PhotoRecord: p, URL: domain.PhotoURL(did, p.Value.Image)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"photos":   views,
		"degraded": err != nil,
	})
}

func (s *Server) handleCreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Visibility  domain.Visibility `json:"visibility"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "name is required")
		return
	}

	album, err := s.service.CreatePhotoAlbum(r.Context(), agentFrom(r.Context()), domain.AlbumInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, album)
}

func (s *Server) handleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePhotoAlbum(r.Context(), agentFrom(r.Context()), chi.URLParam(r, "rkey")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadPhoto takes the raw image as the request body; the caption
// comes from the query string.
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BlobTooLarge", "photo exceeds 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, "InvalidRequest", "failed to read photo")
		return
	}

	caption := r.URL.Query().Get("caption")
	photo, err := s.service.UploadPhoto(r.Context(), agentFrom(r.Context()), chi.URLParam(r, "rkey"), data, "", caption, r.URL.Query()["tag"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePhoto(r.Context(), agentFrom(r.Context()), chi.URLParam(r, "rkey")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
