package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryan-buckman/bulletin/internal/database"
	"github.com/bryan-buckman/bulletin/internal/feed"
	"github.com/bryan-buckman/bulletin/internal/model"
)

type commentRequest struct {
	UserID  *int64 `json:"user_id"`
	Name    string `json:"name" validate:"required,max=80"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Content string `json:"content" validate:"required"`
}

func (c *commentRequest) trim() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Content = strings.TrimSpace(c.Content)
}

type feedbackRequest struct {
	Name    string `json:"name" validate:"required,max=80"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Message string `json:"message" validate:"required"`
}

func (f *feedbackRequest) trim() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Message = strings.TrimSpace(f.Message)
}

type articleResponse struct {
	Article  *model.Article  `json:"article"`
	Comments []model.Comment `json:"comments"`
}

// --- Articles ---

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	if s.opts.IngestOnView && s.ingester != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.IngestTimeout)
		report := s.ingester.Ingest(ctx)
		cancel()
		if !report.OK() {
			s.logger.Warn("ingest on view failed, listing stored articles", zap.Error(report.Err))
		}
	}

	page, err := s.store.ListPublished(r.Context(), s.articleQuery(r))
	if err != nil {
		s.internalError(w, r, "Failed to list articles", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) articleQuery(r *http.Request) model.ArticleQuery {
	q := r.URL.Query()
	return model.ArticleQuery{
		Language: strings.TrimSpace(q.Get("language")),
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("q")),
		Page:     atoiDefault(q.Get("page"), 1),
		PerPage:  atoiDefault(q.Get("per_page"), s.opts.PageSize),
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	query := s.articleQuery(r)
	page, err := s.store.ListPublished(r.Context(), query)
	if err != nil {
		s.internalError(w, r, "Failed to list articles", err)
		return
	}
	data, err := feed.Export(feed.Meta{
		Title:       "Bulletin",
		Link:        s.opts.SiteURL,
		Description: "Latest published articles",
		Language:    query.Language,
	}, page.Articles, time.Now())
	if err != nil {
		s.internalError(w, r, "Failed to export", err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "articleID")
	if !ok {
		return
	}
	a, err := s.store.GetArticleByID(r.Context(), id)
	s.writeArticle(w, r, a, err)
}

func (s *Server) handleArticleBySlug(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetArticleBySlug(r.Context(), chi.URLParam(r, "slug"))
	s.writeArticle(w, r, a, err)
}

func (s *Server) writeArticle(w http.ResponseWriter, r *http.Request, a *model.Article, err error) {
	if errors.Is(err, database.ErrNotFound) || (err == nil && a.Status != model.StatusPublished) {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to get article", err)
		return
	}
	comments, err := s.store.GetComments(r.Context(), a.ID, true)
	if err != nil {
		s.internalError(w, r, "Failed to get comments", err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, articleResponse{Article: a, Comments: comments})
}

// --- Comments ---

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	articleID, ok := pathID(w, r, "articleID")
	if !ok {
		return
	}
	a, err := s.store.GetArticleByID(r.Context(), articleID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && a.Status != model.StatusPublished) {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to get article", err)
		return
	}

	var req commentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	c := &model.Comment{
		ArticleID: articleID,
		UserID:    req.UserID,
		Name:      req.Name,
		Email:     req.Email,
		Content:   req.Content,
		Approved:  true,
	}
	id, err := s.store.AddComment(r.Context(), c)
	if err != nil {
		s.internalError(w, r, "Failed to add comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"result": "ok", "comment_id": id})
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	c, err := s.store.GetComment(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to get comment", err)
		return
	}

	var req commentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	c.Name = req.Name
	c.Email = req.Email
	c.Content = req.Content
	if err := s.store.UpdateComment(r.Context(), c); err != nil {
		s.internalError(w, r, "Failed to update comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": "ok", "comment": c})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	articleID, ok := pathID(w, r, "articleID")
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	err := s.store.DeleteComment(r.Context(), articleID, commentID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to delete comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// --- Feedback ---

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	id, err := s.store.AddFeedback(r.Context(), &model.Feedback{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		s.internalError(w, r, "Failed to save feedback", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"result": "ok", "feedback_id": id})
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.GetFeedback(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to list feedback", err)
		return
	}
	if items == nil {
		items = []model.Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feedback": items})
}

// --- Operations ---

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingest is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.IngestTimeout)
	defer cancel()

	report := s.ingester.Ingest(ctx)
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": s.store.DatabaseType()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": s.store.DatabaseType()})
}

// pathID parses a positive integer URL parameter, answering 404 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	return id, true
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
