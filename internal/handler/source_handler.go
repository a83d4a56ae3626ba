package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/service"
)

// SourceHandler serves the /sources endpoints.
type SourceHandler struct {
	sources *service.SourceService
}

// NewSourceHandler creates a new SourceHandler.
func NewSourceHandler(sources *service.SourceService) *SourceHandler {
	return &SourceHandler{sources: sources}
}

// RegisterRoutes registers the /sources routes.
func (h *SourceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sources", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type sourceRequest struct {
	NotebookID *string `json:"notebook_id"`
	Title      *string `json:"title"`
	URL        *string `json:"url"`
	Content    *string `json:"content"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// List handles GET /sources.
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.sources.List(r.Context(), auth.PrincipalFrom(r.Context()), service.ListSourcesInput{
		ListInput:  in,
		NotebookID: r.URL.Query().Get("notebook_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// Create handles POST /sources.
func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	src, err := h.sources.Create(r.Context(), auth.PrincipalFrom(r.Context()), service.CreateSourceInput{
		NotebookID: deref(req.NotebookID),
		Title:      deref(req.Title),
		URL:        deref(req.URL),
		Content:    deref(req.Content),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

// Get handles GET /sources/{id}.
func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	src, err := h.sources.Get(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// Update handles PUT /sources/{id}.
func (h *SourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	src, err := h.sources.Update(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), service.UpdateSourceInput{
		NotebookID: req.NotebookID,
		Title:      req.Title,
		URL:        req.URL,
		Content:    req.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// Delete handles DELETE /sources/{id}.
func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sources.Delete(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
