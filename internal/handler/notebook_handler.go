package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/service"
)

// NotebookHandler serves the /notebooks endpoints.
type NotebookHandler struct {
	notebooks *service.NotebookService
	sources   *service.SourceService
}

// NewNotebookHandler creates a new NotebookHandler.
func NewNotebookHandler(notebooks *service.NotebookService, sources *service.SourceService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks, sources: sources}
}

// RegisterRoutes registers the /notebooks routes.
func (h *NotebookHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notebooks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/sources/{sourceID}", h.AddSource)
		r.Delete("/{id}/sources/{sourceID}", h.RemoveSource)
	})
}

type notebookRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

// List handles GET /notebooks.
func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	input := service.ListNotebooksInput{ListInput: in}
	if v := r.URL.Query().Get("archived"); v != "" {
		archived, err := boolParam(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		input.Archived = &archived
	}

	items, err := h.notebooks.List(r.Context(), auth.PrincipalFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// Create handles POST /notebooks.
func (h *NotebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notebookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := service.CreateNotebookInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = *req.Description
	}

	nb, err := h.notebooks.Create(r.Context(), auth.PrincipalFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

// Get handles GET /notebooks/{id}.
func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	nb, err := h.notebooks.Get(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// Update handles PUT /notebooks/{id}.
func (h *NotebookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req notebookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	nb, err := h.notebooks.Update(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), service.UpdateNotebookInput{
		Name:        req.Name,
		Description: req.Description,
		Archived:    req.Archived,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// Delete handles DELETE /notebooks/{id}.
func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notebooks.Delete(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSource handles POST /notebooks/{id}/sources/{sourceID}.
func (h *NotebookHandler) AddSource(w http.ResponseWriter, r *http.Request) {
	err := h.sources.AddToNotebook(r.Context(), auth.PrincipalFrom(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "sourceID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "source linked to notebook"})
}

// RemoveSource handles DELETE /notebooks/{id}/sources/{sourceID}.
func (h *NotebookHandler) RemoveSource(w http.ResponseWriter, r *http.Request) {
	err := h.sources.RemoveFromNotebook(r.Context(), auth.PrincipalFrom(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "sourceID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "source removed from notebook"})
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
