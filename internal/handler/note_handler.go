package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/service"
)

// NoteHandler serves the /notes endpoints.
type NoteHandler struct {
	notes *service.NoteService
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// RegisterRoutes registers the /notes routes.
func (h *NoteHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type noteRequest struct {
	NotebookID *string          `json:"notebook_id"`
	Title      *string          `json:"title"`
	Content    *string          `json:"content"`
	NoteType   *domain.NoteType `json:"note_type"`
}

// List handles GET /notes.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.notes.List(r.Context(), auth.PrincipalFrom(r.Context()), service.ListNotesInput{
		ListInput:  in,
		NotebookID: r.URL.Query().Get("notebook_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// Create handles POST /notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := service.CreateNoteInput{
		NotebookID: deref(req.NotebookID),
		Title:      deref(req.Title),
		Content:    deref(req.Content),
	}
	if req.NoteType != nil {
		input.NoteType = *req.NoteType
	}

	note, err := h.notes.Create(r.Context(), auth.PrincipalFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// Get handles GET /notes/{id}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Get(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Update handles PUT /notes/{id}.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notes.Update(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), service.UpdateNoteInput{
		Title:    req.Title,
		Content:  req.Content,
		NoteType: req.NoteType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Delete handles DELETE /notes/{id}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
