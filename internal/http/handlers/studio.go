package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/studio"
)

const maxFormBody = 64 << 10

// formRequest is a partial form update. Absent fields keep their current value.
type formRequest struct {
	Prompt      *string `json:"prompt"`
	Style       *string `json:"style"`
	AspectRatio *string `json:"aspect_ratio"`
}

func (a *App) State(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Studio.View())
}

func (a *App) UpdateForm(w http.ResponseWriter, r *http.Request) {
	req, err := decodeForm(r)
	if err != nil || req == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !a.applyForm(w, *req) {
		return
	}
	a.json(w, http.StatusOK, a.Studio.View())
}

// Generate starts a generation and answers immediately; the outcome arrives
// through /v1/state or /v1/ws. A body, when present, updates the form first.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeForm(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req != nil && !a.applyForm(w, *req) {
		return
	}

	switch err := a.Studio.TryStart(a.ctx); {
	case errors.Is(err, studio.ErrBlankPrompt):
		a.error(w, http.StatusUnprocessableEntity, "validation", "prompt is required")
		return
	case errors.Is(err, studio.ErrInFlight):
		a.error(w, http.StatusConflict, "in_flight", "a generation is already running")
		return
	}
	a.json(w, http.StatusAccepted, a.Studio.View())
}

func (a *App) SelectHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Studio.SelectHistory(id) {
		a.error(w, http.StatusNotFound, "not_found", "history entry not found")
		return
	}
	a.json(w, http.StatusOK, a.Studio.View())
}

// decodeForm returns nil, nil for an empty body.
func decodeForm(r *http.Request) (*formRequest, error) {
	if r.Body == nil {
		return nil, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFormBody))
	dec.DisallowUnknownFields()
	var req formRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (a *App) applyForm(w http.ResponseWriter, req formRequest) bool {
	current := a.Studio.View()
	prompt, style, aspect := current.Prompt, current.Style, current.AspectRatio
	if req.Prompt != nil {
		prompt = *req.Prompt
	}
	if req.Style != nil {
		style = *req.Style
	}
	if req.AspectRatio != nil {
		aspect = *req.AspectRatio
	}
	if err := a.Studio.SetForm(prompt, style, aspect); err != nil {
		switch {
		case errors.Is(err, studio.ErrUnknownStyle):
			a.error(w, http.StatusUnprocessableEntity, "validation", "unknown style preset")
		case errors.Is(err, studio.ErrUnknownAspectRatio):
			a.error(w, http.StatusUnprocessableEntity, "validation", "unknown aspect ratio")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to update form")
		}
		return false
	}
	return true
}
