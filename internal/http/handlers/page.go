package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"imagestudio/internal/studio"
	"imagestudio/internal/view"
)

// Page renders the studio screen for the current view.
func (a *App) Page(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, view.Page(a.Studio.View()))
}

// GenerateForm is the no-script path: apply the submitted form, start a
// generation and send the browser back to the page.
func (a *App) GenerateForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	err := a.Studio.SetForm(r.PostForm.Get("prompt"), r.PostForm.Get("style"), r.PostForm.Get("aspect_ratio"))
	if errors.Is(err, studio.ErrUnknownStyle) || errors.Is(err, studio.ErrUnknownAspectRatio) {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, "failed to update form", http.StatusInternalServerError)
		return
	}
	// A blank prompt or a running generation leaves the page as it is.
	a.Studio.Start(a.ctx)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) SelectHistoryForm(w http.ResponseWriter, r *http.Request) {
	if !a.Studio.SelectHistory(chi.URLParam(r, "id")) {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// render buffers the component so a failed render still yields a clean 500.
func (a *App) render(w http.ResponseWriter, r *http.Request, code int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("templ: failed to render component")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
