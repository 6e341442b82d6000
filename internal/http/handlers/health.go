package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if a.Config != nil {
		resp["model"] = a.Config.ImagenModel
		resp["history_backend"] = a.Config.HistoryBackend
	}
	a.json(w, http.StatusOK, resp)
}
