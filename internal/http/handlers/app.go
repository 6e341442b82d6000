package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"imagestudio/internal/infra"
	"imagestudio/internal/studio"
)

// App carries the dependencies shared by every handler.
type App struct {
	Config *infra.Config
	Logger *infra.Logger
	Studio *studio.Controller

	// ctx outlives individual requests; generations started over HTTP and
	// live view connections stop when it is cancelled.
	ctx context.Context
}

func NewApp(ctx context.Context, cfg *infra.Config, logger *infra.Logger, ctrl *studio.Controller) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Config: cfg, Logger: logger, Studio: ctrl, ctx: ctx}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}
