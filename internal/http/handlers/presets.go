package handlers

import (
	"net/http"

	"imagestudio/internal/catalog"
)

type presetsResponse struct {
	Styles             []catalog.Preset `json:"styles"`
	AspectRatios       []catalog.Preset `json:"aspect_ratios"`
	DefaultStyle       string           `json:"default_style"`
	DefaultAspectRatio string           `json:"default_aspect_ratio"`
}

func (a *App) Presets(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, presetsResponse{
		Styles:             catalog.StylePresets,
		AspectRatios:       catalog.AspectRatios,
		DefaultStyle:       catalog.DefaultStyle().Value,
		DefaultAspectRatio: catalog.DefaultAspectRatio().Value,
	})
}
