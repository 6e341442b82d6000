package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"imagestudio/internal/history"
	"imagestudio/internal/studio"
	"imagestudio/pkg/zip"
)

// Image serves the displayed image as an attachment.
func (a *App) Image(w http.ResponseWriter, r *http.Request) {
	v := a.Studio.View()
	if !v.HasImage() {
		a.error(w, http.StatusNotFound, "not_found", "no image to download")
		return
	}
	data, mimeType, err := studio.DecodeDataURL(v.ImageURL)
	if err != nil {
		a.Logger.Error().Err(err).Msg("download: undecodable image reference")
		a.error(w, http.StatusInternalServerError, "internal", "image unavailable")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": v.DownloadName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HistoryArchive bundles every history image into one zip, newest first.
func (a *App) HistoryArchive(w http.ResponseWriter, r *http.Request) {
	entries := a.Studio.View().History
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "history is empty")
		return
	}
	assets := make([]zip.Asset, 0, len(entries))
	for i, e := range entries {
		data, mimeType, err := studio.DecodeDataURL(e.ImageURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("id", e.ID).Msg("download: skipping undecodable history entry")
			continue
		}
		modified, ok := history.CreatedAt(e.ID)
		if !ok {
			modified = time.Now()
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("imagen-ai-%d", i+1),
			MIME:     mimeType,
			Data:     data,
			Modified: modified,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Msg("download: archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "imagen-ai-history.zip"}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
