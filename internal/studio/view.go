package studio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"imagestudio/internal/history"
)

// Status is the controller's lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// View is a point-in-time snapshot of everything a front end renders.
type View struct {
	Prompt       string          `json:"prompt"`
	Style        string          `json:"style"`
	AspectRatio  string          `json:"aspect_ratio"`
	Status       Status          `json:"status"`
	Error        string          `json:"error,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	DownloadName string          `json:"download_name,omitempty"`
	History      []history.Entry `json:"history"`
	CanGenerate  bool            `json:"can_generate"`
}

// HasImage reports whether an image should be displayed.
func (v View) HasImage() bool {
	return v.ImageURL != "" && v.Status != StatusGenerating && v.Error == ""
}

var errNotDataURL = errors.New("studio: not a base64 data url")

// EncodeDataURL builds the inline reference used for display and history.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses EncodeDataURL.
func DecodeDataURL(url string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, "", errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errNotDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", errNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("studio: decode image payload: %w", err)
	}
	return data, mime, nil
}
