// Package zip bundles in-memory files into a single archive.
package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
	Modified time.Time
}

// ArchiveAssets writes every asset into one zip. Images are already
// compressed, so entries are stored rather than deflated. Assets without an
// extension get one derived from their MIME type.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	if len(assets) == 0 {
		return nil, errors.New("zip: no assets")
	}
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]bool, len(assets))
	for _, asset := range assets {
		name := Filename(asset.Filename, asset.MIME)
		if seen[name] {
			return nil, fmt.Errorf("zip: duplicate entry %q", name)
		}
		seen[name] = true

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: asset.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename cleans name into a flat archive entry name and appends an
// extension for mimeType when name has none.
func Filename(name, mimeType string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "asset"
	}
	if path.Ext(name) != "" {
		return name
	}
	switch mimeType {
	case "image/jpeg":
		return name + ".jpeg"
	case "":
		return name
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return name + exts[0]
	}
	return name
}
