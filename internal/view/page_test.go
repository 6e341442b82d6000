package view

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"imagestudio/internal/catalog"
	"imagestudio/internal/history"
	"imagestudio/internal/studio"
)

func render(t *testing.T, v studio.View) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Page(v).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	return buf.String()
}

func baseView() studio.View {
	return studio.View{
		Style:       catalog.DefaultStyle().Value,
		AspectRatio: catalog.DefaultAspectRatio().Value,
		Status:      studio.StatusIdle,
	}
}

func TestPageIdleShowsPlaceholder(t *testing.T) {
	html := render(t, baseView())

	for _, want := range []string{
		"Your generated image will appear here.",
		`<option value="photorealistic, 8k, detailed, professional photography" selected>Photorealistic</option>`,
		`value="1:1" checked`,
		"Generate Image",
		`<section id="result" class="square">`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if strings.Contains(html, "Generation History") {
		t.Fatalf("history section must not render for an empty log")
	}
	if strings.Contains(html, "Download High-Res Image") {
		t.Fatalf("download link must not render without an image")
	}
}

func TestPageStates(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*studio.View)
		want    []string
		notWant []string
	}{
		{
			name:    "generating",
			mutate:  func(v *studio.View) { v.Status = studio.StatusGenerating },
			want:    []string{`role="status">Generating...`, "disabled"},
			notWant: []string{"Your generated image will appear here."},
		},
		{
			name: "failed",
			mutate: func(v *studio.View) {
				v.Status = studio.StatusFailed
				v.Error = "Failed to generate image. Please try again later."
			},
			want:    []string{"Generation Failed", "Failed to generate image. Please try again later."},
			notWant: []string{"Download High-Res Image"},
		},
		{
			name: "succeeded",
			mutate: func(v *studio.View) {
				v.Status = studio.StatusSucceeded
				v.Prompt = "a red fox"
				v.ImageURL = "data:image/jpeg;base64,/9j/"
				v.DownloadName = "imagen-ai-1700000000000.jpeg"
			},
			want: []string{
				`<img src="data:image/jpeg;base64,/9j/" alt="a red fox">`,
				`download="imagen-ai-1700000000000.jpeg"`,
				"Download High-Res Image",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := baseView()
			tc.mutate(&v)
			html := render(t, v)
			for _, want := range tc.want {
				if !strings.Contains(html, want) {
					t.Fatalf("page missing %q", want)
				}
			}
			for _, notWant := range tc.notWant {
				if strings.Contains(html, notWant) {
					t.Fatalf("page unexpectedly contains %q", notWant)
				}
			}
		})
	}
}

func TestPageEscapesUserText(t *testing.T) {
	v := baseView()
	v.Prompt = `<script>alert("x")</script>`
	html := render(t, v)
	if strings.Contains(html, `<script>alert("x")</script>`) {
		t.Fatalf("prompt was not escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Fatalf("escaped prompt missing")
	}
}

func TestHistoryGridLinksEntries(t *testing.T) {
	v := baseView()
	v.History = []history.Entry{{
		ID:          "2025-01-01T00:00:00.5Z",
		Prompt:      "lighthouse",
		AspectRatio: "16:9",
		ImageURL:    "data:image/jpeg;base64,AA==",
	}}
	html := render(t, v)
	for _, want := range []string{
		"Generation History",
		`action="/history/2025-01-01T00:00:00.5Z/select"`,
		`class="landscape-wide"`,
		"/v1/history/archive",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestURLFiltersSchemes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "javascript:alert(1)", want: "about:invalid#templ"},
		{in: "JavaScript:alert(1)", want: "about:invalid#templ"},
		{in: " jAvAsCrIpT:alert(1)", want: "about:invalid#templ"},
		{in: "https://evil.example.com/x.jpeg", want: "about:invalid#templ"},
		{in: "//evil.example.com/x.jpeg", want: "about:invalid#templ"},
		{in: "data:text/html;base64,PHNjcmlwdD4=", want: "about:invalid#templ"},
		{in: "data:image/jpeg;base64,AA==", want: "data:image/jpeg;base64,AA=="},
		{in: "DATA:image/jpeg;base64,AA==", want: "DATA:image/jpeg;base64,AA=="},
		{in: "/history/x/select", want: "/history/x/select"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		p := &printer{w: &buf}
		p.url(tc.in)
		if buf.String() != tc.want {
			t.Fatalf("url(%q) wrote %q, want %q", tc.in, buf.String(), tc.want)
		}
	}
}
