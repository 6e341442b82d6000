// Package view renders the studio page. Components are built on the templ
// runtime directly so the page needs no generate step.
package view

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"imagestudio/internal/catalog"
	"imagestudio/internal/history"
	"imagestudio/internal/studio"
)

// Page is the whole studio screen for one view snapshot.
func Page(v studio.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>Imagen AI</title></head>`)
		p.raw(`<body data-status="`).text(string(v.Status)).raw(`">`)
		p.raw(`<header><h1>Imagen AI</h1></header><main>`)
		if p.err != nil {
			return p.err
		}
		for _, c := range []templ.Component{Controls(v), Result(v), HistoryGrid(v.History)} {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		p.raw(`</main>`).raw(liveScript).raw(`</body></html>`)
		return p.err
	})
}

// Controls is the prompt form with style and aspect-ratio selection.
func Controls(v studio.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<form id="controls" method="post" action="/generate">`)

		p.raw(`<section><h2>1. Describe your image</h2>`)
		p.raw(`<textarea name="prompt" placeholder="e.g., A hyper-detailed 8K photograph of a futuristic city at sunset">`)
		p.text(v.Prompt).raw(`</textarea></section>`)

		p.raw(`<section><h2>2. Configure style</h2>`)
		p.raw(`<label for="style-preset">Style Preset</label><select id="style-preset" name="style">`)
		for _, preset := range catalog.StylePresets {
			p.raw(`<option value="`).text(preset.Value).raw(`"`)
			if preset.Value == v.Style {
				p.raw(` selected`)
			}
			p.raw(`>`).text(preset.Label).raw(`</option>`)
		}
		p.raw(`</select>`)

		p.raw(`<fieldset class="aspect-ratios"><legend>Aspect Ratio</legend>`)
		for _, ratio := range catalog.AspectRatios {
			p.raw(`<label class="ratio`)
			if ratio.Value == v.AspectRatio {
				p.raw(` active`)
			}
			p.raw(`"><input type="radio" name="aspect_ratio" value="`).text(ratio.Value).raw(`"`)
			if ratio.Value == v.AspectRatio {
				p.raw(` checked`)
			}
			p.raw(`>`).text(ratio.Label).raw(`</label>`)
		}
		p.raw(`</fieldset></section>`)

		p.raw(`<button type="submit"`)
		if v.Status == studio.StatusGenerating {
			p.raw(` disabled>Generating...`)
		} else {
			p.raw(`>Generate Image`)
		}
		p.raw(`</button></form>`)
		return p.err
	})
}

// Result is the image area: spinner text, failure, image or placeholder.
func Result(v studio.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<section id="result" class="`).text(catalog.AspectRatioClass(v.AspectRatio)).raw(`">`)
		switch {
		case v.Status == studio.StatusGenerating:
			p.raw(`<p class="spinner" role="status">Generating...</p>`)
		case v.Error != "":
			p.raw(`<div class="failure"><p><strong>Generation Failed</strong></p><p>`).text(v.Error).raw(`</p></div>`)
		case v.ImageURL != "":
			p.raw(`<img src="`).url(v.ImageURL).raw(`" alt="`).text(v.Prompt).raw(`">`)
		default:
			p.raw(`<div class="placeholder"><p>Your generated image will appear here.</p>`)
			p.raw(`<p>Enter a prompt and click &#34;Generate Image&#34; to start.</p></div>`)
		}
		p.raw(`</section>`)
		if v.HasImage() {
			p.raw(`<a class="download" href="/v1/image" download="`).text(v.DownloadName).raw(`">Download High-Res Image</a>`)
		}
		return p.err
	})
}

// HistoryGrid lists past generations; each tile selects its entry. Nothing
// renders for an empty log.
func HistoryGrid(entries []history.Entry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(entries) == 0 {
			return nil
		}
		p := &printer{w: w}
		p.raw(`<section id="history"><h2>Generation History</h2><div class="grid">`)
		for _, e := range entries {
			p.raw(`<form method="post" action="`).url(SelectPath(e.ID)).raw(`">`)
			p.raw(`<button type="submit" title="`).text(e.Prompt).raw(`">`)
			p.raw(`<img class="`).text(catalog.AspectRatioClass(e.AspectRatio)).raw(`" src="`).url(e.ImageURL).raw(`" alt="`).text(e.Prompt).raw(`">`)
			p.raw(`<span>`).text(e.Prompt).raw(`</span></button></form>`)
		}
		p.raw(`</div><p><a href="/v1/history/archive">Download all as zip</a></p></section>`)
		return p.err
	})
}

// SelectPath is the form action that selects history entry id.
func SelectPath(id string) string {
	return "/history/" + url.PathEscape(id) + "/select"
}

// liveScript reloads the page when the server reports a different status,
// which is how a finished generation shows up without polling.
const liveScript = `<script>
(function () {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(scheme + location.host + "/v1/ws");
  ws.onmessage = function (ev) {
    var view = JSON.parse(ev.data);
    if (view.status !== document.body.dataset.status) { location.reload(); }
  };
})();
</script>`

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) *printer {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
	return p
}

func (p *printer) text(s string) *printer {
	return p.raw(templ.EscapeString(s))
}

// url writes an attribute URL. Only image data URLs and same-origin paths
// are written; anything else becomes templ's invalid URL.
func (p *printer) url(s string) *printer {
	if !allowedURL(s) {
		s = "about:invalid#templ"
	}
	return p.raw(templ.EscapeString(string(templ.SafeURL(s))))
}

func allowedURL(s string) bool {
	if strings.HasPrefix(strings.ToLower(s), "data:image/") {
		return true
	}
	return strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") && !strings.HasPrefix(s, "/\\")
}
