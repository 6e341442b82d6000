package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// Preset pairs a display label with the value sent to the generation model.
type Preset struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StylePresets lists the supported style modifiers. The first entry is the default selection.
var StylePresets = []Preset{
	{Label: "Photorealistic", Value: "photorealistic, 8k, detailed, professional photography"},
	{Label: "Oil Painting", Value: "oil painting, classic, textured, masterpiece"},
	{Label: "Cyberpunk", Value: "cyberpunk, futuristic, neon lights, dystopian"},
	{Label: "Watercolor", Value: "watercolor, vibrant, soft, blended"},
	{Label: "3D Render", Value: "3d render, octane render, high detail, cinematic"},
	{Label: "Anime", Value: "anime style, vibrant, detailed background"},
	{Label: "Minimalist", Value: "minimalist, clean lines, simple"},
	{Label: "Fantasy Art", Value: "fantasy art, epic, magical, detailed"},
}

// AspectRatios lists the aspect ratio codes accepted by the image model.
var AspectRatios = []Preset{
	{Label: "1:1", Value: "1:1"},
	{Label: "16:9", Value: "16:9"},
	{Label: "9:16", Value: "9:16"},
	{Label: "4:3", Value: "4:3"},
	{Label: "3:4", Value: "3:4"},
}

func DefaultStyle() Preset {
	return StylePresets[0]
}

func DefaultAspectRatio() Preset {
	return AspectRatios[0]
}

// StyleByLabel resolves a preset from its label, ignoring case and surrounding whitespace.
func StyleByLabel(label string) (Preset, bool) {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(label))
	for _, p := range StylePresets {
		if fold.String(p.Label) == want {
			return p, true
		}
	}
	return Preset{}, false
}

// StyleByValue resolves a preset from its modifier text.
func StyleByValue(value string) (Preset, bool) {
	for _, p := range StylePresets {
		if p.Value == value {
			return p, true
		}
	}
	return Preset{}, false
}

func IsAspectRatio(code string) bool {
	for _, p := range AspectRatios {
		if p.Value == code {
			return true
		}
	}
	return false
}

// AspectRatioClass maps a ratio code to the layout hint used by the page renderer.
// Unknown codes render as square.
func AspectRatioClass(code string) string {
	switch code {
	case "16:9":
		return "landscape-wide"
	case "9:16":
		return "portrait-tall"
	case "4:3":
		return "landscape"
	case "3:4":
		return "portrait"
	default:
		return "square"
	}
}

// ComposePrompt joins the user prompt and the style modifier into the text sent to the model.
func ComposePrompt(prompt, modifier string) string {
	prompt = strings.TrimSpace(prompt)
	modifier = strings.TrimSpace(modifier)
	if modifier == "" {
		return prompt
	}
	return prompt + ", " + modifier
}
