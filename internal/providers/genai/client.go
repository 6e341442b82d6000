package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "google.golang.org/genai"

	"imagestudio/internal/infra"
)

const (
	DefaultModel = "imagen-4.0-generate-001"

	outputMIMEType = "image/jpeg"
)

// ImageModel is the slice of the genai SDK the client depends on. *genai.Models satisfies it.
type ImageModel interface {
	GenerateImages(ctx context.Context, model, prompt string, config *sdk.GenerateImagesConfig) (*sdk.GenerateImagesResponse, error)
}

// Options controls how the image client is configured.
type Options struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger

	// Models overrides the SDK client. Used by tests.
	Models ImageModel
}

// Client issues single-image generation requests against Imagen.
type Client struct {
	models ImageModel
	model  string
	logger *infra.Logger
}

// Result is the payload of one successful generation.
type Result struct {
	ImageBytes []byte
	MIMEType   string
}

// NewClient builds the client. An API key is mandatory unless Models is injected.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	models := opts.Models
	if models == nil {
		apiKey := strings.TrimSpace(opts.APIKey)
		if apiKey == "" {
			return nil, errors.New("genai: api key is required")
		}
		sdkClient, err := sdk.NewClient(ctx, &sdk.ClientConfig{
			APIKey:     apiKey,
			Backend:    sdk.BackendGeminiAPI,
			HTTPClient: opts.HTTPClient,
		})
		if err != nil {
			return nil, fmt.Errorf("genai: create client: %w", err)
		}
		models = sdkClient.Models
	}

	return &Client{models: models, model: model, logger: logger}, nil
}

// Model returns the configured Imagen model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate requests exactly one image for prompt at the given aspect ratio.
// Errors are always *Error values wrapping ErrNoImageProduced, ErrInvalidCredential or ErrServiceError.
func (c *Client) Generate(ctx context.Context, prompt, aspectRatio string) (*Result, error) {
	resp, err := c.models.GenerateImages(ctx, c.model, prompt, &sdk.GenerateImagesConfig{
		NumberOfImages:   1,
		OutputMIMEType:   outputMIMEType,
		AspectRatio:      aspectRatio,
		IncludeRAIReason: true,
	})
	if err != nil {
		classified := classify(err)
		c.logger.Error().
			Err(err).
			Str("model", c.model).
			Str("aspect_ratio", aspectRatio).
			Str("kind", kindName(classified)).
			Msg("genai: image generation failed")
		return nil, classified
	}

	result, reason := firstImage(resp)
	if result == nil {
		c.logger.Warn().
			Str("model", c.model).
			Str("rai_reason", reason).
			Msg("genai: response contained no image")
		return nil, &Error{Kind: ErrNoImageProduced, Cause: noImageCause(reason)}
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("aspect_ratio", aspectRatio).
		Int("bytes", len(result.ImageBytes)).
		Msg("genai: generated image")
	return result, nil
}

func firstImage(resp *sdk.GenerateImagesResponse) (*Result, string) {
	if resp == nil {
		return nil, ""
	}
	var reason string
	for _, generated := range resp.GeneratedImages {
		if generated == nil {
			continue
		}
		if generated.RAIFilteredReason != "" && reason == "" {
			reason = generated.RAIFilteredReason
		}
		if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			continue
		}
		mime := generated.Image.MIMEType
		if mime == "" {
			mime = outputMIMEType
		}
		return &Result{ImageBytes: generated.Image.ImageBytes, MIMEType: mime}, ""
	}
	return nil, reason
}

func noImageCause(reason string) error {
	if reason == "" {
		return errors.New("empty response")
	}
	return fmt.Errorf("filtered: %s", reason)
}

func kindName(err error) string {
	switch {
	case errors.Is(err, ErrNoImageProduced):
		return "no_image"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	default:
		return "service_error"
	}
}
