package genai

import (
	"errors"
	"net/http"
	"strings"

	sdk "google.golang.org/genai"
)

// Error kinds surfaced by Generate. Every error returned by the client wraps exactly one of them.
var (
	ErrNoImageProduced   = errors.New("no image produced")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrServiceError      = errors.New("service error")
)

const (
	msgNoImageProduced   = "Image generation was blocked, likely by safety filters. Please modify your prompt and try again."
	msgInvalidCredential = "The provided API key is not valid. Please check your configuration."
	msgServiceError      = "Failed to generate image. Please try again later."
)

// Error carries the error kind plus the underlying cause. The cause is for logs only.
type Error struct {
	Kind  error
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// UserMessage returns the message shown to the user for err. Raw service detail is never included.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoImageProduced):
		return msgNoImageProduced
	case errors.Is(err, ErrInvalidCredential):
		return msgInvalidCredential
	default:
		return msgServiceError
	}
}

// classify maps an SDK or transport error onto one of the error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var known *Error
	if errors.As(err, &known) {
		return known
	}

	var apiErr sdk.APIError
	var apiErrPtr *sdk.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return &Error{Kind: kindFromText(err.Error()), Cause: err}
	}

	if isCredentialFailure(apiErr) {
		return &Error{Kind: ErrInvalidCredential, Cause: err}
	}
	return &Error{Kind: kindFromText(apiErr.Message + " " + apiErr.Status), Cause: err}
}

func isCredentialFailure(apiErr sdk.APIError) bool {
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
	default:
		return false
	}
	text := apiErr.Message + " " + apiErr.Status
	for _, detail := range apiErr.Details {
		if reason, ok := detail["reason"].(string); ok {
			text += " " + reason
		}
	}
	return mentionsInvalidKey(text)
}

func kindFromText(text string) error {
	switch {
	case mentionsInvalidKey(text):
		return ErrInvalidCredential
	case strings.Contains(strings.ToUpper(text), "SAFETY"):
		return ErrNoImageProduced
	default:
		return ErrServiceError
	}
}

func mentionsInvalidKey(text string) bool {
	return strings.Contains(text, "API key not valid") || strings.Contains(text, "API_KEY_INVALID")
}
