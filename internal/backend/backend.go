// Package backend adapts multimodal inference providers to a single conversion capability:
// image bytes, a mime type and instruction text in, markdown text out.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Backend converts one image per call. Implementations perform exactly one network round trip and keep no
// per-call state, so a single value may be shared by concurrent workers.
type Backend interface {
	Name() string
	Convert(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Image        []byte
	MimeType     string
	Instructions string
	Sampling     Sampling
}

// Sampling holds provider-neutral generation parameters. Zero values mean "provider default"; each adapter
// substitutes its own default for values outside the range it accepts.
type Sampling struct {
	Temperature     *float64
	MaxOutputTokens int
	ReasoningEffort string
}

// userText accompanies the image in every request; the instructions travel as the system prompt.
const userText = "Analyze this image containing structured data and create a detailed markdown description."

const defaultMimeType = "image/jpeg"

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var ErrEmptyImage = errors.New("empty image data")

type ErrorKind string

const (
	KindTransport       ErrorKind = "transport"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindAuth            ErrorKind = "auth_error"
)

// Error is returned by every adapter for failures at the provider boundary.
type Error struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a backend error, or "" for errors that did not come from an adapter.
func KindOf(err error) ErrorKind {
	var berr *Error
	if errors.As(err, &berr) {
		return berr.Kind
	}
	return ""
}

// NormalizeMimeType passes allowed image types through and sends everything else as JPEG.
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if allowedMimeTypes[mimeType] {
		return mimeType
	}
	return defaultMimeType
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindTransport
	default:
		return KindInvalidResponse
	}
}

func validate(provider string, req Request) error {
	if len(req.Image) == 0 {
		return fmt.Errorf("%s: %w", provider, ErrEmptyImage)
	}
	return nil
}

// postJSON performs the single round trip shared by the plain HTTP adapters (Mistral, Ollama): marshal
// body, send, classify the status and decode the 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &Error{Provider: provider, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Provider:   provider,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorMessage(resp.Body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{
			Provider:   provider,
			Kind:       KindInvalidResponse,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// sdkError classifies SDK failures that carry no HTTP status: an undecodable 2xx body is an invalid
// response, anything else (network, timeout, cancellation) is transport.
func sdkError(provider string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Provider: provider, Kind: KindInvalidResponse, StatusCode: http.StatusOK, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &Error{Provider: provider, Kind: KindTransport, Err: err}
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "unexpected status"
	}

	var perr providerError
	if err := json.Unmarshal(data, &perr); err == nil {
		if perr.Error.Message != "" {
			return perr.Error.Message
		}
		if perr.Message != "" {
			return perr.Message
		}
	}
	return strings.TrimSpace(string(data))
}

func emptyResponse(provider string) error {
	return &Error{Provider: provider, Kind: KindInvalidResponse, StatusCode: http.StatusOK, Err: errors.New("empty response content")}
}

func clampFloat(v *float64, lo, hi, def float64) float64 {
	if v == nil || *v < lo || *v > hi {
		return def
	}
	return *v
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
