package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	geminiAPIVersion           = "v1beta"
	geminiDefaultModel         = "gemini-3-flash-preview"
	geminiDefaultTemperature   = 1.0
	geminiDefaultThinkingLevel = "HIGH"
)

var geminiThinkingLevels = map[string]bool{
	"MINIMAL": true,
	"LOW":     true,
	"MEDIUM":  true,
	"HIGH":    true,
}

// GeminiAdapter connects to the Gemini API through the Google Gen AI SDK.
type GeminiAdapter struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func (g *GeminiAdapter) Name() string {
	return fmt.Sprintf("Gemini (%s)", g.model())
}

func (g *GeminiAdapter) Convert(ctx context.Context, req Request) (string, error) {
	if err := validate(ProviderGemini, req); err != nil {
		return "", err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.Client,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.BaseURL, APIVersion: geminiAPIVersion},
	})
	if err != nil {
		return "", fmt.Errorf("%s: create client: %w", ProviderGemini, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(userText),
			genai.NewPartFromBytes(req.Image, NormalizeMimeType(req.MimeType)),
		}, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, g.model(), contents, g.buildConfig(req))
	if err != nil {
		return "", geminiError(err)
	}

	var result strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && !p.Thought {
				result.WriteString(p.Text)
			}
		}
		if result.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(result.String())
	if text == "" {
		return "", emptyResponse(ProviderGemini)
	}
	return text, nil
}

func (g *GeminiAdapter) buildConfig(req Request) *genai.GenerateContentConfig {
	level := strings.ToUpper(strings.TrimSpace(req.Sampling.ReasoningEffort))
	if !geminiThinkingLevels[level] {
		level = geminiDefaultThinkingLevel
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(clampFloat(req.Sampling.Temperature, 0, 2, geminiDefaultTemperature))),
		MaxOutputTokens: int32(positiveOr(req.Sampling.MaxOutputTokens, 0)),
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingLevel: genai.ThinkingLevel(level)},
	}
	if req.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	return config
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiStatusError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return geminiStatusError(*apiErrPtr)
	}
	return sdkError(ProviderGemini, err)
}

func geminiStatusError(apiErr genai.APIError) error {
	msg := apiErr.Message
	if msg == "" {
		msg = "unexpected status"
	}
	return &Error{
		Provider:   ProviderGemini,
		Kind:       classifyStatus(apiErr.Code),
		StatusCode: apiErr.Code,
		Err:        errors.New(msg),
	}
}

func (g *GeminiAdapter) model() string {
	if g.Model == "" {
		return geminiDefaultModel
	}
	return g.Model
}
