package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const (
	mistralDefaultBaseURL   = "https://api.mistral.ai"
	mistralDefaultModel     = "pixtral-large-latest"
	mistralDefaultMaxTokens = 4096
)

// MistralAdapter connects to the Mistral chat completions API. Pixtral models take the image as a data URI.
type MistralAdapter struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
	Logger  *slog.Logger
}

type mistralContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type mistralChatRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
}

type mistralChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type mistralChatResponse struct {
	Choices []mistralChoice `json:"choices"`
}

func (m *MistralAdapter) Name() string {
	return fmt.Sprintf("Mistral (%s)", m.model())
}

func (m *MistralAdapter) Convert(ctx context.Context, req Request) (string, error) {
	if err := validate(ProviderMistral, req); err != nil {
		return "", err
	}

	if effort := strings.ToLower(req.Sampling.ReasoningEffort); effort != "" && effort != "none" {
		m.logger().Debug("reasoning effort not supported, ignored", "backend", ProviderMistral, "effort", req.Sampling.ReasoningEffort)
	}

	body := m.buildRequest(req)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.APIKey)

	baseURL := m.BaseURL
	if baseURL == "" {
		baseURL = mistralDefaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/v1/chat/completions"

	var resp mistralChatResponse
	if err := postJSON(ctx, m.Client, ProviderMistral, url, header, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", emptyResponse(ProviderMistral)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", emptyResponse(ProviderMistral)
	}
	return text, nil
}

// buildRequest ignores ReasoningEffort; the vision models expose no such parameter.
func (m *MistralAdapter) buildRequest(req Request) mistralChatRequest {
	dataURI := "data:" + NormalizeMimeType(req.MimeType) + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	messages := make([]mistralMessage, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, mistralMessage{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, mistralMessage{
		Role: "user",
		Content: []mistralContentPart{
			{Type: "text", Text: userText},
			{Type: "image_url", ImageURL: dataURI},
		},
	})

	return mistralChatRequest{
		Model:       m.model(),
		Messages:    messages,
		MaxTokens:   positiveOr(req.Sampling.MaxOutputTokens, mistralDefaultMaxTokens),
		Temperature: clampFloat(req.Sampling.Temperature, 0, 1.5, 0),
	}
}

func (m *MistralAdapter) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *MistralAdapter) model() string {
	if m.Model == "" {
		return mistralDefaultModel
	}
	return m.Model
}
