package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	ollamaDefaultBaseURL     = "http://localhost:11434"
	ollamaDefaultModel       = "qwen2.5vl:7b"
	ollamaDefaultTemperature = 0.8
)

// OllamaAdapter connects to a local Ollama instance via /api/chat.
type OllamaAdapter struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Think    bool            `json:"think,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

func (o *OllamaAdapter) Name() string {
	return fmt.Sprintf("Ollama (%s)", o.model())
}

func (o *OllamaAdapter) Convert(ctx context.Context, req Request) (string, error) {
	if err := validate(ProviderOllama, req); err != nil {
		return "", err
	}

	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/api/chat"

	var resp ollamaChatResponse
	if err := postJSON(ctx, o.Client, ProviderOllama, url, nil, o.buildRequest(req), &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", emptyResponse(ProviderOllama)
	}
	return text, nil
}

// buildRequest drops the mime type: Ollama sniffs the format from the bytes.
func (o *OllamaAdapter) buildRequest(req Request) ollamaChatRequest {
	messages := make([]ollamaMessage, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, ollamaMessage{
		Role:    "user",
		Content: userText,
		Images:  []string{base64.StdEncoding.EncodeToString(req.Image)},
	})

	effort := strings.ToLower(strings.TrimSpace(req.Sampling.ReasoningEffort))
	return ollamaChatRequest{
		Model:    o.model(),
		Messages: messages,
		Stream:   false,
		Think:    effort != "" && effort != "none",
		Options: ollamaOptions{
			Temperature: clampFloat(req.Sampling.Temperature, 0, 2, ollamaDefaultTemperature),
			NumPredict:  positiveOr(req.Sampling.MaxOutputTokens, 0),
		},
	}
}

func (o *OllamaAdapter) model() string {
	if o.Model == "" {
		return ollamaDefaultModel
	}
	return o.Model
}
