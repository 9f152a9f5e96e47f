package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultModel     = "claude-sonnet-4-5-20250929"
	anthropicDefaultMaxTokens = 4096
	// anthropicOverloaded is Anthropic's non-standard "overloaded" status.
	anthropicOverloaded = 529
)

var anthropicThinkingBudgets = map[string]int64{
	"low":    1024,
	"medium": 4096,
	"high":   16384,
}

// AnthropicAdapter connects to the Anthropic Messages API through the official SDK.
type AnthropicAdapter struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func (a *AnthropicAdapter) Name() string {
	return fmt.Sprintf("Anthropic (%s)", a.model())
}

func (a *AnthropicAdapter) Convert(ctx context.Context, req Request) (string, error) {
	if err := validate(ProviderAnthropic, req); err != nil {
		return "", err
	}

	client := anthropic.NewClient(a.options()...)
	msg, err := client.Messages.New(ctx, a.buildParams(req))
	if err != nil {
		return "", anthropicError(err)
	}

	var result strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(result.String())
	if text == "" {
		return "", emptyResponse(ProviderAnthropic)
	}
	return text, nil
}

// options disables SDK retries: one Convert is one round trip.
func (a *AnthropicAdapter) options() []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(a.APIKey),
		option.WithMaxRetries(0),
	}
	if a.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.BaseURL))
	}
	if a.Client != nil {
		opts = append(opts, option.WithHTTPClient(a.Client))
	}
	return opts
}

func (a *AnthropicAdapter) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := int64(positiveOr(req.Sampling.MaxOutputTokens, anthropicDefaultMaxTokens))
	temperature := clampFloat(req.Sampling.Temperature, 0, 1, 0)

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(a.model()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(userText),
				anthropic.NewImageBlockBase64(NormalizeMimeType(req.MimeType), base64.StdEncoding.EncodeToString(req.Image)),
			),
		},
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	// Extended thinking requires temperature 1 and a max_tokens above the budget.
	if budget, ok := anthropicThinkingBudgets[strings.ToLower(req.Sampling.ReasoningEffort)]; ok {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		temperature = 1
		if maxTokens <= budget {
			maxTokens = budget + anthropicDefaultMaxTokens
		}
	}

	params.MaxTokens = maxTokens
	params.Temperature = anthropic.Float(temperature)
	return params
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := classifyStatus(apiErr.StatusCode)
		if apiErr.StatusCode == anthropicOverloaded {
			kind = KindRateLimited
		}
		return &Error{
			Provider:   ProviderAnthropic,
			Kind:       kind,
			StatusCode: apiErr.StatusCode,
			Err:        errors.New(errorMessage(strings.NewReader(apiErr.RawJSON()))),
		}
	}
	return sdkError(ProviderAnthropic, err)
}

func (a *AnthropicAdapter) model() string {
	if a.Model == "" {
		return anthropicDefaultModel
	}
	return a.Model
}
