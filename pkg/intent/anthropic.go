package intent

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-haiku-4-5"
)

// AnthropicRecognizer asks a Claude model to pick a label.
type AnthropicRecognizer struct {
	client  *anthropic.Client
	model   string
	baseURL string
}

func NewAnthropicRecognizer(apiKey, apiBase, model string) *AnthropicRecognizer {
	baseURL := normalizeAnthropicBaseURL(apiBase)
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return NewAnthropicRecognizerWithClient(&client, model, baseURL)
}

func NewAnthropicRecognizerWithClient(client *anthropic.Client, model, baseURL string) *AnthropicRecognizer {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicRecognizer{client: client, model: model, baseURL: baseURL}
}

func (r *AnthropicRecognizer) Recognize(ctx context.Context, text string) (Result, error) {
	resp, err := r.client.Messages.New(ctx, buildAnthropicParams(r.model, text))
	if err != nil {
		return Result{Kind: Unrecognized}, &RecognitionError{Backend: "anthropic", Err: err}
	}

	label := anthropicText(resp)
	if label == "" {
		return Result{Kind: Unrecognized}, &RecognitionError{Backend: "anthropic", Err: errors.New("empty response")}
	}

	kind := ParseLabel(label)
	score := 0.0
	if kind != Unrecognized {
		score = 1
	}
	return Result{Kind: kind, Score: score}, nil
}

func (r *AnthropicRecognizer) BaseURL() string {
	return r.baseURL
}

func buildAnthropicParams(model, text string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 16,
		System: []anthropic.TextBlockParam{
			{Text: classifierPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
		Temperature: anthropic.Float(0),
	}
}

func anthropicText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func normalizeAnthropicBaseURL(apiBase string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		return defaultAnthropicBaseURL
	}

	base = strings.TrimRight(base, "/")
	if b, ok := strings.CutSuffix(base, "/v1"); ok {
		base = b
	}
	if base == "" {
		return defaultAnthropicBaseURL
	}

	return base
}
