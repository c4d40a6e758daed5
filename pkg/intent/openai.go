package intent

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIRecognizer asks an OpenAI-compatible chat completion endpoint to
// pick a label.
type OpenAIRecognizer struct {
	client openai.Client
	model  string
}

func NewOpenAIRecognizer(apiKey, apiBase, model string) *OpenAIRecognizer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIRecognizer{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (r *OpenAIRecognizer) Recognize(ctx context.Context, text string) (Result, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierPrompt),
			openai.UserMessage(text),
		},
		MaxCompletionTokens: openai.Int(16),
		Temperature:         openai.Float(0),
	})
	if err != nil {
		return Result{Kind: Unrecognized}, &RecognitionError{Backend: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return Result{Kind: Unrecognized}, &RecognitionError{Backend: "openai", Err: errors.New("no choices returned")}
	}

	kind := ParseLabel(strings.TrimSpace(resp.Choices[0].Message.Content))
	score := 0.0
	if kind != Unrecognized {
		score = 1
	}
	return Result{Kind: kind, Score: score}, nil
}
