package intent

import (
	"fmt"

	"github.com/tinyland-inc/gateclaw/pkg/config"
)

// NewFromConfig builds the configured recognizer.
func NewFromConfig(cfg config.RecognizerConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "", "keyword":
		return NewKeywordRecognizer(), nil
	case "anthropic":
		return NewAnthropicRecognizer(cfg.APIKey, cfg.APIBase, cfg.Model), nil
	case "openai":
		return NewOpenAIRecognizer(cfg.APIKey, cfg.APIBase, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", cfg.Provider)
	}
}
