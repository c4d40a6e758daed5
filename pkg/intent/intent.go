// Package intent maps a free-text chat turn to one of the gate operations.
//
// Classification itself is delegated: KeywordRecognizer works offline,
// AnthropicRecognizer and OpenAIRecognizer ask a hosted model for a label.
// Whatever the backend, the result is one of a closed set of kinds.
package intent

import (
	"context"
	"fmt"
	"strings"
)

type Kind int

const (
	Unrecognized Kind = iota
	CheckBalance
	OpenGates
	CloseGates
	LatchGates
)

var kindLabels = map[Kind]string{
	Unrecognized: "None",
	CheckBalance: "CheckBalance",
	OpenGates:    "OpenGates",
	CloseGates:   "CloseGates",
	LatchGates:   "LatchGates",
}

func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return "None"
}

// Labels lists every label a recognizer may return, in prompt order.
func Labels() []string {
	return []string{"CheckBalance", "OpenGates", "CloseGates", "LatchGates", "None"}
}

// ParseLabel maps a recognizer label to a Kind. Matching ignores case,
// surrounding whitespace and punctuation; anything else is Unrecognized.
func ParseLabel(label string) Kind {
	cleaned := strings.Trim(strings.TrimSpace(label), `."'`+"`")
	for k, l := range kindLabels {
		if strings.EqualFold(cleaned, l) {
			return k
		}
	}
	return Unrecognized
}

// Result is the top-ranked intent for an utterance.
type Result struct {
	Kind  Kind
	Score float64
}

// Recognizer classifies an utterance.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (Result, error)
}

// RecognitionError wraps a backend failure. Callers treat it as
// Unrecognized.
type RecognitionError struct {
	Backend string
	Err     error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognizer: %v", e.Backend, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

const classifierPrompt = `You classify requests sent to a gate intercom bot.
Reply with exactly one label and nothing else:
CheckBalance - the user wants the SIM credit balance
OpenGates - the user wants the gates opened briefly
CloseGates - the user wants the gates closed or unlatched
LatchGates - the user wants the gates latched or held open
None - anything else`
