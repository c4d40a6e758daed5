package intent

import (
	"context"
	"regexp"
)

type keywordRule struct {
	kind    Kind
	pattern *regexp.Regexp
}

// Rules are ordered: "unlatch" must win over "latch", and "latch them
// open" over "open".
var keywordRules = []keywordRule{
	{CheckBalance, regexp.MustCompile(`(?i)\b(balance|credit|top ?up)\b`)},
	{CloseGates, regexp.MustCompile(`(?i)\b(unlatch\w*|close\w*|shut\w*)\b`)},
	{LatchGates, regexp.MustCompile(`(?i)\b(latch\w*|hold\w* open|keep\w* open)\b`)},
	{OpenGates, regexp.MustCompile(`(?i)\b(open\w*|let .+ in)\b`)},
}

// KeywordRecognizer matches a fixed vocabulary. It needs no network and is
// the default backend.
type KeywordRecognizer struct{}

func NewKeywordRecognizer() *KeywordRecognizer {
	return &KeywordRecognizer{}
}

func (r *KeywordRecognizer) Recognize(_ context.Context, text string) (Result, error) {
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(text) {
			return Result{Kind: rule.kind, Score: 1}, nil
		}
	}
	return Result{Kind: Unrecognized}, nil
}
