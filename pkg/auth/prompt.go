// Package auth collects credentials from the operator during onboarding.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when the reader is exhausted before a line is read.
var ErrNoInput = errors.New("no input received")

// Prompter reads one answer per line.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), out: w}
}

// Ask prints question and returns the trimmed answer, or def when the
// answer is empty.
func (p *Prompter) Ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}

	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("reading answer: %w", err)
		}
		return "", ErrNoInput
	}

	answer := strings.TrimSpace(p.scanner.Text())
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// AskSecret is Ask for a required credential. The current value, if any,
// is shown masked and kept when the answer is empty.
func (p *Prompter) AskSecret(question, current string) (string, error) {
	answer, err := p.Ask(question, Mask(current))
	if err != nil {
		return "", err
	}
	if answer == Mask(current) {
		answer = current
	}
	if answer == "" {
		return "", fmt.Errorf("%s cannot be empty", strings.ToLower(question))
	}
	return answer, nil
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
