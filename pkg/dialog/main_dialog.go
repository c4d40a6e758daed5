package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tinyland-inc/gateclaw/pkg/intent"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

const (
	WelcomeText      = "Welcome to Gate Automation"
	IntroPrompt      = "What do you want to do, open or close the gates, or latch them?"
	PassphrasePrompt = "What is the magic word?"
	CheckingBalance  = "Checking balance"
	ClosingGates     = "Closing gates"
	OpeningGates     = "Opening gates"
	LatchingGates    = "Latching gates open"
	DidNotUnderstand = "I didn't get that, I have no idea what you want from me."
)

// RejectionText is sent when the passphrase does not match.
func RejectionText(attempt string) string {
	return fmt.Sprintf("Nope, %s is not the magic word. I'm not opening the gates.", attempt)
}

// GateOperator is the device surface the dialog drives. *videx.Client
// implements it.
type GateOperator interface {
	OpenGates(ctx context.Context) (string, error)
	CloseGates(ctx context.Context) (string, error)
	LatchGates(ctx context.Context) (string, error)
	CheckBalance(ctx context.Context) (string, error)
}

// MainDialog is the gate command flow: intro, act, final.
type MainDialog struct {
	recognizer intent.Recognizer
	gate       GateOperator
	passphrase string
	waterfall  *Waterfall
}

func NewMainDialog(recognizer intent.Recognizer, gate GateOperator, passphrase string) *MainDialog {
	d := &MainDialog{
		recognizer: recognizer,
		gate:       gate,
		passphrase: passphrase,
	}
	d.waterfall = NewWaterfall("main", d.introStep, d.actStep, d.finalStep)
	return d
}

func (d *MainDialog) Run(ctx context.Context, state *State, turn Turn, out Responder) Status {
	return d.waterfall.Run(ctx, state, turn, out)
}

func (d *MainDialog) introStep(ctx context.Context, sc *StepContext) StepResult {
	if sc.Turn.Text != "" {
		return sc.Next()
	}
	return sc.Prompt(ctx, IntroPrompt)
}

func (d *MainDialog) actStep(ctx context.Context, sc *StepContext) StepResult {
	kind := d.recognize(ctx, sc.Turn.Text)

	switch kind {
	case intent.CheckBalance:
		sc.Send(ctx, CheckingBalance)
		d.dispatch(ctx, kind, d.gate.CheckBalance)
		return sc.End()
	case intent.OpenGates, intent.LatchGates:
		sc.State.Pending = kind
		return sc.Prompt(ctx, PassphrasePrompt)
	case intent.CloseGates:
		sc.Send(ctx, ClosingGates)
		d.dispatch(ctx, kind, d.gate.CloseGates)
		return sc.End()
	case intent.Unrecognized:
		fallthrough
	default:
		sc.Send(ctx, DidNotUnderstand)
		return sc.End()
	}
}

func (d *MainDialog) finalStep(ctx context.Context, sc *StepContext) StepResult {
	attempt := sc.Turn.Text
	if !strings.EqualFold(attempt, d.passphrase) {
		logger.InfoCF("dialog", "Passphrase rejected", map[string]any{
			"user_id": sc.Turn.UserID,
			"intent":  sc.State.Pending.String(),
		})
		sc.Send(ctx, RejectionText(attempt))
		return sc.End()
	}

	switch sc.State.Pending {
	case intent.LatchGates:
		d.dispatch(ctx, intent.LatchGates, d.gate.LatchGates)
		sc.Send(ctx, LatchingGates)
	case intent.OpenGates:
		d.dispatch(ctx, intent.OpenGates, d.gate.OpenGates)
		sc.Send(ctx, OpeningGates)
	default:
	}
	return sc.End()
}

func (d *MainDialog) recognize(ctx context.Context, text string) intent.Kind {
	res, err := d.recognizer.Recognize(ctx, text)
	if err != nil {
		var re *intent.RecognitionError
		fields := map[string]any{"error": err.Error()}
		if errors.As(err, &re) {
			fields["backend"] = re.Backend
		}
		logger.WarnCF("dialog", "Recognizer failed, treating as unrecognized", fields)
		return intent.Unrecognized
	}
	logger.DebugCF("dialog", "Recognized intent", map[string]any{
		"intent": res.Kind.String(),
		"score":  res.Score,
	})
	return res.Kind
}

// dispatch calls a gate operation. Failures are logged; the conversation
// carries on as if the command went out.
func (d *MainDialog) dispatch(ctx context.Context, kind intent.Kind, op func(context.Context) (string, error)) {
	if _, err := op(ctx); err != nil {
		logger.ErrorCF("dialog", "Gate operation failed", map[string]any{
			"intent": kind.String(),
			"error":  err.Error(),
		})
	}
}
