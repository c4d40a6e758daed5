// Package dialog runs the per-conversation command flow.
//
// A conversation moves through a fixed sequence of steps. A step either
// advances to the next one within the same turn, prompts and suspends until
// the user's next turn, or ends the flow. The turn after an end starts again
// from the first step.
package dialog

import (
	"context"

	"github.com/tinyland-inc/gateclaw/pkg/intent"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

// Responder delivers text back into the conversation a turn came from.
type Responder interface {
	Reply(ctx context.Context, text string) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, text string) error

func (f ResponderFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Turn is one inbound event as the dialog sees it. Text is empty for
// membership changes.
type Turn struct {
	Text   string
	UserID string
}

// State is the transient per-conversation dialog state. It lives only in
// memory and is reset whenever a flow ends.
type State struct {
	Active  bool
	Step    int
	Pending intent.Kind
}

func (s *State) reset() {
	*s = State{}
}

// Status reports whether a flow is waiting for another turn.
type Status int

const (
	StatusComplete Status = iota
	StatusWaiting
)

func (s Status) String() string {
	if s == StatusWaiting {
		return "waiting"
	}
	return "complete"
}

// Dialog is a conversation strategy hosted by Bot.
type Dialog interface {
	Run(ctx context.Context, state *State, turn Turn, out Responder) Status
}

type stepAction int

const (
	actionNext stepAction = iota
	actionWait
	actionEnd
)

// StepResult tells the waterfall what to do after a step returns.
type StepResult struct {
	action stepAction
}

// StepContext is handed to each step of a running waterfall.
type StepContext struct {
	Turn  Turn
	State *State
	out   Responder
}

// Send replies immediately. Delivery failures are logged and swallowed so
// the flow always completes.
func (sc *StepContext) Send(ctx context.Context, text string) {
	if err := sc.out.Reply(ctx, text); err != nil {
		logger.WarnCF("dialog", "Failed to deliver reply", map[string]any{
			"user_id": sc.Turn.UserID,
			"error":   err.Error(),
		})
	}
}

// Next continues with the following step in the same turn.
func (sc *StepContext) Next() StepResult { return StepResult{action: actionNext} }

// Prompt sends text and suspends. The following step runs on the next turn.
func (sc *StepContext) Prompt(ctx context.Context, text string) StepResult {
	sc.Send(ctx, text)
	return StepResult{action: actionWait}
}

// End finishes the flow and clears the state.
func (sc *StepContext) End() StepResult { return StepResult{action: actionEnd} }

type Step func(ctx context.Context, sc *StepContext) StepResult

// Waterfall runs steps in order, one suspension at a time.
type Waterfall struct {
	name  string
	steps []Step
}

func NewWaterfall(name string, steps ...Step) *Waterfall {
	return &Waterfall{name: name, steps: steps}
}

func (w *Waterfall) Name() string { return w.name }

func (w *Waterfall) Run(ctx context.Context, state *State, turn Turn, out Responder) Status {
	if !state.Active {
		state.reset()
		state.Active = true
	}

	sc := &StepContext{Turn: turn, State: state, out: out}
	for state.Step < len(w.steps) {
		logger.DebugCF("dialog", "Running step", map[string]any{
			"dialog": w.name,
			"step":   state.Step,
		})

		res := w.steps[state.Step](ctx, sc)
		switch res.action {
		case actionNext:
			state.Step++
		case actionWait:
			state.Step++
			if state.Step >= len(w.steps) {
				state.reset()
				return StatusComplete
			}
			return StatusWaiting
		case actionEnd:
			state.reset()
			return StatusComplete
		}
	}

	state.reset()
	return StatusComplete
}
