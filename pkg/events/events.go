// Package events publishes gate activity to an optional message broker so
// other systems can audit commands and balance reports.
package events

import "context"

const (
	TopicCommandSent     = "gateclaw.command.sent"
	TopicCommandFailed   = "gateclaw.command.failed"
	TopicBalanceReceived = "gateclaw.balance.received"
)

type CommandSent struct {
	Command   string `json:"command"`
	MessageID string `json:"message_id"`
}

type CommandFailed struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

type BalanceReceived struct {
	Amount     string `json:"amount"`
	Recipients int    `json:"recipients"`
	Delivered  int    `json:"delivered"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
