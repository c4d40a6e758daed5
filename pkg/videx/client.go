package videx

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/gateclaw/pkg/events"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/utils"
)

// Sender is the SMS transport. Implementations return the carrier's
// message identifier.
type Sender interface {
	SendText(ctx context.Context, to, from, body string) (string, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, from, body string) (string, error)

func (f SenderFunc) SendText(ctx context.Context, to, from, body string) (string, error) {
	return f(ctx, to, from, body)
}

// TransportError reports a failed SMS send. The client never retries.
type TransportError struct {
	Command GateCommand
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sending %s command: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientConfig holds the device addressing.
type ClientConfig struct {
	PinCode      string
	DeviceNumber string // the intercom's SIM
	OwnNumber    string // our SMS sender number
}

// Client issues gate operations to the intercom over SMS.
type Client struct {
	config    ClientConfig
	sender    Sender
	publisher events.Publisher
}

// NewClient creates a gate client. A nil publisher disables events.
func NewClient(cfg ClientConfig, sender Sender, publisher events.Publisher) *Client {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Client{config: cfg, sender: sender, publisher: publisher}
}

// OpenGates pulses relay 1.
func (c *Client) OpenGates(ctx context.Context) (string, error) {
	return c.send(ctx, TriggerRelay)
}

// CloseGates releases relay 1. It doubles as "unlatch".
func (c *Client) CloseGates(ctx context.Context) (string, error) {
	return c.send(ctx, UnlatchRelay)
}

// LatchGates holds relay 1 closed until CloseGates.
func (c *Client) LatchGates(ctx context.Context) (string, error) {
	return c.send(ctx, LatchRelay)
}

// CheckBalance asks the device to report its SIM credit. The answer
// arrives later as an inbound SMS.
func (c *Client) CheckBalance(ctx context.Context) (string, error) {
	return c.send(ctx, CreditBalance)
}

func (c *Client) send(ctx context.Context, cmd GateCommand) (string, error) {
	body := Encode(c.config.PinCode, cmd)

	id, err := c.sender.SendText(ctx, c.config.DeviceNumber, c.config.OwnNumber, body)
	if err != nil {
		logger.ErrorCF("videx", "Gate command failed", map[string]any{
			"command": cmd.String(),
			"to":      utils.MaskPhoneNumber(c.config.DeviceNumber),
			"error":   err.Error(),
		})
		c.publish(ctx, events.TopicCommandFailed, events.CommandFailed{Command: cmd.String(), Error: err.Error()})
		return "", &TransportError{Command: cmd, Err: err}
	}

	logger.InfoCF("videx", "Gate command sent", map[string]any{
		"command":    cmd.String(),
		"message_id": id,
		"to":         utils.MaskPhoneNumber(c.config.DeviceNumber),
	})
	c.publish(ctx, events.TopicCommandSent, events.CommandSent{Command: cmd.String(), MessageID: id})
	return id, nil
}

func (c *Client) publish(ctx context.Context, topic string, event any) {
	if err := c.publisher.Publish(ctx, topic, event); err != nil {
		logger.WarnCF("videx", "Failed to publish event", map[string]any{"topic": topic, "error": err.Error()})
	}
}
