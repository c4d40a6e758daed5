// Package channels connects chat platforms to the message bus. Each
// channel turns platform events into bus.InboundMessage values and
// delivers bus.OutboundMessage values back to the platform.
package channels

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

var (
	ErrNotRunning     = errors.New("channel not running")
	ErrUnknownChannel = errors.New("unknown channel")
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// ServiceURLTruster is implemented by channels that must approve a
// callback endpoint before sending to it.
type ServiceURLTruster interface {
	TrustServiceURL(serviceURL string)
}

type BaseChannel struct {
	config    any
	bus       *bus.MessageBus
	running   atomic.Bool
	name      string
	allowList []string
}

func NewBaseChannel(name string, config any, bus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		config:    config,
		bus:       bus,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	// Extract parts from compound senderID like "123456|username"
	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		if senderID == allowed ||
			idPart == allowed ||
			senderID == trimmed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == allowed || userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}

	return false
}

// HandleMessage publishes a chat turn. Senders outside the allow list are
// dropped.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) {
	if !c.IsAllowed(msg.SenderID) {
		logger.DebugCF(c.name, "Message from unlisted sender dropped", map[string]any{
			"sender_id": msg.SenderID,
		})
		return
	}

	msg.Channel = c.name
	if msg.Kind == "" {
		msg.Kind = bus.KindMessage
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.SessionKey == "" {
		msg.SessionKey = SessionKey(c.name, msg.ChatID)
	}

	if err := c.bus.PublishInbound(ctx, msg); err != nil {
		logger.WarnCF(c.name, "Failed to publish inbound message", map[string]any{
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
	}
}

// HandleMembersAdded publishes a conversation update for users joining
// chatID.
func (c *BaseChannel) HandleMembersAdded(ctx context.Context, msg bus.InboundMessage) {
	msg.Kind = bus.KindConversationUpdate
	if len(msg.MembersAdded) == 0 && msg.SenderID != "" {
		msg.MembersAdded = []string{msg.SenderID}
	}
	c.HandleMessage(ctx, msg)
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}

// SessionKey builds the conversation key for a chat on a channel.
func SessionKey(channel, chatID string) string {
	return channel + ":" + chatID
}
