package dialog

import (
	"context"
	"sync"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/session"
)

type conversation struct {
	mu    sync.Mutex
	state State
}

type lane struct {
	pending []bus.InboundMessage
}

// Bot hosts a Dialog for every conversation and records each sender in the
// session registry so proactive messages can reach them later.
//
// Turns from one conversation run strictly in arrival order. Turns from
// different conversations run concurrently.
type Bot struct {
	registry *session.Registry
	dialog   Dialog

	mu            sync.Mutex
	conversations map[string]*conversation

	laneMu sync.Mutex
	lanes  map[string]*lane
	wg     sync.WaitGroup
}

func NewBot(registry *session.Registry, dialog Dialog) *Bot {
	return &Bot{
		registry:      registry,
		dialog:        dialog,
		conversations: make(map[string]*conversation),
		lanes:         make(map[string]*lane),
	}
}

// HandleFor builds the registry handle for an inbound message.
func HandleFor(msg bus.InboundMessage) session.ConversationHandle {
	return session.ConversationHandle{
		Channel:    msg.Channel,
		UserID:     msg.SenderID,
		ChatID:     msg.ChatID,
		ServiceURL: msg.ServiceURL,
		BotID:      msg.BotID,
		Metadata:   msg.Metadata,
	}
}

// HandleMessage processes one inbound event synchronously, replying
// through out.
func (b *Bot) HandleMessage(ctx context.Context, msg bus.InboundMessage, out Responder) {
	if msg.SenderID != "" {
		b.registry.Upsert(msg.SenderID, HandleFor(msg))
	}

	switch msg.Kind {
	case bus.KindConversationUpdate:
		b.onMembersAdded(ctx, msg, out)
	default:
		b.onMessage(ctx, msg, out)
	}
}

func (b *Bot) onMessage(ctx context.Context, msg bus.InboundMessage, out Responder) {
	conv := b.conversation(msg.Key())
	conv.mu.Lock()
	defer conv.mu.Unlock()

	status := b.dialog.Run(ctx, &conv.state, Turn{Text: msg.Content, UserID: msg.SenderID}, out)
	logger.DebugCF("dialog", "Turn processed", map[string]any{
		"channel": msg.Channel,
		"chat_id": msg.ChatID,
		"status":  status.String(),
	})
}

func (b *Bot) onMembersAdded(ctx context.Context, msg bus.InboundMessage, out Responder) {
	for _, member := range msg.MembersAdded {
		if member == msg.BotID {
			continue
		}

		if err := out.Reply(ctx, WelcomeText); err != nil {
			logger.WarnCF("dialog", "Failed to deliver welcome", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
		}

		conv := b.conversation(msg.Key())
		conv.mu.Lock()
		// A flow already waiting on this conversation keeps its place.
		if !conv.state.Active {
			b.dialog.Run(ctx, &conv.state, Turn{UserID: member}, out)
		}
		conv.mu.Unlock()
	}
}

func (b *Bot) conversation(key string) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[key]
	if !ok {
		conv = &conversation{}
		b.conversations[key] = conv
	}
	return conv
}

// Active reports whether the conversation is part way through a flow.
func (b *Bot) Active(key string) bool {
	conv := b.conversation(key)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.state.Active
}

// Run consumes inbound messages from the bus until ctx is cancelled or the
// bus closes, publishing replies as outbound messages.
func (b *Bot) Run(ctx context.Context, mb *bus.MessageBus) {
	logger.InfoC("dialog", "Dialog loop started")
	for {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			break
		}
		b.enqueue(ctx, mb, msg)
	}
	b.wg.Wait()
	logger.InfoC("dialog", "Dialog loop stopped")
}

func (b *Bot) enqueue(ctx context.Context, mb *bus.MessageBus, msg bus.InboundMessage) {
	key := msg.Key()

	b.laneMu.Lock()
	l, running := b.lanes[key]
	if !running {
		l = &lane{}
		b.lanes[key] = l
	}
	l.pending = append(l.pending, msg)
	b.laneMu.Unlock()

	if running {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			b.laneMu.Lock()
			if len(l.pending) == 0 {
				delete(b.lanes, key)
				b.laneMu.Unlock()
				return
			}
			next := l.pending[0]
			l.pending = l.pending[1:]
			b.laneMu.Unlock()

			b.HandleMessage(ctx, next, &busResponder{bus: mb, msg: next})
		}
	}()
}

type busResponder struct {
	bus *bus.MessageBus
	msg bus.InboundMessage
}

func (r *busResponder) Reply(ctx context.Context, text string) error {
	return r.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel:    r.msg.Channel,
		ChatID:     r.msg.ChatID,
		Content:    text,
		ServiceURL: r.msg.ServiceURL,
		ReplyTo:    r.msg.MessageID,
		Metadata:   r.msg.Metadata,
	})
}
