package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/session"
)

// WebhookChannel is implemented by channels that receive events over the
// gateway's HTTP server.
type WebhookChannel interface {
	Channel
	http.Handler
	WebhookPath() string
}

type Manager struct {
	channels map[string]Channel
	order    []string
	bus      *bus.MessageBus
	mu       sync.RWMutex
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
	}

	if err := m.initChannels(cfg); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) initChannels(cfg *config.Config) error {
	logger.InfoC("channels", "Initializing channel manager")

	ch := cfg.Channels
	if ch.WebChat.Enabled {
		m.Register(NewWebChatChannel(ch.WebChat, m.bus))
	}
	if ch.Telegram.Enabled && ch.Telegram.Token != "" {
		c, err := NewTelegramChannel(ch.Telegram, m.bus)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		m.Register(c)
	}
	if ch.Slack.Enabled && ch.Slack.BotToken != "" {
		m.Register(NewSlackChannel(ch.Slack, m.bus))
	}
	if ch.Discord.Enabled && ch.Discord.Token != "" {
		c, err := NewDiscordChannel(ch.Discord, m.bus)
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		m.Register(c)
	}
	if ch.BotFramework.Enabled {
		m.Register(NewBotFrameworkChannel(ch.BotFramework, cfg.Bot, m.bus))
	}
	if ch.Feishu.Enabled && ch.Feishu.AppID != "" {
		m.Register(NewFeishuChannel(ch.Feishu, m.bus))
	}
	if ch.DingTalk.Enabled && ch.DingTalk.ClientID != "" {
		m.Register(NewDingTalkChannel(ch.DingTalk, m.bus))
	}

	logger.InfoCF("channels", "Channel initialization completed", map[string]any{
		"enabled_channels": len(m.channels),
	})
	return nil
}

// Register adds a channel. A later channel with the same name replaces
// the earlier one.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[ch.Name()]; !ok {
		m.order = append(m.order, ch.Name())
	}
	m.channels[ch.Name()] = ch
}

// Mount attaches every webhook channel to mux.
func (m *Manager) Mount(mux *http.ServeMux) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		if wh, ok := m.channels[name].(WebhookChannel); ok {
			mux.Handle(wh.WebhookPath(), wh)
			logger.InfoCF("channels", "Mounted webhook", map[string]any{
				"channel": name,
				"path":    wh.WebhookPath(),
			})
		}
	}
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.channels) == 0 {
		logger.WarnC("channels", "No channels enabled")
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dispatchOutbound(dispatchCtx)
	}()

	for _, name := range m.order {
		logger.InfoCF("channels", "Starting channel", map[string]any{"channel": name})
		if err := m.channels[name].Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}

	logger.InfoC("channels", "All channels started")
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	var errs []error
	for _, name := range m.order {
		if err := m.channels[name].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	m.mu.Unlock()

	m.wg.Wait()
	logger.InfoC("channels", "All channels stopped")
	return errors.Join(errs...)
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	logger.InfoC("channels", "Outbound dispatcher started")

	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			logger.InfoC("channels", "Outbound dispatcher stopped")
			return
		}

		ch, exists := m.GetChannel(msg.Channel)
		if !exists {
			logger.WarnCF("channels", "Unknown channel for outbound message", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Error sending message to channel", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
		}
	}
}

// Deliver sends text into a previously recorded conversation. Channels
// that need a trusted callback endpoint have the handle's endpoint
// trusted first.
func (m *Manager) Deliver(ctx context.Context, handle session.ConversationHandle, text string) error {
	ch, ok := m.GetChannel(handle.Channel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, handle.Channel)
	}

	if t, ok := ch.(ServiceURLTruster); ok && handle.ServiceURL != "" {
		t.TrustServiceURL(handle.ServiceURL)
	}

	return ch.Send(ctx, bus.OutboundMessage{
		Channel:    handle.Channel,
		ChatID:     handle.ChatID,
		Content:    text,
		ServiceURL: handle.ServiceURL,
		Proactive:  true,
		Metadata:   handle.Metadata,
	})
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) GetStatus() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]any)
	for name, ch := range m.channels {
		status[name] = map[string]any{
			"enabled": true,
			"running": ch.IsRunning(),
		}
	}
	return status
}

func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}
