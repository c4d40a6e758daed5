package channels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

// SlackChannel connects over Socket Mode, so no public endpoint is needed.
type SlackChannel struct {
	*BaseChannel
	config    config.SlackConfig
	api       *slack.Client
	socket    *socketmode.Client
	botUserID string
	cancel    context.CancelFunc
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", cfg, messageBus, cfg.AllowFrom),
		config:      cfg,
		api:         api,
		socket:      socketmode.New(api),
	}
}

func (c *SlackChannel) Start(ctx context.Context) error {
	logger.InfoC("slack", "Starting Slack bot (socket mode)...")

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botUserID = auth.UserID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode stopped", map[string]any{"error": err.Error()})
		}
	}()
	go c.eventLoop(runCtx)

	c.SetRunning(true)
	logger.InfoCF("slack", "Slack bot connected", map[string]any{"bot_user_id": c.botUserID, "team": auth.Team})
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack bot...")
	c.SetRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *SlackChannel) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				c.socket.Ack(*evt.Request)
			}
			c.handleEvent(ctx, eventsAPIEvent)
		}
	}
}

func (c *SlackChannel) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.User == "" || ev.User == c.botUserID || ev.SubType != "" {
			return
		}
		c.HandleMessage(ctx, bus.InboundMessage{
			SenderID:  ev.User,
			ChatID:    ev.Channel,
			Content:   ev.Text,
			MessageID: ev.TimeStamp,
			BotID:     c.botUserID,
			Metadata: map[string]string{
				"channel_type": ev.ChannelType,
			},
		})
	case *slackevents.MemberJoinedChannelEvent:
		c.HandleMembersAdded(ctx, bus.InboundMessage{
			SenderID:     ev.User,
			ChatID:       ev.Channel,
			BotID:        c.botUserID,
			MembersAdded: []string{ev.User},
		})
	}
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	if _, _, err := c.api.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false)); err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}
