package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", cfg, messageBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
		ctx:         context.Background(),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		c.cancel()
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.SetRunning(true)
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": c.session.State.User.Username,
		"user_id":  c.session.State.User.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.SetRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	botID := s.State.User.ID
	if m.Author.ID == botID {
		return
	}

	content := m.Content
	if m.GuildID != "" && c.config.MentionOnly {
		mentioned := false
		for _, u := range m.Mentions {
			if u.ID == botID {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return
		}
		content = stripDiscordMention(content, botID)
	}

	c.HandleMessage(c.ctx, bus.InboundMessage{
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		ChatID:     m.ChannelID,
		Content:    content,
		MessageID:  m.ID,
		BotID:      botID,
		Metadata: map[string]string{
			"guild_id": m.GuildID,
		},
	})
}

func stripDiscordMention(content, botID string) string {
	for _, tag := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		content = strings.ReplaceAll(content, tag, "")
	}
	return strings.TrimSpace(content)
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}
	if _, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
