package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

const metaSessionWebhook = "session_webhook"

// DingTalkChannel receives robot callbacks over the Stream API and replies
// through the per-conversation session webhook.
type DingTalkChannel struct {
	*BaseChannel
	config       config.DingTalkConfig
	streamClient *client.StreamClient
	replier      *chatbot.ChatbotReplier
	webhooks     sync.Map // chatID -> session webhook
	cancel       context.CancelFunc
}

func NewDingTalkChannel(cfg config.DingTalkConfig, messageBus *bus.MessageBus) *DingTalkChannel {
	return &DingTalkChannel{
		BaseChannel: NewBaseChannel("dingtalk", cfg, messageBus, cfg.AllowFrom),
		config:      cfg,
		replier:     chatbot.NewChatbotReplier(),
	}
}

func (c *DingTalkChannel) Start(ctx context.Context) error {
	logger.InfoC("dingtalk", "Starting DingTalk channel (Stream Mode)...")

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	cred := client.NewAppCredentialConfig(c.config.ClientID, c.config.ClientSecret)
	c.streamClient = client.NewStreamClient(
		client.WithAppCredential(cred),
		client.WithAutoReconnect(true),
	)
	c.streamClient.RegisterChatBotCallbackRouter(func(_ context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
		c.onChatBotMessage(runCtx, data)
		return []byte(""), nil
	})

	if err := c.streamClient.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start stream client: %w", err)
	}

	c.SetRunning(true)
	logger.InfoC("dingtalk", "DingTalk channel started (Stream Mode)")
	return nil
}

func (c *DingTalkChannel) Stop(ctx context.Context) error {
	logger.InfoC("dingtalk", "Stopping DingTalk channel...")
	if c.cancel != nil {
		c.cancel()
	}
	if c.streamClient != nil {
		c.streamClient.Close()
	}
	c.SetRunning(false)
	return nil
}

func (c *DingTalkChannel) onChatBotMessage(ctx context.Context, data *chatbot.BotCallbackDataModel) {
	content := strings.TrimSpace(data.Text.Content)
	chatID := data.ConversationId

	senderID := data.SenderStaffId
	if senderID == "" {
		senderID = data.SenderId
	}

	if data.SessionWebhook != "" {
		c.webhooks.Store(chatID, data.SessionWebhook)
	}

	c.HandleMessage(ctx, bus.InboundMessage{
		SenderID:   senderID,
		SenderName: data.SenderNick,
		ChatID:     chatID,
		Content:    content,
		MessageID:  data.MsgId,
		BotID:      data.ChatbotUserId,
		Metadata: map[string]string{
			metaSessionWebhook:  data.SessionWebhook,
			"conversation_type": data.ConversationType,
		},
	})
}

func (c *DingTalkChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	webhook := msg.Metadata[metaSessionWebhook]
	if stored, ok := c.webhooks.Load(msg.ChatID); ok {
		// The latest webhook wins; the one in a stored handle may have expired.
		webhook = stored.(string)
	}
	if webhook == "" {
		return fmt.Errorf("dingtalk: no session webhook for chat %s", msg.ChatID)
	}

	if err := c.replier.SimpleReplyText(ctx, webhook, []byte(msg.Content)); err != nil {
		return fmt.Errorf("dingtalk send: %w", err)
	}
	return nil
}
