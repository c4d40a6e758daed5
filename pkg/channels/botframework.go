package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

// ErrUntrustedServiceURL is returned when sending to a service endpoint no
// inbound activity or explicit trust call has vouched for.
var ErrUntrustedServiceURL = errors.New("service URL not trusted")

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ConversationAccount struct {
	ID      string `json:"id"`
	IsGroup bool   `json:"isGroup,omitempty"`
}

// Activity is the subset of the Bot Framework activity schema the bot
// reads and writes.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Conversation ConversationAccount `json:"conversation"`
	Recipient    ChannelAccount      `json:"recipient"`
	Text         string              `json:"text,omitempty"`
	InputHint    string              `json:"inputHint,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
}

const (
	activityMessage            = "message"
	activityConversationUpdate = "conversationUpdate"
)

// BotFrameworkChannel receives activities on an HTTP endpoint and replies
// through the caller's service URL.
type BotFrameworkChannel struct {
	*BaseChannel
	config config.BotFrameworkConfig
	bot    config.BotConfig
	client *http.Client

	mu      sync.RWMutex
	trusted map[string]time.Time
}

func NewBotFrameworkChannel(cfg config.BotFrameworkConfig, bot config.BotConfig, messageBus *bus.MessageBus) *BotFrameworkChannel {
	return &BotFrameworkChannel{
		BaseChannel: NewBaseChannel("botframework", cfg, messageBus, cfg.AllowFrom),
		config:      cfg,
		bot:         bot,
		client:      newBotFrameworkHTTPClient(bot),
		trusted:     make(map[string]time.Time),
	}
}

// newBotFrameworkHTTPClient returns a token-bearing client, or a plain one
// when no app identity is configured (local emulator).
func newBotFrameworkHTTPClient(bot config.BotConfig) *http.Client {
	if bot.AppID == "" {
		return &http.Client{Timeout: 30 * time.Second}
	}
	cc := &clientcredentials.Config{
		ClientID:     bot.AppID,
		ClientSecret: bot.AppPassword,
		TokenURL:     bot.TokenURL,
		Scopes:       []string{bot.Scope},
	}
	client := cc.Client(context.Background())
	client.Timeout = 30 * time.Second
	return client
}

func (c *BotFrameworkChannel) WebhookPath() string {
	if c.config.Path == "" {
		return "/api/messages"
	}
	return c.config.Path
}

func (c *BotFrameworkChannel) Start(ctx context.Context) error {
	c.SetRunning(true)
	logger.InfoCF("botframework", "Bot Framework endpoint ready", map[string]any{
		"path":   c.WebhookPath(),
		"app_id": c.bot.AppID,
	})
	return nil
}

func (c *BotFrameworkChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return nil
}

// TrustServiceURL allows sends to serviceURL.
func (c *BotFrameworkChannel) TrustServiceURL(serviceURL string) {
	key := normalizeServiceURL(serviceURL)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.trusted[key] = time.Now()
	c.mu.Unlock()
}

func (c *BotFrameworkChannel) isTrusted(serviceURL string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.trusted[normalizeServiceURL(serviceURL)]
	return ok
}

func normalizeServiceURL(serviceURL string) string {
	return strings.TrimRight(strings.TrimSpace(serviceURL), "/")
}

func (c *BotFrameworkChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !c.IsRunning() {
		http.Error(w, "channel not running", http.StatusServiceUnavailable)
		return
	}

	var act Activity
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&act); err != nil {
		http.Error(w, "invalid activity", http.StatusBadRequest)
		return
	}

	// An inbound activity vouches for its own service URL.
	c.TrustServiceURL(act.ServiceURL)

	msg := bus.InboundMessage{
		SenderID:   act.From.ID,
		SenderName: act.From.Name,
		ChatID:     act.Conversation.ID,
		Content:    act.Text,
		MessageID:  act.ID,
		ServiceURL: act.ServiceURL,
		BotID:      act.Recipient.ID,
		Metadata: map[string]string{
			"channel_id":     act.ChannelID,
			"recipient_name": act.Recipient.Name,
		},
	}

	switch act.Type {
	case activityMessage:
		c.HandleMessage(r.Context(), msg)
	case activityConversationUpdate:
		for _, m := range act.MembersAdded {
			msg.MembersAdded = append(msg.MembersAdded, m.ID)
		}
		c.HandleMembersAdded(r.Context(), msg)
	default:
		logger.DebugCF("botframework", "Ignoring activity", map[string]any{"type": act.Type})
	}

	w.WriteHeader(http.StatusOK)
}

func (c *BotFrameworkChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}
	if msg.ServiceURL == "" {
		return fmt.Errorf("botframework: message for %s has no service URL", msg.ChatID)
	}
	if !c.isTrusted(msg.ServiceURL) {
		return fmt.Errorf("%w: %s", ErrUntrustedServiceURL, msg.ServiceURL)
	}

	act := Activity{
		Type:         activityMessage,
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ChannelID:    msg.Metadata["channel_id"],
		From:         ChannelAccount{ID: c.bot.AppID, Name: msg.Metadata["recipient_name"]},
		Conversation: ConversationAccount{ID: msg.ChatID},
		Text:         msg.Content,
		ReplyToID:    msg.ReplyTo,
	}
	if msg.Proactive {
		act.InputHint = "acceptingInput"
	}

	body, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("marshaling activity: %w", err)
	}

	endpoint := normalizeServiceURL(msg.ServiceURL) + "/v3/conversations/" + url.PathEscape(msg.ChatID) + "/activities"
	if msg.ReplyTo != "" {
		endpoint += "/" + url.PathEscape(msg.ReplyTo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("botframework send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("botframework send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
