package bus

// MessageKind distinguishes chat turns from membership changes.
type MessageKind string

const (
	KindMessage            MessageKind = "message"
	KindConversationUpdate MessageKind = "conversation_update"
)

type InboundMessage struct {
	Kind         MessageKind       `json:"kind"`
	Channel      string            `json:"channel"`
	SenderID     string            `json:"sender_id"`
	SenderName   string            `json:"sender_name,omitempty"`
	ChatID       string            `json:"chat_id"`
	Content      string            `json:"content"`
	MessageID    string            `json:"message_id,omitempty"`  // platform message ID
	ServiceURL   string            `json:"service_url,omitempty"` // reply endpoint, botframework only
	BotID        string            `json:"bot_id,omitempty"`      // recipient id as the platform sees it
	MembersAdded []string          `json:"members_added,omitempty"`
	SessionKey   string            `json:"session_key"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Key returns the conversation key used to serialize dialog turns.
func (m InboundMessage) Key() string {
	if m.SessionKey != "" {
		return m.SessionKey
	}
	return m.Channel + ":" + m.ChatID
}

type OutboundMessage struct {
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	ServiceURL string            `json:"service_url,omitempty"`
	ReplyTo    string            `json:"reply_to,omitempty"`
	Proactive  bool              `json:"proactive,omitempty"` // not a reply to a turn; expects input
	Metadata   map[string]string `json:"metadata,omitempty"`
}
