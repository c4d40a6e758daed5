package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/session"
)

type fakeChannel struct {
	*BaseChannel
	mu      sync.Mutex
	sent    []bus.OutboundMessage
	trusted []string
	sendErr error
}

func newFakeChannel(name string, mb *bus.MessageBus) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, nil, mb, nil)}
}

func (f *fakeChannel) Start(context.Context) error { f.SetRunning(true); return nil }
func (f *fakeChannel) Stop(context.Context) error  { f.SetRunning(false); return nil }

func (f *fakeChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) TrustServiceURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trusted = append(f.trusted, u)
}

func (f *fakeChannel) messages() []bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.OutboundMessage(nil), f.sent...)
}

func TestIsAllowed(t *testing.T) {
	open := NewBaseChannel("x", nil, nil, nil)
	assert.True(t, open.IsAllowed("anyone"))

	restricted := NewBaseChannel("x", nil, nil, []string{"12345", "@alice", "999|bob"})
	assert.True(t, restricted.IsAllowed("12345"))
	assert.True(t, restricted.IsAllowed("12345|someone"))
	assert.True(t, restricted.IsAllowed("777|alice"))
	assert.True(t, restricted.IsAllowed("999"))
	assert.False(t, restricted.IsAllowed("54321"))
}

func TestHandleMessage_FillsDefaults(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := NewBaseChannel("webchat", nil, mb, nil)

	ch.HandleMessage(context.Background(), bus.InboundMessage{SenderID: "u", ChatID: "c", Content: "hi"})

	msg, ok := mb.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, "webchat", msg.Channel)
	assert.Equal(t, bus.KindMessage, msg.Kind)
	assert.Equal(t, "webchat:c", msg.SessionKey)
	assert.NotEmpty(t, msg.MessageID)
}

func TestHandleMessage_DropsUnlisted(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := NewBaseChannel("webchat", nil, mb, []string{"friend"})

	ch.HandleMessage(context.Background(), bus.InboundMessage{SenderID: "stranger", ChatID: "c"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := mb.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestHandleMembersAdded(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := NewBaseChannel("telegram", nil, mb, nil)

	ch.HandleMembersAdded(context.Background(), bus.InboundMessage{SenderID: "42", ChatID: "42"})

	msg, ok := mb.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, bus.KindConversationUpdate, msg.Kind)
	assert.Equal(t, []string{"42"}, msg.MembersAdded)
}

func TestManager_DeliverTrustsThenSends(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	m := &Manager{channels: map[string]Channel{}, bus: mb}
	fake := newFakeChannel("botframework", mb)
	m.Register(fake)

	err := m.Deliver(context.Background(), session.ConversationHandle{
		Channel:    "botframework",
		ChatID:     "conv-1",
		ServiceURL: "https://smba.example.com/",
	}, "Your current balance is £2.98")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://smba.example.com/"}, fake.trusted)
	sent := fake.messages()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Proactive)
	assert.Equal(t, "conv-1", sent[0].ChatID)
	assert.Equal(t, "Your current balance is £2.98", sent[0].Content)
}

func TestManager_DeliverUnknownChannel(t *testing.T) {
	m := &Manager{channels: map[string]Channel{}}
	err := m.Deliver(context.Background(), session.ConversationHandle{Channel: "fax"}, "hi")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestManager_DispatchesOutbound(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	m := &Manager{channels: map[string]Channel{}, bus: mb}
	fake := newFakeChannel("slack", mb)
	m.Register(fake)

	ctx := context.Background()
	require.NoError(t, m.StartAll(ctx))
	assert.True(t, fake.IsRunning())

	require.NoError(t, mb.PublishOutbound(ctx, bus.OutboundMessage{Channel: "slack", ChatID: "C1", Content: "Closing gates"}))
	require.Eventually(t, func() bool { return len(fake.messages()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.StopAll(ctx))
	assert.False(t, fake.IsRunning())
}

func TestNewManager_EnabledChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.BotFramework.Enabled = true

	mb := bus.NewMessageBus()
	defer mb.Close()
	m, err := NewManager(cfg, mb)
	require.NoError(t, err)
	assert.Equal(t, []string{"webchat", "botframework"}, m.GetEnabledChannels())

	mux := http.NewServeMux()
	m.Mount(mux)
	_, pattern := mux.Handler(httptest.NewRequest(http.MethodPost, "/api/messages", nil))
	assert.Equal(t, "/api/messages", pattern)
}

func TestWebChat_RoundTrip(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := NewWebChatChannel(config.WebChatConfig{Enabled: true, Path: "/ws"}, mb)
	require.NoError(t, ch.Start(context.Background()))
	defer ch.Stop(context.Background())

	server := httptest.NewServer(ch)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user=alice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello WebChatFrame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "conversation", hello.Type)
	require.NotEmpty(t, hello.ConversationID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	joined, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, bus.KindConversationUpdate, joined.Kind)
	assert.Equal(t, "alice", joined.SenderID)

	require.NoError(t, conn.WriteJSON(WebChatFrame{Type: "message", Text: "open the gates"}))
	turn, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "open the gates", turn.Content)
	assert.Equal(t, hello.ConversationID, turn.ChatID)

	require.NoError(t, ch.Send(ctx, bus.OutboundMessage{ChatID: hello.ConversationID, Content: "What is the magic word?"}))
	var reply WebChatFrame
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "What is the magic word?", reply.Text)
}

func TestWebChat_SendUnknownConversation(t *testing.T) {
	ch := NewWebChatChannel(config.WebChatConfig{}, bus.NewMessageBus())
	require.NoError(t, ch.Start(context.Background()))
	assert.Error(t, ch.Send(context.Background(), bus.OutboundMessage{ChatID: "nope", Content: "x"}))
}

func TestBotFramework_InboundAndReply(t *testing.T) {
	var (
		mu       sync.Mutex
		gotAuth  string
		gotPath  string
		gotReply Activity
	)
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
		default:
			mu.Lock()
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotReply)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer service.Close()

	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := NewBotFrameworkChannel(
		config.BotFrameworkConfig{Enabled: true},
		config.BotConfig{AppID: "app", AppPassword: "pw", TokenURL: service.URL + "/token", Scope: "scope"},
		mb,
	)
	require.NoError(t, ch.Start(context.Background()))

	body := `{"type":"message","id":"act-1","serviceUrl":"` + service.URL + `","channelId":"msteams",
		"from":{"id":"user-1","name":"Alice"},"conversation":{"id":"conv-1"},
		"recipient":{"id":"bot-1","name":"Gate"},"text":"close the gates"}`
	rec := httptest.NewRecorder()
	ch.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	msg, ok := mb.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, "close the gates", msg.Content)
	assert.Equal(t, service.URL, msg.ServiceURL)
	assert.Equal(t, "bot-1", msg.BotID)

	err := ch.Send(context.Background(), bus.OutboundMessage{
		ChatID:     "conv-1",
		Content:    "Closing gates",
		ServiceURL: msg.ServiceURL,
		ReplyTo:    msg.MessageID,
		Metadata:   msg.Metadata,
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "/v3/conversations/conv-1/activities/act-1", gotPath)
	assert.Equal(t, "Closing gates", gotReply.Text)
	assert.Equal(t, "msteams", gotReply.ChannelID)
}

func TestBotFramework_UntrustedServiceURL(t *testing.T) {
	ch := NewBotFrameworkChannel(config.BotFrameworkConfig{}, config.BotConfig{}, bus.NewMessageBus())
	require.NoError(t, ch.Start(context.Background()))

	err := ch.Send(context.Background(), bus.OutboundMessage{ChatID: "c", ServiceURL: "https://evil.example.com"})
	assert.ErrorIs(t, err, ErrUntrustedServiceURL)

	ch.TrustServiceURL("https://evil.example.com/")
	assert.True(t, ch.isTrusted("https://evil.example.com"))
}

func TestBotFramework_RejectsGet(t *testing.T) {
	ch := NewBotFrameworkChannel(config.BotFrameworkConfig{}, config.BotConfig{}, bus.NewMessageBus())
	rec := httptest.NewRecorder()
	ch.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExtractFeishuText(t *testing.T) {
	assert.Equal(t, "open", extractFeishuText("text", `{"text":"open"}`))
	assert.Equal(t, `{"image_key":"x"}`, extractFeishuText("image", `{"image_key":"x"}`))
	assert.Equal(t, "not json", extractFeishuText("text", "not json"))
}

func TestStripDiscordMention(t *testing.T) {
	assert.Equal(t, "open the gates", stripDiscordMention("<@123> open the gates", "123"))
	assert.Equal(t, "close", stripDiscordMention("<@!123>close", "123"))
}
