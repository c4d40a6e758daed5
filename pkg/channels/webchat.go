package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 << 10
)

// WebChatFrame is the JSON frame exchanged over the webchat socket.
type WebChatFrame struct {
	Type           string `json:"type"` // "conversation", "message"
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
	InputHint      string `json:"input_hint,omitempty"`
}

type webchatConn struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	userID string
}

func (c *webchatConn) close() {
	c.once.Do(func() { close(c.done) })
}

// WebChatChannel serves a browser chat over a websocket. Every socket is a
// conversation of its own.
type WebChatChannel struct {
	*BaseChannel
	config   config.WebChatConfig
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	conns    map[string]*webchatConn
}

func NewWebChatChannel(cfg config.WebChatConfig, messageBus *bus.MessageBus) *WebChatChannel {
	return &WebChatChannel{
		BaseChannel: NewBaseChannel("webchat", cfg, messageBus, cfg.AllowFrom),
		config:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*webchatConn),
	}
}

func (c *WebChatChannel) WebhookPath() string {
	if c.config.Path == "" {
		return "/ws"
	}
	return c.config.Path
}

func (c *WebChatChannel) Start(ctx context.Context) error {
	c.SetRunning(true)
	logger.InfoCF("webchat", "WebChat channel ready", map[string]any{"path": c.WebhookPath()})
	return nil
}

func (c *WebChatChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	c.mu.Lock()
	for id, wc := range c.conns {
		wc.close()
		delete(c.conns, id)
	}
	c.mu.Unlock()
	return nil
}

func (c *WebChatChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.IsRunning() {
		http.Error(w, "channel not running", http.StatusServiceUnavailable)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID != "" && !c.IsAllowed(userID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("webchat", "Upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	chatID := uuid.NewString()
	if userID == "" {
		userID = chatID
	}
	wc := &webchatConn{
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
		userID: userID,
	}

	c.mu.Lock()
	c.conns[chatID] = wc
	c.mu.Unlock()

	go c.writePump(wc)

	c.queue(wc, WebChatFrame{Type: "conversation", ConversationID: chatID})
	c.HandleMembersAdded(r.Context(), bus.InboundMessage{
		SenderID: userID,
		ChatID:   chatID,
		BotID:    "webchat",
	})

	c.readPump(chatID, wc)
}

func (c *WebChatChannel) readPump(chatID string, wc *webchatConn) {
	defer func() {
		c.mu.Lock()
		delete(c.conns, chatID)
		c.mu.Unlock()
		wc.close()
		wc.conn.Close()
	}()

	wc.conn.SetReadLimit(maxMsgSize)
	wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.InfoCF("webchat", "Client disconnected", map[string]any{"error": err.Error()})
			}
			return
		}

		var frame WebChatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.DebugCF("webchat", "Ignoring malformed frame", map[string]any{"error": err.Error()})
			continue
		}
		if frame.Type != "message" {
			continue
		}

		c.HandleMessage(context.Background(), bus.InboundMessage{
			SenderID: wc.userID,
			ChatID:   chatID,
			Content:  frame.Text,
			BotID:    "webchat",
		})
	}
}

func (c *WebChatChannel) writePump(wc *webchatConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wc.conn.Close()
	}()

	for {
		select {
		case data := <-wc.send:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-wc.done:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			wc.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *WebChatChannel) queue(wc *webchatConn, frame WebChatFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case wc.send <- data:
		return nil
	case <-wc.done:
		return fmt.Errorf("webchat: connection closed")
	default:
		return fmt.Errorf("webchat: send buffer full")
	}
}

func (c *WebChatChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	c.mu.RLock()
	wc, ok := c.conns[msg.ChatID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("webchat: conversation %s is not connected", msg.ChatID)
	}

	frame := WebChatFrame{Type: "message", ConversationID: msg.ChatID, Text: msg.Content}
	if msg.Proactive {
		frame.InputHint = "acceptingInput"
	}
	return c.queue(wc, frame)
}
