// Package bridge turns SMS replies from the intercom into proactive chat
// messages for every conversation the bot knows about.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/tinyland-inc/gateclaw/pkg/events"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/session"
	"github.com/tinyland-inc/gateclaw/pkg/sms"
	"github.com/tinyland-inc/gateclaw/pkg/videx"
)

// Deliverer sends a proactive message into a recorded conversation.
// *channels.Manager implements it.
type Deliverer interface {
	Deliver(ctx context.Context, handle session.ConversationHandle, text string) error
}

// SignatureValidator verifies that a webhook call came from the carrier.
type SignatureValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

// AckResponse is what the webhook returns to the carrier. It never
// signals an error, otherwise the carrier retries the delivery.
type AckResponse struct {
	StatusCode  int
	ContentType string
	Body        string
}

func BalanceMessage(b videx.BalanceReply) string {
	return fmt.Sprintf("Your current balance is £%s", b.String())
}

type Option func(*Bridge)

// WithPublisher emits a balance event after every broadcast.
func WithPublisher(p events.Publisher) Option {
	return func(b *Bridge) { b.publisher = p }
}

// WithSignatureValidation rejects calls whose signature does not match
// publicURL, the URL the carrier was configured to call.
func WithSignatureValidation(v SignatureValidator, publicURL string) Option {
	return func(b *Bridge) {
		b.validator = v
		b.publicURL = publicURL
	}
}

type Bridge struct {
	registry  *session.Registry
	deliverer Deliverer
	publisher events.Publisher
	validator SignatureValidator
	publicURL string
	ack       string
}

func New(registry *session.Registry, deliverer Deliverer, opts ...Option) *Bridge {
	b := &Bridge{
		registry:  registry,
		deliverer: deliverer,
		publisher: &events.NoopPublisher{},
		ack:       sms.EmptyTwiML(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) acknowledge() AckResponse {
	return AckResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/xml",
		Body:        b.ack,
	}
}

// HandleInboundSMS processes one webhook call. The form must carry the
// message text under "Body"; anything else is ignored.
func (b *Bridge) HandleInboundSMS(ctx context.Context, form map[string]string) AckResponse {
	body, ok := form["Body"]
	if !ok {
		logger.DebugC("bridge", "Inbound SMS without Body")
		return b.acknowledge()
	}

	balance, ok := videx.ParseBalance(body)
	if !ok {
		logger.InfoCF("bridge", "Inbound SMS carried no balance", map[string]any{
			"length": len(body),
		})
		return b.acknowledge()
	}

	b.broadcast(ctx, balance)
	return b.acknowledge()
}

func (b *Bridge) broadcast(ctx context.Context, balance videx.BalanceReply) {
	text := BalanceMessage(balance)
	handles := b.registry.Snapshot()

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, h := range handles {
		wg.Add(1)
		go func(h session.ConversationHandle) {
			defer wg.Done()
			if err := b.deliverer.Deliver(ctx, h, text); err != nil {
				logger.WarnCF("bridge", "Proactive delivery failed", map[string]any{
					"channel": h.Channel,
					"user_id": h.UserID,
					"error":   err.Error(),
				})
				return
			}
			delivered.Add(1)
		}(h)
	}
	wg.Wait()

	logger.InfoCF("bridge", "Balance broadcast", map[string]any{
		"amount":     balance.String(),
		"recipients": len(handles),
		"delivered":  delivered.Load(),
	})

	if err := b.publisher.Publish(ctx, events.TopicBalanceReceived, events.BalanceReceived{
		Amount:     balance.String(),
		Recipients: len(handles),
		Delivered:  int(delivered.Load()),
	}); err != nil {
		logger.WarnCF("bridge", "Failed to publish balance event", map[string]any{"error": err.Error()})
	}
}

// ServeHTTP is the carrier webhook endpoint.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ack := b.acknowledge()
	defer func() {
		w.Header().Set("Content-Type", ack.ContentType)
		w.WriteHeader(ack.StatusCode)
		_, _ = w.Write([]byte(ack.Body))
	}()

	if r.Method != http.MethodPost {
		return
	}
	if err := r.ParseForm(); err != nil {
		logger.WarnCF("bridge", "Unreadable webhook form", map[string]any{"error": err.Error()})
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	if b.validator != nil {
		url := b.publicURL
		if url == "" {
			url = requestURL(r)
		}
		if !b.validator.Validate(url, form, r.Header.Get("X-Twilio-Signature")) {
			logger.WarnCF("bridge", "Webhook signature mismatch, ignoring", map[string]any{
				"remote": r.RemoteAddr,
			})
			return
		}
	}

	ack = b.HandleInboundSMS(r.Context(), form)
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
