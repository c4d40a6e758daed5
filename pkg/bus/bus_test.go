package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBus_InboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx := context.Background()
	require.NoError(t, mb.PublishInbound(ctx, InboundMessage{Channel: "webchat", ChatID: "c1", Content: "hi"}))

	msg, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "webchat:c1", msg.Key())
}

func TestMessageBus_OutboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx := context.Background()
	require.NoError(t, mb.PublishOutbound(ctx, OutboundMessage{Channel: "slack", ChatID: "C1", Content: "Opening gates"}))

	msg, ok := mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "Opening gates", msg.Content)
}

func TestMessageBus_Closed(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	assert.ErrorIs(t, mb.PublishInbound(context.Background(), InboundMessage{}), ErrBusClosed)
	assert.ErrorIs(t, mb.PublishOutbound(context.Background(), OutboundMessage{}), ErrBusClosed)

	_, ok := mb.ConsumeInbound(context.Background())
	assert.False(t, ok)
}

func TestMessageBus_ConsumeHonoursContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := mb.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestInboundMessage_KeyPrefersSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42", SessionKey: "custom"}
	assert.Equal(t, "custom", msg.Key())
}

func TestMessageBus_Pending(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx := context.Background()
	require.NoError(t, mb.PublishInbound(ctx, InboundMessage{ChatID: "a"}))
	require.NoError(t, mb.PublishInbound(ctx, InboundMessage{ChatID: "b"}))
	require.NoError(t, mb.PublishOutbound(ctx, OutboundMessage{ChatID: "a"}))

	in, out := mb.Pending()
	assert.Equal(t, 2, in)
	assert.Equal(t, 1, out)

	_, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	in, _ = mb.Pending()
	assert.Equal(t, 1, in)
}
