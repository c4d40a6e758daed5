package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/events"
)

func TestNewGatewayCommand(t *testing.T) {
	cmd := NewGatewayCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "gateway", cmd.Use)
	assert.Equal(t, []string{"g"}, cmd.Aliases)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("debug"))
}

func TestBridgeOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Len(t, bridgeOptions(cfg, &events.NoopPublisher{}), 1)

	cfg.SMS.ValidateSignature = true
	assert.Len(t, bridgeOptions(cfg, &events.NoopPublisher{}), 1, "no token, no validation")

	cfg.SMS.AuthToken = "secret"
	assert.Len(t, bridgeOptions(cfg, &events.NoopPublisher{}), 2)
}

func TestBusCheck(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	check := busCheck(mb)

	ok, msg := check()
	assert.True(t, ok)
	assert.Equal(t, "0 inbound, 0 outbound queued", msg)

	for i := 0; i < bus.QueueSize; i++ {
		require.NoError(t, mb.PublishOutbound(context.Background(), bus.OutboundMessage{ChatID: "c"}))
	}
	ok, msg = check()
	assert.False(t, ok)
	assert.Contains(t, msg, "100 outbound")
}
