package videx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gateclaw/pkg/events"
)

func TestEncode_IsPlainConcatenation(t *testing.T) {
	tests := []struct {
		pin  string
		cmd  GateCommand
		want string
	}{
		{"1234", TriggerRelay, "1234RLY"},
		{"1234", LatchRelay, "1234RLA"},
		{"1234", UnlatchRelay, "1234RUL"},
		{"1234", CreditBalance, "1234BAL?"},
		{"", TriggerRelay, "RLY"},
		{"0000", SignalStrength, "0000SIG?"},
		{"0000", SoftwareVersion, "0000VER?"},
		{"0000", CheckDate, `0000CLK?"yy/mm/dd,hh:mm"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Encode(tt.pin, tt.cmd))
		assert.Equal(t, tt.pin+tt.cmd.Code(), Encode(tt.pin, tt.cmd))
	}
}

func TestGateCommand_UnknownValue(t *testing.T) {
	assert.Equal(t, "", GateCommand(99).Code())
	assert.Equal(t, "unknown", GateCommand(99).String())
}

func TestParseBalance(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"vodafone format", "BAL=Yourbalanceis#2.98.Tocheck...", "2.98", true},
		{"full vodafone reply", "BAL=Yourbalanceis#2.98.Tocheckanyremainingallowancespleasecall1345,forfree.Thankyou OK VIDEX GSM", "2.98", true},
		{"single decimal place", "Credit 10.5 remaining", "10.5", true},
		{"trailing digits truncated", "Balance: 3.141", "3.14", true},
		{"no integer part", "Credit: .75 GBP", "0.75", true},
		{"no integer part after hash", "BAL=Yourbalanceis#.50.Tocheck", "0.50", true},
		{"no amount", "OK VIDEX GSM", "", false},
		{"integer only", "Call 1345 for free", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBalance(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestParseBalance_AmountValue(t *testing.T) {
	got, ok := ParseBalance("BAL=Yourbalanceis#2.98.Tocheck...")
	require.True(t, ok)
	assert.Equal(t, "2.98", got.Amount.String())
	assert.Equal(t, "2.98", got.Token)
}

func TestParseBalance_LeadingDot(t *testing.T) {
	got, ok := ParseBalance("Credit: .75 GBP")
	require.True(t, ok)
	assert.Equal(t, ".75", got.Token)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("0.75")))
	assert.Equal(t, "0.75", got.String())
}

func TestBalanceReply_KeepsTrailingZero(t *testing.T) {
	got, ok := ParseBalance("#5.50.")
	require.True(t, ok)
	assert.Equal(t, "5.50", got.String())
}

type recordingSender struct {
	mu    sync.Mutex
	calls []sentSMS
	err   error
}

type sentSMS struct{ to, from, body string }

func (s *recordingSender) SendText(_ context.Context, to, from, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, sentSMS{to, from, body})
	return "SM" + body, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestClient(sender Sender, pub events.Publisher) *Client {
	return NewClient(ClientConfig{
		PinCode:      "4321",
		DeviceNumber: "+447700900001",
		OwnNumber:    "+447700900002",
	}, sender, pub)
}

func TestClient_Operations(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		op   func(*Client) (string, error)
		body string
	}{
		{"open", func(c *Client) (string, error) { return c.OpenGates(ctx) }, "4321RLY"},
		{"close", func(c *Client) (string, error) { return c.CloseGates(ctx) }, "4321RUL"},
		{"latch", func(c *Client) (string, error) { return c.LatchGates(ctx) }, "4321RLA"},
		{"balance", func(c *Client) (string, error) { return c.CheckBalance(ctx) }, "4321BAL?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			pub := &recordingPublisher{}
			id, err := tt.op(newTestClient(sender, pub))
			require.NoError(t, err)
			assert.Equal(t, "SM"+tt.body, id)
			require.Len(t, sender.calls, 1)
			assert.Equal(t, sentSMS{"+447700900001", "+447700900002", tt.body}, sender.calls[0])
			assert.Equal(t, []string{events.TopicCommandSent}, pub.topics)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	cause := errors.New("carrier rejected")
	pub := &recordingPublisher{}
	c := newTestClient(&recordingSender{err: cause}, pub)

	_, err := c.OpenGates(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TriggerRelay, te.Command)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{events.TopicCommandFailed}, pub.topics)
}

func TestClient_NilPublisher(t *testing.T) {
	sender := &recordingSender{}
	c := NewClient(ClientConfig{PinCode: "1"}, sender, nil)
	_, err := c.CloseGates(context.Background())
	require.NoError(t, err)
}

func TestSenderFunc(t *testing.T) {
	var got string
	s := SenderFunc(func(_ context.Context, _, _, body string) (string, error) {
		got = body
		return "id", nil
	})
	id, err := NewClient(ClientConfig{PinCode: "9"}, s, nil).CheckBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", id)
	assert.Equal(t, "9BAL?", got)
}
