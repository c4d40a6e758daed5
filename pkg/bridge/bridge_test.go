package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gateclaw/pkg/events"
	"github.com/tinyland-inc/gateclaw/pkg/session"
)

type fakeDeliverer struct {
	mu     sync.Mutex
	got    map[string]string
	failOn string
}

func (d *fakeDeliverer) Deliver(_ context.Context, h session.ConversationHandle, text string) error {
	if h.UserID == d.failOn {
		return errors.New("endpoint gone")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.got == nil {
		d.got = make(map[string]string)
	}
	d.got[h.UserID] = text
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type stubValidator struct{ ok bool }

func (v stubValidator) Validate(string, map[string]string, string) bool { return v.ok }

func twoSessions() *session.Registry {
	r := session.NewRegistry()
	r.Upsert("alice", session.ConversationHandle{Channel: "webchat", ChatID: "c1"})
	r.Upsert("bob", session.ConversationHandle{Channel: "telegram", ChatID: "42"})
	return r
}

func TestHandleInboundSMS_BroadcastsBalance(t *testing.T) {
	d := &fakeDeliverer{}
	pub := &recordingPublisher{}
	b := New(twoSessions(), d, WithPublisher(pub))

	ack := b.HandleInboundSMS(context.Background(), map[string]string{
		"Body": "BAL=Yourbalanceis#2.98.Tocheck...",
	})

	assert.Equal(t, http.StatusOK, ack.StatusCode)
	assert.Equal(t, "text/xml", ack.ContentType)
	assert.Contains(t, ack.Body, "<Response")
	assert.Equal(t, map[string]string{
		"alice": "Your current balance is £2.98",
		"bob":   "Your current balance is £2.98",
	}, d.got)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.BalanceReceived{Amount: "2.98", Recipients: 2, Delivered: 2}, pub.events[0])
}

func TestHandleInboundSMS_OneFailureDoesNotStopOthers(t *testing.T) {
	d := &fakeDeliverer{failOn: "alice"}
	pub := &recordingPublisher{}
	b := New(twoSessions(), d, WithPublisher(pub))

	ack := b.HandleInboundSMS(context.Background(), map[string]string{"Body": "#10.50."})
	assert.Equal(t, http.StatusOK, ack.StatusCode)
	assert.Equal(t, map[string]string{"bob": "Your current balance is £10.50"}, d.got)
	assert.Equal(t, events.BalanceReceived{Amount: "10.50", Recipients: 2, Delivered: 1}, pub.events[0])
}

func TestHandleInboundSMS_AcknowledgesEverything(t *testing.T) {
	d := &fakeDeliverer{}
	b := New(twoSessions(), d)

	for _, form := range []map[string]string{
		{},
		{"From": "+447700900001"},
		{"Body": "OK VIDEX GSM"},
		{"Body": ""},
	} {
		ack := b.HandleInboundSMS(context.Background(), form)
		assert.Equal(t, http.StatusOK, ack.StatusCode)
		assert.Equal(t, "text/xml", ack.ContentType)
	}
	assert.Empty(t, d.got)
}

func TestHandleInboundSMS_NoSessions(t *testing.T) {
	d := &fakeDeliverer{}
	b := New(session.NewRegistry(), d)
	ack := b.HandleInboundSMS(context.Background(), map[string]string{"Body": "2.98"})
	assert.Equal(t, http.StatusOK, ack.StatusCode)
	assert.Empty(t, d.got)
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP(t *testing.T) {
	d := &fakeDeliverer{}
	b := New(twoSessions(), d)

	rec := postForm(t, b, url.Values{"Body": {"BAL=Yourbalanceis#2.98.Tocheck..."}, "From": {"+447700900001"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Response")
	assert.Len(t, d.got, 2)
}

func TestServeHTTP_BadSignatureIgnoredButAcknowledged(t *testing.T) {
	d := &fakeDeliverer{}
	b := New(twoSessions(), d, WithSignatureValidation(stubValidator{ok: false}, "https://gate.example.com/api/sms"))

	rec := postForm(t, b, url.Values{"Body": {"2.98"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, d.got)
}

func TestServeHTTP_GoodSignature(t *testing.T) {
	d := &fakeDeliverer{}
	b := New(twoSessions(), d, WithSignatureValidation(stubValidator{ok: true}, ""))

	rec := postForm(t, b, url.Values{"Body": {"2.98"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, d.got, 2)
}

func TestServeHTTP_GetIsAcknowledged(t *testing.T) {
	b := New(twoSessions(), &fakeDeliverer{})
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sms", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
