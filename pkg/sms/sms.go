// Package sms carries gate commands to the intercom and acknowledges the
// carrier's webhook calls.
package sms

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/utils"
	"github.com/tinyland-inc/gateclaw/pkg/videx"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	api messageCreator
}

func NewTwilioSender(accountSID, authToken string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api}
}

func (s *TwilioSender) SendText(ctx context.Context, to, from, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", errors.New("twilio create message: response has no sid")
	}
	return *resp.Sid, nil
}

// LogSender writes messages to the log instead of sending them. It is
// meant for development against a device that is not connected.
type LogSender struct {
	seq atomic.Int64
}

func (s *LogSender) SendText(_ context.Context, to, from, body string) (string, error) {
	logger.InfoCF("sms", "SMS not sent (log provider)", map[string]any{
		"to":   utils.MaskPhoneNumber(to),
		"from": utils.MaskPhoneNumber(from),
		"body": body,
	})
	return fmt.Sprintf("LOG%06d", s.seq.Add(1)), nil
}

// NewSender returns the configured transport.
func NewSender(cfg config.SMSConfig) (videx.Sender, error) {
	switch cfg.Provider {
	case "", "twilio":
		if cfg.AccountSID == "" || cfg.AuthToken == "" {
			return nil, errors.New("twilio sender requires account_sid and auth_token")
		}
		return NewTwilioSender(cfg.AccountSID, cfg.AuthToken), nil
	case "log":
		return &LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// EmptyTwiML is the acknowledgement body for webhook calls that need no
// reply message.
func EmptyTwiML() string {
	doc, err := twiml.Messages(nil)
	if err != nil || doc == "" {
		return emptyTwiML
	}
	return doc
}

// SignatureValidator checks X-Twilio-Signature headers.
type SignatureValidator struct {
	rv twilioclient.RequestValidator
}

func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{rv: twilioclient.NewRequestValidator(authToken)}
}

// Validate reports whether signature matches url and the posted form
// params.
func (v *SignatureValidator) Validate(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return v.rv.Validate(url, params, signature)
}
