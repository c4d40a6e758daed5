package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/tinyland-inc/gateclaw/pkg/utils"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Device     DeviceConfig     `json:"device"     toml:"device"`
	SMS        SMSConfig        `json:"sms"        toml:"sms"`
	Dialog     DialogConfig     `json:"dialog"     toml:"dialog"`
	Bot        BotConfig        `json:"bot"        toml:"bot"`
	Recognizer RecognizerConfig `json:"recognizer" toml:"recognizer"`
	Gateway    GatewayConfig    `json:"gateway"    toml:"gateway"`
	Channels   ChannelsConfig   `json:"channels"   toml:"channels"`
	Events     EventsConfig     `json:"events"     toml:"events"`
	Schedule   ScheduleConfig   `json:"schedule"   toml:"schedule"`
}

// DeviceConfig identifies the intercom: the SIM number it listens on and
// the pin prefixed to every command.
type DeviceConfig struct {
	PinCode     string `env:"GATECLAW_DEVICE_PIN_CODE"     json:"pin_code"     toml:"pin_code"`
	PhoneNumber string `env:"GATECLAW_DEVICE_PHONE_NUMBER" json:"phone_number" toml:"phone_number"`
}

type SMSConfig struct {
	Provider          string `env:"GATECLAW_SMS_PROVIDER"           json:"provider"           toml:"provider"` // "twilio" or "log"
	AccountSID        string `env:"GATECLAW_SMS_ACCOUNT_SID"        json:"account_sid"        toml:"account_sid"`
	AuthToken         string `env:"GATECLAW_SMS_AUTH_TOKEN"         json:"auth_token"         toml:"auth_token"`
	FromNumber        string `env:"GATECLAW_SMS_FROM_NUMBER"        json:"from_number"        toml:"from_number"`
	ValidateSignature bool   `env:"GATECLAW_SMS_VALIDATE_SIGNATURE" json:"validate_signature" toml:"validate_signature"`
	PublicURL         string `env:"GATECLAW_SMS_PUBLIC_URL"         json:"public_url"         toml:"public_url"` // externally visible webhook URL, used for signature checks
}

type DialogConfig struct {
	Passphrase string `env:"GATECLAW_DIALOG_PASSPHRASE" json:"passphrase" toml:"passphrase"`
}

// BotConfig is the application identity used when calling back into
// Bot Framework style service endpoints.
type BotConfig struct {
	AppID       string `env:"GATECLAW_BOT_APP_ID"       json:"app_id"       toml:"app_id"`
	AppPassword string `env:"GATECLAW_BOT_APP_PASSWORD" json:"app_password" toml:"app_password"`
	TokenURL    string `env:"GATECLAW_BOT_TOKEN_URL"    json:"token_url"    toml:"token_url"`
	Scope       string `env:"GATECLAW_BOT_SCOPE"        json:"scope"        toml:"scope"`
}

type RecognizerConfig struct {
	Provider string `env:"GATECLAW_RECOGNIZER_PROVIDER" json:"provider"           toml:"provider"` // keyword, anthropic, openai
	Model    string `env:"GATECLAW_RECOGNIZER_MODEL"    json:"model,omitempty"    toml:"model,omitempty"`
	APIKey   string `env:"GATECLAW_RECOGNIZER_API_KEY"  json:"api_key,omitempty"  toml:"api_key,omitempty"`
	APIBase  string `env:"GATECLAW_RECOGNIZER_API_BASE" json:"api_base,omitempty" toml:"api_base,omitempty"`
}

type GatewayConfig struct {
	Host     string `env:"GATECLAW_GATEWAY_HOST"      json:"host"      toml:"host"`
	Port     int    `env:"GATECLAW_GATEWAY_PORT"      json:"port"      toml:"port"`
	LogLevel string `env:"GATECLAW_GATEWAY_LOG_LEVEL" json:"log_level" toml:"log_level"`
}

type ChannelsConfig struct {
	WebChat      WebChatConfig      `json:"webchat"      toml:"webchat"`
	Telegram     TelegramConfig     `json:"telegram"     toml:"telegram"`
	Slack        SlackConfig        `json:"slack"        toml:"slack"`
	Discord      DiscordConfig      `json:"discord"      toml:"discord"`
	BotFramework BotFrameworkConfig `json:"botframework" toml:"botframework"`
	Feishu       FeishuConfig       `json:"feishu"       toml:"feishu"`
	DingTalk     DingTalkConfig     `json:"dingtalk"     toml:"dingtalk"`
}

type WebChatConfig struct {
	Enabled   bool                `env:"GATECLAW_CHANNELS_WEBCHAT_ENABLED"    json:"enabled"    toml:"enabled"`
	Path      string              `env:"GATECLAW_CHANNELS_WEBCHAT_PATH"       json:"path"       toml:"path"`
	AllowFrom FlexibleStringSlice `env:"GATECLAW_CHANNELS_WEBCHAT_ALLOW_FROM" json:"allow_from" toml:"allow_from"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"GATECLAW_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"    toml:"enabled"`
	Token     string              `env:"GATECLAW_CHANNELS_TELEGRAM_TOKEN"      json:"token"      toml:"token"`
	Proxy     string              `env:"GATECLAW_CHANNELS_TELEGRAM_PROXY"      json:"proxy"      toml:"proxy"`
	AllowFrom FlexibleStringSlice `env:"GATECLAW_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from" toml:"allow_from"`
}

type SlackConfig struct {
	Enabled   bool                `env:"GATECLAW_CHANNELS_SLACK_ENABLED"    json:"enabled"    toml:"enabled"`
	BotToken  string              `env:"GATECLAW_CHANNELS_SLACK_BOT_TOKEN"  json:"bot_token"  toml:"bot_token"`
	AppToken  string              `env:"GATECLAW_CHANNELS_SLACK_APP_TOKEN"  json:"app_token"  toml:"app_token"`
	AllowFrom FlexibleStringSlice `env:"GATECLAW_CHANNELS_SLACK_ALLOW_FROM" json:"allow_from" toml:"allow_from"`
}

type DiscordConfig struct {
	Enabled     bool                `env:"GATECLAW_CHANNELS_DISCORD_ENABLED"      json:"enabled"      toml:"enabled"`
	Token       string              `env:"GATECLAW_CHANNELS_DISCORD_TOKEN"        json:"token"        toml:"token"`
	AllowFrom   FlexibleStringSlice `env:"GATECLAW_CHANNELS_DISCORD_ALLOW_FROM"   json:"allow_from"   toml:"allow_from"`
	MentionOnly bool                `env:"GATECLAW_CHANNELS_DISCORD_MENTION_ONLY" json:"mention_only" toml:"mention_only"`
}

// BotFrameworkConfig enables the activity endpoint. Credentials come from
// BotConfig so the same identity is used for replies and proactive sends.
type BotFrameworkConfig struct {
	Enabled   bool                `env:"GATECLAW_CHANNELS_BOTFRAMEWORK_ENABLED"    json:"enabled"    toml:"enabled"`
	Path      string              `env:"GATECLAW_CHANNELS_BOTFRAMEWORK_PATH"       json:"path"       toml:"path"`
	AllowFrom FlexibleStringSlice `env:"GATECLAW_CHANNELS_BOTFRAMEWORK_ALLOW_FROM" json:"allow_from" toml:"allow_from"`
}

type FeishuConfig struct {
	Enabled           bool                `env:"GATECLAW_CHANNELS_FEISHU_ENABLED"            json:"enabled"            toml:"enabled"`
	AppID             string              `env:"GATECLAW_CHANNELS_FEISHU_APP_ID"             json:"app_id"             toml:"app_id"`
	AppSecret         string              `env:"GATECLAW_CHANNELS_FEISHU_APP_SECRET"         json:"app_secret"         toml:"app_secret"`
	EncryptKey        string              `env:"GATECLAW_CHANNELS_FEISHU_ENCRYPT_KEY"        json:"encrypt_key"        toml:"encrypt_key"`
	VerificationToken string              `env:"GATECLAW_CHANNELS_FEISHU_VERIFICATION_TOKEN" json:"verification_token" toml:"verification_token"`
	AllowFrom         FlexibleStringSlice `env:"GATECLAW_CHANNELS_FEISHU_ALLOW_FROM"         json:"allow_from"         toml:"allow_from"`
}

type DingTalkConfig struct {
	Enabled      bool                `env:"GATECLAW_CHANNELS_DINGTALK_ENABLED"       json:"enabled"       toml:"enabled"`
	ClientID     string              `env:"GATECLAW_CHANNELS_DINGTALK_CLIENT_ID"     json:"client_id"     toml:"client_id"`
	ClientSecret string              `env:"GATECLAW_CHANNELS_DINGTALK_CLIENT_SECRET" json:"client_secret" toml:"client_secret"`
	AllowFrom    FlexibleStringSlice `env:"GATECLAW_CHANNELS_DINGTALK_ALLOW_FROM"    json:"allow_from"    toml:"allow_from"`
}

type EventsConfig struct {
	NATSURL string `env:"GATECLAW_EVENTS_NATS_URL" json:"nats_url" toml:"nats_url"` // empty = no events
}

type ScheduleConfig struct {
	BalanceCheck string `env:"GATECLAW_SCHEDULE_BALANCE_CHECK" json:"balance_check" toml:"balance_check"` // cron expression, empty = disabled
}

// ErrInvalidConfig wraps every validation failure so callers can tell a
// bad config apart from an I/O error.
var ErrInvalidConfig = errors.New("invalid config")

func DefaultConfig() *Config {
	return &Config{
		SMS: SMSConfig{
			Provider: "twilio",
		},
		Bot: BotConfig{
			TokenURL: "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token",
			Scope:    "https://api.botframework.com/.default",
		},
		Recognizer: RecognizerConfig{
			Provider: "keyword",
		},
		Gateway: GatewayConfig{
			Host:     "127.0.0.1",
			Port:     18790,
			LogLevel: "info",
		},
		Channels: ChannelsConfig{
			WebChat:      WebChatConfig{Enabled: true, Path: "/ws"},
			BotFramework: BotFrameworkConfig{Path: "/api/messages"},
		},
	}
}

// LoadTOMLConfig loads configuration from a .toml file, then applies the
// environment overlay.
func LoadTOMLConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the fields the gateway cannot run without.
func (c *Config) Validate() error {
	var problems []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" is required")
		}
	}

	require("device.pin_code", c.Device.PinCode)
	require("device.phone_number", c.Device.PhoneNumber)
	require("sms.from_number", c.SMS.FromNumber)
	require("dialog.passphrase", c.Dialog.Passphrase)

	if c.Device.PhoneNumber != "" {
		if err := utils.ValidatePhoneNumber(c.Device.PhoneNumber); err != nil {
			problems = append(problems, "device.phone_number: "+err.Error())
		}
	}
	if c.SMS.FromNumber != "" {
		if err := utils.ValidatePhoneNumber(c.SMS.FromNumber); err != nil {
			problems = append(problems, "sms.from_number: "+err.Error())
		}
	}

	switch c.SMS.Provider {
	case "twilio":
		require("sms.account_sid", c.SMS.AccountSID)
		require("sms.auth_token", c.SMS.AuthToken)
	case "log":
	default:
		problems = append(problems, fmt.Sprintf("sms.provider %q is not supported", c.SMS.Provider))
	}

	switch c.Recognizer.Provider {
	case "", "keyword":
	case "anthropic", "openai":
		require("recognizer.api_key", c.Recognizer.APIKey)
	default:
		problems = append(problems, fmt.Sprintf("recognizer.provider %q is not supported", c.Recognizer.Provider))
	}

	if c.Channels.BotFramework.Enabled {
		require("bot.app_id", c.Bot.AppID)
		require("bot.app_password", c.Bot.AppPassword)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// EnabledChannels lists the configured channel names in a stable order.
func (c *Config) EnabledChannels() []string {
	var names []string
	ch := c.Channels
	if ch.WebChat.Enabled {
		names = append(names, "webchat")
	}
	if ch.Telegram.Enabled {
		names = append(names, "telegram")
	}
	if ch.Slack.Enabled {
		names = append(names, "slack")
	}
	if ch.Discord.Enabled {
		names = append(names, "discord")
	}
	if ch.BotFramework.Enabled {
		names = append(names, "botframework")
	}
	if ch.Feishu.Enabled {
		names = append(names, "feishu")
	}
	if ch.DingTalk.Enabled {
		names = append(names, "dingtalk")
	}
	return names
}

// ExpandHome resolves a leading ~ against the user's home directory.
func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
