package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Device.PinCode = "1234"
	cfg.Device.PhoneNumber = "+447700900001"
	cfg.SMS.AccountSID = "AC123"
	cfg.SMS.AuthToken = "secret"
	cfg.SMS.FromNumber = "+447700900002"
	cfg.Dialog.Passphrase = "OpenSesame"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "twilio", cfg.SMS.Provider)
	assert.Equal(t, "keyword", cfg.Recognizer.Provider)
	assert.Equal(t, 18790, cfg.Gateway.Port)
	assert.True(t, cfg.Channels.WebChat.Enabled)
	assert.Equal(t, []string{"webchat"}, cfg.EnabledChannels())
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Gateway, cfg.Gateway)
}

func TestLoadConfig_JSONWithEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"device": {"pin_code": "1111", "phone_number": "+447700900001"},
		"dialog": {"passphrase": "fromfile"},
		"channels": {"telegram": {"enabled": true, "allow_from": [12345, "@alice"]}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("GATECLAW_DIALOG_PASSPHRASE", "fromenv")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "1111", cfg.Device.PinCode)
	assert.Equal(t, "fromenv", cfg.Dialog.Passphrase)
	assert.Equal(t, FlexibleStringSlice{"12345", "@alice"}, cfg.Channels.Telegram.AllowFrom)
	// defaults survive a partial file
	assert.Equal(t, "twilio", cfg.SMS.Provider)
}

func TestLoadTOMLConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[device]
pin_code = "9999"
phone_number = "+447700900001"

[sms]
provider = "log"
from_number = "+447700900002"

[dialog]
passphrase = "OpenSesame"

[channels.slack]
enabled = true
bot_token = "xoxb-1"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadTOMLConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Device.PinCode)
	assert.Equal(t, "log", cfg.SMS.Provider)
	assert.True(t, cfg.Channels.Slack.Enabled)
	assert.Equal(t, "xoxb-1", cfg.Channels.Slack.BotToken)
	assert.NoError(t, cfg.Validate())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := validConfig()
	require.NoError(t, SaveConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Device, loaded.Device)
	assert.Equal(t, cfg.Dialog, loaded.Dialog)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Dialog.Passphrase = ""
	cfg.Device.PhoneNumber = "07700900001"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "dialog.passphrase is required")
	assert.Contains(t, err.Error(), "device.phone_number")

	cfg = validConfig()
	cfg.Recognizer.Provider = "anthropic"
	assert.ErrorContains(t, cfg.Validate(), "recognizer.api_key")

	cfg = validConfig()
	cfg.Channels.BotFramework.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "bot.app_id")

	cfg = validConfig()
	cfg.SMS.Provider = "carrier-pigeon"
	assert.ErrorContains(t, cfg.Validate(), "not supported")
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".gateclaw"), ExpandHome("~/.gateclaw"))
	assert.Equal(t, "/etc/gateclaw", ExpandHome("/etc/gateclaw"))
	assert.Equal(t, "", ExpandHome(""))
}
