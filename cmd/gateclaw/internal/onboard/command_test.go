package onboard

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gateclaw/pkg/auth"
	"github.com/tinyland-inc/gateclaw/pkg/config"
)

func TestNewOnboardCommand(t *testing.T) {
	cmd := NewOnboardCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "onboard", cmd.Use)
	assert.Equal(t, []string{"o"}, cmd.Aliases)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestOnboard_Twilio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	answers := strings.Join([]string{
		"+447700900001",
		"1234",
		"",
		"+447700900002",
		"AC123",
		"token",
		"OpenSesame",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, onboard(strings.NewReader(answers), &out, path))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "+447700900001", cfg.Device.PhoneNumber)
	assert.Equal(t, "1234", cfg.Device.PinCode)
	assert.Equal(t, "twilio", cfg.SMS.Provider)
	assert.Equal(t, "AC123", cfg.SMS.AccountSID)
	assert.Equal(t, "token", cfg.SMS.AuthToken)
	assert.Equal(t, "OpenSesame", cfg.Dialog.Passphrase)
	assert.NoError(t, cfg.Validate())
	assert.Contains(t, out.String(), "Config saved")
}

func TestOnboard_KeepsExistingSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	existing := config.DefaultConfig()
	existing.Device.PinCode = "987654"
	existing.Dialog.Passphrase = "Abracadabra"
	require.NoError(t, config.SaveConfig(path, existing))

	answers := "+447700900001\n\nlog\n+447700900002\n\n"
	require.NoError(t, onboard(strings.NewReader(answers), &bytes.Buffer{}, path))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "987654", cfg.Device.PinCode)
	assert.Equal(t, "log", cfg.SMS.Provider)
	assert.Equal(t, "Abracadabra", cfg.Dialog.Passphrase)
}

func TestOnboard_InputEndsEarly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	err := onboard(strings.NewReader("+447700900001\n"), &bytes.Buffer{}, path)
	assert.ErrorIs(t, err, auth.ErrNoInput)
	assert.NoFileExists(t, path)
}
