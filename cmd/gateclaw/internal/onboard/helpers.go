package onboard

import (
	"fmt"
	"io"

	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal"
	"github.com/tinyland-inc/gateclaw/pkg/auth"
	"github.com/tinyland-inc/gateclaw/pkg/config"
)

func onboard(in io.Reader, out io.Writer, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading existing config: %w", err)
	}

	fmt.Fprintf(out, "%s gateclaw setup\n\n", internal.Logo)
	p := auth.NewPrompter(in, out)

	if err := askDevice(p, cfg); err != nil {
		return err
	}
	if err := askSMS(p, cfg); err != nil {
		return err
	}
	if cfg.Dialog.Passphrase, err = p.AskSecret("Magic word", cfg.Dialog.Passphrase); err != nil {
		return err
	}

	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Fprintf(out, "\n✓ Config saved to %s\n", configPath)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "⚠ %v\n", err)
	}
	fmt.Fprintln(out, "\nNext: enable a channel in the config, then run 'gateclaw gateway'.")
	return nil
}

func askDevice(p *auth.Prompter, cfg *config.Config) error {
	var err error
	if cfg.Device.PhoneNumber, err = p.Ask("Intercom phone number (E.164)", cfg.Device.PhoneNumber); err != nil {
		return err
	}
	cfg.Device.PinCode, err = p.AskSecret("Intercom pin code", cfg.Device.PinCode)
	return err
}

func askSMS(p *auth.Prompter, cfg *config.Config) error {
	var err error
	if cfg.SMS.Provider, err = p.Ask("SMS provider (twilio or log)", cfg.SMS.Provider); err != nil {
		return err
	}
	if cfg.SMS.FromNumber, err = p.Ask("Sending phone number (E.164)", cfg.SMS.FromNumber); err != nil {
		return err
	}
	if cfg.SMS.Provider != "twilio" {
		return nil
	}
	if cfg.SMS.AccountSID, err = p.AskSecret("Twilio account SID", cfg.SMS.AccountSID); err != nil {
		return err
	}
	cfg.SMS.AuthToken, err = p.AskSecret("Twilio auth token", cfg.SMS.AuthToken)
	return err
}
