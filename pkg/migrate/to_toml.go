package migrate

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tinyland-inc/gateclaw/pkg/config"
)

// ToTOMLOptions controls JSON-to-TOML config migration.
type ToTOMLOptions struct {
	ConfigPath  string // JSON config path (default: ~/.gateclaw/config.json)
	OutputPath  string // TOML output path (default: same dir, .toml extension)
	DryRun      bool
	Force       bool
	KeepSecrets bool // copy credentials instead of blanking them
	Out         io.Writer
}

// ToTOMLResult summarizes the conversion.
type ToTOMLResult struct {
	OutputPath string
	Warnings   []string
}

type secretField struct {
	name  string
	env   string
	value *string
}

func secretFields(cfg *config.Config) []secretField {
	return []secretField{
		{"device.pin_code", "GATECLAW_DEVICE_PIN_CODE", &cfg.Device.PinCode},
		{"sms.auth_token", "GATECLAW_SMS_AUTH_TOKEN", &cfg.SMS.AuthToken},
		{"dialog.passphrase", "GATECLAW_DIALOG_PASSPHRASE", &cfg.Dialog.Passphrase},
		{"bot.app_password", "GATECLAW_BOT_APP_PASSWORD", &cfg.Bot.AppPassword},
		{"recognizer.api_key", "GATECLAW_RECOGNIZER_API_KEY", &cfg.Recognizer.APIKey},
		{"channels.telegram.token", "GATECLAW_CHANNELS_TELEGRAM_TOKEN", &cfg.Channels.Telegram.Token},
		{"channels.slack.bot_token", "GATECLAW_CHANNELS_SLACK_BOT_TOKEN", &cfg.Channels.Slack.BotToken},
		{"channels.slack.app_token", "GATECLAW_CHANNELS_SLACK_APP_TOKEN", &cfg.Channels.Slack.AppToken},
		{"channels.discord.token", "GATECLAW_CHANNELS_DISCORD_TOKEN", &cfg.Channels.Discord.Token},
		{"channels.feishu.app_secret", "GATECLAW_CHANNELS_FEISHU_APP_SECRET", &cfg.Channels.Feishu.AppSecret},
		{"channels.dingtalk.client_secret", "GATECLAW_CHANNELS_DINGTALK_CLIENT_SECRET", &cfg.Channels.DingTalk.ClientSecret},
	}
}

// RunToTOML converts a JSON config file to TOML.
func RunToTOML(opts ToTOMLOptions) (*ToTOMLResult, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".gateclaw", "config.json")
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = strings.TrimSuffix(configPath, ".json") + ".toml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	result := &ToTOMLResult{OutputPath: outputPath}
	data, err := configToTOML(cfg, opts.KeepSecrets, result)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		fmt.Fprintln(out, "# Generated TOML config (dry-run)")
		fmt.Fprint(out, data)
		return result, nil
	}

	if !opts.Force {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("output file already exists: %s (use --force to overwrite)", outputPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, []byte(data), 0o600); err != nil {
		return nil, err
	}

	return result, nil
}

// configToTOML renders cfg as TOML. Unless keepSecrets is set, credential
// fields are blanked and a warning names the environment variable that
// supplies them instead.
func configToTOML(cfg *config.Config, keepSecrets bool, result *ToTOMLResult) (string, error) {
	out := *cfg
	if !keepSecrets {
		for _, f := range secretFields(&out) {
			if *f.value == "" {
				continue
			}
			*f.value = ""
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: credential removed, set %s instead", f.name, f.env))
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# gateclaw configuration (generated from JSON)\n\n")
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return "", fmt.Errorf("encoding toml: %w", err)
	}
	return buf.String(), nil
}
