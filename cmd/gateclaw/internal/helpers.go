package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/events"
	"github.com/tinyland-inc/gateclaw/pkg/sms"
	"github.com/tinyland-inc/gateclaw/pkg/videx"
)

const Logo = "🚧"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gateclaw", "config.json")
}

func GetTOMLConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gateclaw", "config.toml")
}

// LoadConfig reads config.toml when it exists, config.json otherwise.
func LoadConfig() (*config.Config, error) {
	tomlPath := GetTOMLConfigPath()
	if _, err := os.Stat(tomlPath); err == nil {
		cfg, err := config.LoadTOMLConfig(tomlPath)
		if err != nil {
			return nil, fmt.Errorf("error loading toml config: %w", err)
		}
		return cfg, nil
	}

	return config.LoadConfig(GetConfigPath())
}

// NewGateClient builds the device client from config.
func NewGateClient(cfg *config.Config, publisher events.Publisher) (*videx.Client, error) {
	sender, err := sms.NewSender(cfg.SMS)
	if err != nil {
		return nil, fmt.Errorf("error creating sms sender: %w", err)
	}
	return videx.NewClient(videx.ClientConfig{
		PinCode:      cfg.Device.PinCode,
		DeviceNumber: cfg.Device.PhoneNumber,
		OwnNumber:    cfg.SMS.FromNumber,
	}, sender, publisher), nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
