// GateClaw - Chat front-end for SMS controlled gate intercoms
// Built on the PicoClaw gateway: https://github.com/tinyland-inc/picoclaw
// License: MIT
//
// Copyright (c) 2026 GateClaw contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal"
	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal/chat"
	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal/gate"
	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal/gateway"
	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal/migrate"
	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal/onboard"
	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal/version"
)

func NewGateclawCommand() *cobra.Command {
	short := fmt.Sprintf("%s gateclaw - Gate intercom bot v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "gateclaw",
		Short:   short,
		Example: "gateclaw gateway",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		chat.NewChatCommand(),
		gateway.NewGatewayCommand(),
		gate.NewGateCommand(),
		migrate.NewMigrateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewGateclawCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
