package chat

import (
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var (
		message    string
		sessionKey string
		logSMS     bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the gate dialog from the terminal",
		Args:  cobra.NoArgs,
		Example: `  gateclaw chat
  gateclaw chat -m "check balance"
  gateclaw chat --log-sms`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return chatCmd(message, sessionKey, logSMS, debug)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", "cli:default", "Conversation key")
	cmd.Flags().BoolVar(&logSMS, "log-sms", false, "Log device commands instead of sending SMS")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
