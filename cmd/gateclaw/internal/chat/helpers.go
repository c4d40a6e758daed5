package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal"
	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/dialog"
	"github.com/tinyland-inc/gateclaw/pkg/events"
	"github.com/tinyland-inc/gateclaw/pkg/intent"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/session"
)

const cliUser = "cli-user"

func chatCmd(message, sessionKey string, logSMS, debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if logSMS {
		cfg.SMS.Provider = "log"
	}

	gate, err := internal.NewGateClient(cfg, &events.NoopPublisher{})
	if err != nil {
		return err
	}
	recognizer, err := intent.NewFromConfig(cfg.Recognizer)
	if err != nil {
		return fmt.Errorf("error creating recognizer: %w", err)
	}

	s := &terminal{
		bot: dialog.NewBot(session.NewRegistry(), dialog.NewMainDialog(recognizer, gate, cfg.Dialog.Passphrase)),
		key: sessionKey,
		out: os.Stdout,
	}

	ctx := context.Background()
	if message != "" {
		s.send(ctx, message)
		return nil
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", internal.Logo)
	s.welcome(ctx)
	interactiveMode(ctx, s)

	return nil
}

// terminal runs the dialog in-process for one console conversation.
type terminal struct {
	bot *dialog.Bot
	key string
	out io.Writer
}

func (s *terminal) message(kind bus.MessageKind, text string) bus.InboundMessage {
	return bus.InboundMessage{
		Kind:       kind,
		Channel:    "cli",
		SenderID:   cliUser,
		ChatID:     s.key,
		Content:    text,
		BotID:      "gateclaw",
		SessionKey: s.key,
	}
}

func (s *terminal) responder() dialog.Responder {
	return dialog.ResponderFunc(func(_ context.Context, text string) error {
		_, err := fmt.Fprintf(s.out, "\n%s %s\n", internal.Logo, text)
		return err
	})
}

func (s *terminal) send(ctx context.Context, text string) {
	s.bot.HandleMessage(ctx, s.message(bus.KindMessage, text), s.responder())
}

func (s *terminal) welcome(ctx context.Context) {
	msg := s.message(bus.KindConversationUpdate, "")
	msg.MembersAdded = []string{cliUser}
	s.bot.HandleMessage(ctx, msg, s.responder())
	fmt.Fprintln(s.out)
}

func interactiveMode(ctx context.Context, s *terminal) {
	prompt := fmt.Sprintf("%s You: ", internal.Logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".gateclaw_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, s, os.Stdin)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if !handleLine(ctx, s, line) {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, s *terminal, in io.Reader) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(s.out, "%s You: ", internal.Logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(s.out, "Error reading input: %v\n", err)
			continue
		}

		if !handleLine(ctx, s, line) {
			return
		}
	}
}

// handleLine returns false when the user asked to leave.
func handleLine(ctx context.Context, s *terminal, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Fprintln(s.out, "Goodbye!")
		return false
	}

	s.send(ctx, input)
	fmt.Fprintln(s.out)
	return true
}
