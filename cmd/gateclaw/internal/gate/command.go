package gate

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal"
	"github.com/tinyland-inc/gateclaw/pkg/dialog"
	"github.com/tinyland-inc/gateclaw/pkg/events"
)

// operatorFactory is swapped in tests.
var operatorFactory = func() (dialog.GateOperator, func(), error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	publisher, err := events.New(cfg.Events.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	client, err := internal.NewGateClient(cfg, publisher)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, err
	}
	return client, func() { _ = publisher.Close() }, nil
}

func NewGateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Send a command straight to the intercom",
		Example: `  gateclaw gate open
  gateclaw gate balance`,
	}

	cmd.AddCommand(
		operationCommand("open", "Pulse the gate relay", func(ctx context.Context, g dialog.GateOperator) (string, error) {
			return g.OpenGates(ctx)
		}),
		operationCommand("close", "Release the gate relay", func(ctx context.Context, g dialog.GateOperator) (string, error) {
			return g.CloseGates(ctx)
		}),
		operationCommand("latch", "Hold the gates open until closed", func(ctx context.Context, g dialog.GateOperator) (string, error) {
			return g.LatchGates(ctx)
		}),
		operationCommand("balance", "Ask the intercom for its SIM credit", func(ctx context.Context, g dialog.GateOperator) (string, error) {
			return g.CheckBalance(ctx)
		}),
	)

	return cmd
}

type operation func(ctx context.Context, g dialog.GateOperator) (string, error)

func operationCommand(use, short string, op operation) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, closeFn, err := operatorFactory()
			if err != nil {
				return err
			}
			defer closeFn()
			return runOperation(cmd.Context(), cmd.OutOrStdout(), use, gate, op)
		},
	}
}

func runOperation(ctx context.Context, w io.Writer, name string, gate dialog.GateOperator, op operation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := op(ctx, gate)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Fprintf(w, "✓ %s sent (message %s)\n", name, id)
	if name == "balance" {
		fmt.Fprintln(w, "  The reply arrives by SMS and is relayed by the running gateway.")
	}
	return nil
}
