package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal"
	"github.com/tinyland-inc/gateclaw/pkg/bridge"
	"github.com/tinyland-inc/gateclaw/pkg/bus"
	"github.com/tinyland-inc/gateclaw/pkg/channels"
	"github.com/tinyland-inc/gateclaw/pkg/config"
	"github.com/tinyland-inc/gateclaw/pkg/dialog"
	"github.com/tinyland-inc/gateclaw/pkg/events"
	"github.com/tinyland-inc/gateclaw/pkg/health"
	"github.com/tinyland-inc/gateclaw/pkg/intent"
	"github.com/tinyland-inc/gateclaw/pkg/logger"
	"github.com/tinyland-inc/gateclaw/pkg/schedule"
	"github.com/tinyland-inc/gateclaw/pkg/session"
	"github.com/tinyland-inc/gateclaw/pkg/sms"
)

const smsWebhookPath = "/api/sms"

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Gateway.LogLevel))
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	publisher, err := events.New(cfg.Events.NATSURL)
	if err != nil {
		return fmt.Errorf("error connecting events: %w", err)
	}
	defer publisher.Close()

	gate, err := internal.NewGateClient(cfg, publisher)
	if err != nil {
		return err
	}

	recognizer, err := intent.NewFromConfig(cfg.Recognizer)
	if err != nil {
		return fmt.Errorf("error creating recognizer: %w", err)
	}

	registry := session.NewRegistry()
	msgBus := bus.NewMessageBus()
	bot := dialog.NewBot(registry, dialog.NewMainDialog(recognizer, gate, cfg.Dialog.Passphrase))

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}

	smsBridge := bridge.New(registry, channelManager, bridgeOptions(cfg, publisher)...)

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	healthServer.Handle(smsWebhookPath, smsBridge)
	channelManager.Mount(healthServer.Mux())
	healthServer.RegisterCheck("channels", func() (bool, string) {
		return len(channelManager.GetEnabledChannels()) > 0, fmt.Sprintf("%d sessions", registry.Len())
	})
	healthServer.RegisterCheck("bus", busCheck(msgBus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabledChannels := channelManager.GetEnabledChannels()
	if len(enabledChannels) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", enabledChannels)
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}

	if err := channelManager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}

	go bot.Run(ctx, msgBus)

	if cfg.Schedule.BalanceCheck != "" {
		scheduler, err := schedule.New(cfg.Schedule.BalanceCheck, gate)
		if err != nil {
			return err
		}
		go scheduler.Run(ctx)
		fmt.Printf("✓ Balance check scheduled: %s\n", cfg.Schedule.BalanceCheck)
	}

	go func() {
		if err := healthServer.Start(); err != nil {
			logger.ErrorCF("health", "HTTP server error", map[string]any{"error": err.Error()})
		}
	}()
	healthServer.SetReady(true)

	fmt.Printf("✓ Gateway started on %s\n", healthServer.Addr())
	fmt.Printf("✓ SMS webhook at http://%s%s\n", healthServer.Addr(), smsWebhookPath)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	healthServer.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.WarnCF("health", "HTTP server shutdown", map[string]any{"error": err.Error()})
	}
	cancel()
	msgBus.Close()
	if err := channelManager.StopAll(shutdownCtx); err != nil {
		logger.WarnCF("channels", "Channel shutdown", map[string]any{"error": err.Error()})
	}
	fmt.Println("✓ Gateway stopped")

	return nil
}

func bridgeOptions(cfg *config.Config, publisher events.Publisher) []bridge.Option {
	opts := []bridge.Option{bridge.WithPublisher(publisher)}
	if cfg.SMS.ValidateSignature && cfg.SMS.AuthToken != "" {
		opts = append(opts, bridge.WithSignatureValidation(
			sms.NewSignatureValidator(cfg.SMS.AuthToken),
			cfg.SMS.PublicURL,
		))
	}
	return opts
}

// busCheck reports not ready while either queue is full.
func busCheck(mb *bus.MessageBus) func() (bool, string) {
	return func() (bool, string) {
		in, out := mb.Pending()
		return in < bus.QueueSize && out < bus.QueueSize, fmt.Sprintf("%d inbound, %d outbound queued", in, out)
	}
}
