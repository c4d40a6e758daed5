// Package schedule asks the intercom for its credit balance on a cron
// schedule. The device answers by SMS, which reaches the chats through the
// normal inbound bridge.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/gateclaw/pkg/logger"
)

type BalanceChecker interface {
	CheckBalance(ctx context.Context) (string, error)
}

type Scheduler struct {
	expr    string
	checker BalanceChecker
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
}

func New(expr string, checker BalanceChecker) (*Scheduler, error) {
	g := gronx.New()
	if !g.IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Scheduler{
		expr:    expr,
		checker: checker,
		now:     time.Now,
		after:   time.After,
	}, nil
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t, false)
}

// Run blocks until ctx is cancelled, checking the balance at every tick.
func (s *Scheduler) Run(ctx context.Context) {
	logger.InfoCF("schedule", "Balance check scheduled", map[string]any{"cron": s.expr})

	for {
		next, err := s.Next(s.now())
		if err != nil {
			logger.ErrorCF("schedule", "Cannot compute next tick, stopping", map[string]any{
				"cron":  s.expr,
				"error": err.Error(),
			})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.after(time.Until(next)):
		}

		logger.InfoC("schedule", "Running scheduled balance check")
		if _, err := s.checker.CheckBalance(ctx); err != nil {
			logger.WarnCF("schedule", "Scheduled balance check failed", map[string]any{"error": err.Error()})
		}
	}
}
