package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// CreditResetScheduler rolls overdue billing cycles on a cron schedule.
// Reads already roll cycles lazily; the nightly sweep covers tenants
// that never call in.
type CreditResetScheduler struct {
	ledger domain.CreditLedger
	spec   string
	cron   *cron.Cron
}

// NewCreditResetScheduler builds the scheduler; an empty spec falls back
// to midnight UTC.
func NewCreditResetScheduler(ledger domain.CreditLedger, spec string) *CreditResetScheduler {
	if ledger == nil {
		return nil
	}
	if spec == "" {
		spec = "0 0 * * *"
	}
	return &CreditResetScheduler{ledger: ledger, spec: spec}
}

// Start registers the cron entry and begins running it. Call Stop on
// shutdown.
func (s *CreditResetScheduler) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	slog.Info("credit reset scheduler started", slog.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop, waiting for a running sweep to finish.
func (s *CreditResetScheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce rolls every overdue cycle now and returns the count.
func (s *CreditResetScheduler) RunOnce(ctx context.Context) int {
	n, err := s.ledger.ResetAllDue(ctx)
	if err != nil {
		slog.Error("credit cycle sweep failed", slog.Any("error", err))
		return 0
	}
	if n > 0 {
		slog.Info("credit cycles rolled", slog.Int("tenants", n))
	}
	return n
}
