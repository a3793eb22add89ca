package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// BalanceView is the tenant-facing credit summary.
type BalanceView struct {
	Plan              string    `json:"plan"`
	BaseCredits       int       `json:"base_credits"`
	BonusCredits      int       `json:"bonus_credits"`
	UsedThisMonth     int       `json:"used_this_month"`
	Remaining         int       `json:"remaining"`
	OverageEnabled    bool      `json:"overage_enabled"`
	OverageUsed       int       `json:"overage_used,omitempty"`
	OverageLimit      int       `json:"overage_limit,omitempty"`
	BillingCycleStart time.Time `json:"billing_cycle_start"`
}

// TransactionView is one ledger row as surfaced to the tenant.
type TransactionView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	CandidateID  string    `json:"candidate_id,omitempty"`
	JobID        string    `json:"job_id,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreditService exposes read views over the ledger plus the operator
// adjustment path. Usage commits stay inside the pipeline.
type CreditService struct {
	Tenants domain.TenantRepository
	Credits domain.CreditLedger
}

// NewCreditService constructs a CreditService.
func NewCreditService(tenants domain.TenantRepository, credits domain.CreditLedger) CreditService {
	return CreditService{Tenants: tenants, Credits: credits}
}

// Balance returns the tenant's current credit position, rolling the
// billing cycle forward first when a month has elapsed.
func (s CreditService) Balance(ctx domain.Context, tenantID string) (BalanceView, error) {
	if rolled, err := s.Credits.ResetIfDue(ctx, tenantID); err != nil {
		slog.Warn("credit reset check failed",
			slog.String("tenant_id", tenantID),
			slog.Any("error", err))
	} else if rolled {
		slog.Info("billing cycle rolled on read", slog.String("tenant_id", tenantID))
	}
	t, err := s.Tenants.Get(ctx, tenantID)
	if err != nil {
		return BalanceView{}, err
	}
	remaining, err := s.Credits.Remaining(ctx, tenantID)
	if err != nil {
		return BalanceView{}, err
	}
	view := BalanceView{
		Plan:              string(t.Plan),
		BaseCredits:       t.BaseCredits,
		BonusCredits:      t.BonusCredits,
		UsedThisMonth:     t.CreditsUsedThisMonth,
		Remaining:         remaining,
		OverageEnabled:    t.OverageEnabled && t.Plan.OverageEligible(),
		BillingCycleStart: t.BillingCycleStart,
	}
	if view.OverageEnabled {
		view.OverageUsed = t.OverageUsedThisMonth
		view.OverageLimit = t.OverageLimit
	}
	return view, nil
}

// Transactions lists the tenant's most recent ledger rows, newest first.
func (s CreditService) Transactions(ctx domain.Context, tenantID string, limit int) ([]TransactionView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txs, err := s.Credits.ListTransactions(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		v := TransactionView{
			ID:           tx.ID,
			Type:         string(tx.Type),
			Amount:       tx.Amount,
			BalanceAfter: tx.BalanceAfter,
			Description:  tx.Description,
			CreatedAt:    tx.CreatedAt,
		}
		if tx.CandidateID != nil {
			v.CandidateID = *tx.CandidateID
		}
		if tx.JobID != nil {
			v.JobID = *tx.JobID
		}
		out = append(out, v)
	}
	return out, nil
}

// Adjust writes an operator adjustment (bonus grant or correction).
// Amount is signed; zero is rejected.
func (s CreditService) Adjust(ctx domain.Context, tenantID string, amount int, description string) error {
	if amount == 0 {
		return fmt.Errorf("%w: adjustment amount must be non-zero", domain.ErrInvalidArgument)
	}
	if _, err := s.Tenants.Get(ctx, tenantID); err != nil {
		return err
	}
	if err := s.Credits.Adjust(ctx, tenantID, amount, description); err != nil {
		return err
	}
	slog.Info("credit adjustment recorded",
		slog.String("tenant_id", tenantID),
		slog.Int("amount", amount))
	return nil
}
