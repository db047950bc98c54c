package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tillbook/tillbook/internal/accounting"
	"github.com/tillbook/tillbook/internal/platform/db"
)

// OwnerSource lists tenants that have books to warm.
type OwnerSource interface {
	Owners(ctx context.Context) ([]int64, error)
}

// NewOwnerSource returns an OwnerSource over the account_ledgers table.
func NewOwnerSource(store db.Store) OwnerSource {
	return &pgOwnerSource{store: store}
}

type pgOwnerSource struct {
	store db.Store
}

func (s *pgOwnerSource) Owners(ctx context.Context) ([]int64, error) {
	rows, err := s.store.Query(ctx, `SELECT DISTINCT owner_id FROM account_ledgers ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("jobs: list owners: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("jobs: scan owner: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReportsWarmupJob pre-builds the cached financial reports so the first
// request of the day does not pay for the build.
type ReportsWarmupJob struct {
	accounts *accounting.Service
	owners   OwnerSource
	logger   *slog.Logger
}

// NewReportsWarmupJob wires the warmup job.
func NewReportsWarmupJob(accounts *accounting.Service, owners OwnerSource, logger *slog.Logger) *ReportsWarmupJob {
	return &ReportsWarmupJob{accounts: accounts, owners: owners, logger: logger}
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := time.Now().UTC()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}
	yearStart := time.Date(asOf.Year(), time.April, 1, 0, 0, 0, 0, time.UTC)
	if yearStart.After(asOf) {
		yearStart = yearStart.AddDate(-1, 0, 0)
	}

	owners, err := j.owners.Owners(ctx)
	if err != nil {
		return err
	}
	for _, ownerID := range owners {
		if _, err := j.accounts.TrialBalance(ctx, ownerID, asOf); err != nil {
			return err
		}
		if _, err := j.accounts.ProfitAndLoss(ctx, ownerID, yearStart, asOf); err != nil {
			return err
		}
		if _, err := j.accounts.BalanceSheet(ctx, ownerID, asOf); err != nil {
			return err
		}
	}
	j.logger.Info("report cache warmed", slog.Int("owners", len(owners)))
	return nil
}
