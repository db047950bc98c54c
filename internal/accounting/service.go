package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tillbook/tillbook/internal/accounting/reports"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Service exposes chart-of-accounts maintenance, voucher posting, and the
// financial statements.
type Service struct {
	repo   Repository
	uow    *db.Manager
	cache  *ReportCache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the accounting service. cache may be nil when Redis is
// disabled; reports are then built on every request.
func NewService(repo Repository, uow *db.Manager, cache *ReportCache, logger *slog.Logger) *Service {
	return &Service{repo: repo, uow: uow, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// --- chart of accounts ---

func (s *Service) ListGroups(ctx context.Context, ownerID int64) ([]Group, error) {
	return s.repo.ListGroups(ctx, nil, ownerID)
}

func (s *Service) CreateGroup(ctx context.Context, ownerID int64, in GroupInput) (*Group, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	if !in.Nature.Valid() {
		return nil, shared.Validationf("unknown nature %q", in.Nature)
	}
	if in.ParentID != nil {
		parent, err := s.repo.GetGroup(ctx, nil, ownerID, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Nature != in.Nature {
			return nil, shared.Validationf("child group nature %q must match parent nature %q", in.Nature, parent.Nature)
		}
	}
	g := &Group{OwnerID: ownerID, Name: in.Name, Nature: in.Nature, ParentID: in.ParentID}
	if err := s.repo.InsertGroup(ctx, nil, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) UpdateGroup(ctx context.Context, ownerID, id int64, in GroupInput) (*Group, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	if !in.Nature.Valid() {
		return nil, shared.Validationf("unknown nature %q", in.Nature)
	}
	if in.ParentID != nil && *in.ParentID == id {
		return nil, shared.Validationf("group cannot be its own parent")
	}
	g, err := s.repo.GetGroup(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	g.Name = in.Name
	g.Nature = in.Nature
	g.ParentID = in.ParentID
	if err := s.repo.UpdateGroup(ctx, nil, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) DeleteGroup(ctx context.Context, ownerID, id int64) error {
	count, err := s.repo.CountGroupDependents(ctx, nil, ownerID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrGroupInUse
	}
	return s.repo.DeleteGroup(ctx, nil, ownerID, id)
}

// Chart resolves the full chart of accounts, failing on structural defects.
func (s *Service) Chart(ctx context.Context, ownerID int64) (*Chart, error) {
	groups, err := s.repo.ListGroups(ctx, nil, ownerID)
	if err != nil {
		return nil, err
	}
	ledgers, err := s.repo.ListLedgers(ctx, nil, ownerID)
	if err != nil {
		return nil, err
	}
	return BuildChart(groups, ledgers)
}

func (s *Service) ListLedgers(ctx context.Context, ownerID int64) ([]Ledger, error) {
	return s.repo.ListLedgers(ctx, nil, ownerID)
}

func (s *Service) CreateLedger(ctx context.Context, ownerID int64, in LedgerInput) (*Ledger, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, nil, ownerID, in.GroupID); err != nil {
		return nil, fmt.Errorf("ledger group: %w", err)
	}
	l := &Ledger{
		OwnerID:        ownerID,
		GroupID:        in.GroupID,
		Name:           in.Name,
		OpeningBalance: in.OpeningBalance,
	}
	if err := s.repo.InsertLedger(ctx, nil, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) UpdateLedger(ctx context.Context, ownerID, id int64, in LedgerInput) (*Ledger, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	l, err := s.repo.GetLedger(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	if in.GroupID != l.GroupID {
		if _, err := s.repo.GetGroup(ctx, nil, ownerID, in.GroupID); err != nil {
			return nil, fmt.Errorf("ledger group: %w", err)
		}
	}
	l.Name = in.Name
	l.GroupID = in.GroupID
	if err := s.repo.UpdateLedger(ctx, nil, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) DeleteLedger(ctx context.Context, ownerID, id int64) error {
	count, err := s.repo.CountLedgerLines(ctx, nil, ownerID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrLedgerInUse
	}
	return s.repo.DeleteLedger(ctx, nil, ownerID, id)
}

// --- vouchers ---

// CreateVoucher validates, numbers, and posts a voucher, applying each line to
// its ledger's running balance inside one transaction.
func (s *Service) CreateVoucher(ctx context.Context, ownerID int64, in CreateVoucherInput) (*Voucher, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	v := &Voucher{
		OwnerID:   ownerID,
		Type:      in.Type,
		Date:      date,
		Narration: in.Narration,
		Status:    VoucherStatusActive,
	}
	for _, line := range in.Lines {
		v.Lines = append(v.Lines, VoucherLine{
			LedgerID: line.LedgerID,
			Debit:    line.Debit,
			Credit:   line.Credit,
		})
	}

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		// Every referenced ledger must belong to the owner.
		for _, line := range v.Lines {
			if _, err := s.repo.GetLedger(ctx, q, ownerID, line.LedgerID); err != nil {
				return fmt.Errorf("voucher line ledger %d: %w", line.LedgerID, err)
			}
		}

		seq, err := s.repo.CountVouchersByPrefix(ctx, q, ownerID, in.Type.Prefix(), date.Year())
		if err != nil {
			return err
		}
		v.Number = fmt.Sprintf("%s-%d-%04d", in.Type.Prefix(), date.Year(), seq+1)

		if err := s.repo.InsertVoucher(ctx, q, v); err != nil {
			return err
		}
		for _, line := range v.Lines {
			if err := s.repo.AddLedgerBalance(ctx, q, ownerID, line.LedgerID, line.Net()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
	s.logger.Info("voucher posted",
		slog.String("number", v.Number), slog.Int64("owner_id", ownerID), slog.Int("lines", len(v.Lines)))
	return v, nil
}

func (s *Service) GetVoucher(ctx context.Context, ownerID, id int64) (*Voucher, error) {
	return s.repo.GetVoucher(ctx, nil, ownerID, id)
}

func (s *Service) ListVouchers(ctx context.Context, ownerID int64, page shared.Page) ([]Voucher, error) {
	return s.repo.ListVouchers(ctx, nil, ownerID, page.Clamp(200))
}

// VoidVoucher reverses the voucher's effect on every ledger it touched and
// marks it void. The lines stay on file for the audit trail.
func (s *Service) VoidVoucher(ctx context.Context, ownerID, id int64) (*Voucher, error) {
	var voided *Voucher
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		v, err := s.repo.GetVoucher(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		if v.Status == VoucherStatusVoid {
			return shared.Validationf("voucher %s is already void", v.Number)
		}
		for _, line := range v.Lines {
			if err := s.repo.AddLedgerBalance(ctx, q, ownerID, line.LedgerID, -line.Net()); err != nil {
				return err
			}
		}
		if err := s.repo.SetVoucherStatus(ctx, q, ownerID, id, VoucherStatusVoid); err != nil {
			return err
		}
		v.Status = VoucherStatusVoid
		voided = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
	s.logger.Info("voucher voided", slog.String("number", voided.Number), slog.Int64("owner_id", ownerID))
	return voided, nil
}

// --- reports ---

func (s *Service) TrialBalance(ctx context.Context, ownerID int64, asOf time.Time) (reports.TrialBalance, error) {
	var tb reports.TrialBalance
	key, err := s.cache.Key(ctx, "reports", "tb", fmt.Sprint(ownerID), asOf.Format("2006-01-02"))
	if err != nil {
		return tb, err
	}
	err = s.cache.FetchJSON(ctx, key, &tb, func(ctx context.Context) (any, error) {
		closings, err := s.closings(ctx, ownerID, asOf)
		if err != nil {
			return nil, err
		}
		return reports.BuildTrialBalance(closings), nil
	})
	return tb, err
}

func (s *Service) ProfitAndLoss(ctx context.Context, ownerID int64, from, to time.Time) (reports.ProfitAndLoss, error) {
	var pl reports.ProfitAndLoss
	key, err := s.cache.Key(ctx, "reports", "pl", fmt.Sprint(ownerID),
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return pl, err
	}
	err = s.cache.FetchJSON(ctx, key, &pl, func(ctx context.Context) (any, error) {
		movements, err := s.movements(ctx, ownerID, from, to)
		if err != nil {
			return nil, err
		}
		return reports.BuildProfitAndLoss(movements), nil
	})
	return pl, err
}

// BalanceSheet builds the position statement as of a date. The net result of
// all income and expense activity up to that date is injected on the
// liabilities side so the sheet ties out.
func (s *Service) BalanceSheet(ctx context.Context, ownerID int64, asOf time.Time) (reports.BalanceSheet, error) {
	var bs reports.BalanceSheet
	key, err := s.cache.Key(ctx, "reports", "bs", fmt.Sprint(ownerID), asOf.Format("2006-01-02"))
	if err != nil {
		return bs, err
	}
	err = s.cache.FetchJSON(ctx, key, &bs, func(ctx context.Context) (any, error) {
		closings, err := s.closings(ctx, ownerID, asOf)
		if err != nil {
			return nil, err
		}
		movements, err := s.movements(ctx, ownerID, time.Time{}, asOf)
		if err != nil {
			return nil, err
		}
		pl := reports.BuildProfitAndLoss(movements)
		return reports.BuildBalanceSheet(closings, pl.NetProfit), nil
	})
	return bs, err
}

func (s *Service) closings(ctx context.Context, ownerID int64, asOf time.Time) ([]reports.LedgerClosing, error) {
	rows, err := s.repo.LedgerBalances(ctx, nil, ownerID, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]reports.LedgerClosing, 0, len(rows))
	for _, r := range rows {
		out = append(out, reports.LedgerClosing{
			LedgerID:   r.LedgerID,
			LedgerName: r.LedgerName,
			GroupName:  r.GroupName,
			Nature:     string(r.Nature),
			Balance:    r.Balance,
		})
	}
	return out, nil
}

func (s *Service) movements(ctx context.Context, ownerID int64, from, to time.Time) ([]reports.LedgerMovement, error) {
	rows, err := s.repo.LedgerMovements(ctx, nil, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]reports.LedgerMovement, 0, len(rows))
	for _, r := range rows {
		out = append(out, reports.LedgerMovement{
			LedgerID:   r.LedgerID,
			LedgerName: r.LedgerName,
			GroupName:  r.GroupName,
			Nature:     string(r.Nature),
			Net:        r.Net,
		})
	}
	return out, nil
}
