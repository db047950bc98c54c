package accounting

import (
	"fmt"
	"math"
	"time"

	"github.com/tillbook/tillbook/internal/shared"
)

// VoucherBalanceEpsilon is the tolerance for the debit/credit totals of a
// voucher. Anything beyond it is a genuinely unbalanced posting, not
// floating-point noise.
const VoucherBalanceEpsilon = 0.01

// UnbalancedError reports a voucher whose sides do not match, carrying both
// totals so the caller can see the discrepancy.
type UnbalancedError struct {
	Debit  float64
	Credit float64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("voucher is unbalanced: total debit %.2f, total credit %.2f", e.Debit, e.Credit)
}

func (e *UnbalancedError) Unwrap() error { return shared.ErrValidation }

// VoucherLineInput describes one line of a voucher to create.
type VoucherLineInput struct {
	LedgerID int64   `json:"ledgerId"`
	Debit    float64 `json:"debit"`
	Credit   float64 `json:"credit"`
}

// CreateVoucherInput groups the fields required to post a voucher.
type CreateVoucherInput struct {
	Type      VoucherType        `json:"type"`
	Date      time.Time          `json:"date"`
	Narration string             `json:"narration"`
	Lines     []VoucherLineInput `json:"lines"`
}

// Validate enforces the double-entry rules before anything touches storage.
func (in CreateVoucherInput) Validate() error {
	if !in.Type.Valid() {
		return shared.Validationf("unknown voucher type %q", in.Type)
	}
	if len(in.Lines) < 2 {
		return shared.Validationf("voucher requires at least two lines")
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.LedgerID == 0 {
			return shared.Validationf("line %d missing ledger", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return shared.Validationf("line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return shared.Validationf("line %d cannot be both debit and credit", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > VoucherBalanceEpsilon {
		return &UnbalancedError{Debit: debit, Credit: credit}
	}
	return nil
}

// GroupInput carries the fields for creating or updating an account group.
type GroupInput struct {
	Name     string `json:"name" validate:"required"`
	Nature   Nature `json:"nature" validate:"required"`
	ParentID *int64 `json:"parentId"`
}

// LedgerInput carries the fields for creating or updating an account ledger.
type LedgerInput struct {
	Name           string  `json:"name" validate:"required"`
	GroupID        int64   `json:"groupId" validate:"required"`
	OpeningBalance float64 `json:"openingBalance"`
}

// ErrGroupInUse is returned when deleting a group that still has children or
// ledgers attached.
var ErrGroupInUse = fmt.Errorf("%w: group has children or ledgers", shared.ErrValidation)

// ErrLedgerInUse is returned when deleting a ledger referenced by vouchers.
var ErrLedgerInUse = fmt.Errorf("%w: ledger referenced by vouchers", shared.ErrValidation)
