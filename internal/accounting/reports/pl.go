package reports

import "sort"

// LedgerMovement is one income or expense ledger's net movement over the
// reporting period, debit-positive.
type LedgerMovement struct {
	LedgerID   int64
	LedgerName string
	GroupName  string
	Nature     string
	Net        float64
}

// ProfitAndLossRow presents one ledger's contribution as a positive figure on
// its own side of the statement.
type ProfitAndLossRow struct {
	LedgerName string  `json:"ledgerName"`
	GroupName  string  `json:"groupName"`
	Amount     float64 `json:"amount"`
}

// ProfitAndLoss is the income statement for a period.
type ProfitAndLoss struct {
	Income        []ProfitAndLossRow `json:"income"`
	Expenses      []ProfitAndLossRow `json:"expenses"`
	TotalIncome   float64            `json:"totalIncome"`
	TotalExpenses float64            `json:"totalExpenses"`
	NetProfit     float64            `json:"netProfit"`
}

// BuildProfitAndLoss folds period movements into the income statement.
// Expense ledgers accumulate net debits, so their movement reads positive
// as-is; income ledgers accumulate net credits, so the sign flips.
func BuildProfitAndLoss(movements []LedgerMovement) ProfitAndLoss {
	pl := ProfitAndLoss{}
	for _, m := range movements {
		switch m.Nature {
		case "Expenses":
			if m.Net == 0 {
				continue
			}
			pl.Expenses = append(pl.Expenses, ProfitAndLossRow{
				LedgerName: m.LedgerName,
				GroupName:  m.GroupName,
				Amount:     m.Net,
			})
			pl.TotalExpenses += m.Net
		case "Income":
			if m.Net == 0 {
				continue
			}
			pl.Income = append(pl.Income, ProfitAndLossRow{
				LedgerName: m.LedgerName,
				GroupName:  m.GroupName,
				Amount:     -m.Net,
			})
			pl.TotalIncome += -m.Net
		}
	}
	sortPL(pl.Income)
	sortPL(pl.Expenses)
	pl.NetProfit = pl.TotalIncome - pl.TotalExpenses
	return pl
}

func sortPL(rows []ProfitAndLossRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].LedgerName < rows[j].LedgerName })
}
