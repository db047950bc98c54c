package reports

import "sort"

// The current period's result has no ledger of its own; the balance sheet
// injects it under this heading so the statement ties out.
const (
	ProfitLossLedgerName = "Profit & Loss A/c"
	ReservesGroupName    = "Reserves & Surplus"
)

// BalanceSheetRow presents one ledger on its side of the statement as a
// positive figure.
type BalanceSheetRow struct {
	LedgerName string  `json:"ledgerName"`
	GroupName  string  `json:"groupName"`
	Amount     float64 `json:"amount"`
}

// BalanceSheet is the position statement as of a date.
type BalanceSheet struct {
	Assets           []BalanceSheetRow `json:"assets"`
	Liabilities      []BalanceSheetRow `json:"liabilities"`
	TotalAssets      float64           `json:"totalAssets"`
	TotalLiabilities float64           `json:"totalLiabilities"`
}

// Balanced reports whether both sides agree within eps.
func (bs BalanceSheet) Balanced(eps float64) bool {
	diff := bs.TotalAssets - bs.TotalLiabilities
	if diff < 0 {
		diff = -diff
	}
	return diff <= eps
}

// BuildBalanceSheet folds accumulated asset and liability balances into the
// position statement. netProfit is the result from BuildProfitAndLoss over
// the life of the books; it lands on the liabilities side because profit is
// owed to the owner.
func BuildBalanceSheet(closings []LedgerClosing, netProfit float64) BalanceSheet {
	bs := BalanceSheet{}
	for _, c := range closings {
		switch c.Nature {
		case "Assets":
			if c.Balance == 0 {
				continue
			}
			bs.Assets = append(bs.Assets, BalanceSheetRow{
				LedgerName: c.LedgerName,
				GroupName:  c.GroupName,
				Amount:     c.Balance,
			})
			bs.TotalAssets += c.Balance
		case "Liabilities":
			if c.Balance == 0 {
				continue
			}
			// Liability ledgers accumulate net credits; flip to present positive.
			bs.Liabilities = append(bs.Liabilities, BalanceSheetRow{
				LedgerName: c.LedgerName,
				GroupName:  c.GroupName,
				Amount:     -c.Balance,
			})
			bs.TotalLiabilities += -c.Balance
		}
	}

	if netProfit != 0 {
		bs.Liabilities = append(bs.Liabilities, BalanceSheetRow{
			LedgerName: ProfitLossLedgerName,
			GroupName:  ReservesGroupName,
			Amount:     netProfit,
		})
		bs.TotalLiabilities += netProfit
	}

	sortBS(bs.Assets)
	sortBS(bs.Liabilities)
	return bs
}

func sortBS(rows []BalanceSheetRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].LedgerName < rows[j].LedgerName })
}
