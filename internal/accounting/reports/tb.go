// Package reports builds financial statements from aggregated ledger rows.
// Builders are pure: they take rows the repository already summed and never
// touch storage themselves.
package reports

import "sort"

// LedgerClosing is one ledger's accumulated net balance, debit-positive.
type LedgerClosing struct {
	LedgerID   int64
	LedgerName string
	GroupName  string
	Nature     string
	Balance    float64
}

// TrialBalanceRow presents one ledger split onto the debit or credit column.
type TrialBalanceRow struct {
	LedgerName string  `json:"ledgerName"`
	GroupName  string  `json:"groupName"`
	Nature     string  `json:"nature"`
	Debit      float64 `json:"debit"`
	Credit     float64 `json:"credit"`
}

// TrialBalance lists every ledger with a non-zero closing balance. A bookkeeping
// set produced purely by balanced vouchers has TotalDebit equal to TotalCredit.
type TrialBalance struct {
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  float64           `json:"totalDebit"`
	TotalCredit float64           `json:"totalCredit"`
}

// BuildTrialBalance splits each closing balance onto its natural column:
// positive (net debit) balances to the debit side, negative to the credit side.
func BuildTrialBalance(closings []LedgerClosing) TrialBalance {
	tb := TrialBalance{}
	for _, c := range closings {
		if c.Balance == 0 {
			continue
		}
		row := TrialBalanceRow{
			LedgerName: c.LedgerName,
			GroupName:  c.GroupName,
			Nature:     c.Nature,
		}
		if c.Balance > 0 {
			row.Debit = c.Balance
		} else {
			row.Credit = -c.Balance
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit += row.Debit
		tb.TotalCredit += row.Credit
	}
	sort.Slice(tb.Rows, func(i, j int) bool {
		if tb.Rows[i].Nature != tb.Rows[j].Nature {
			return tb.Rows[i].Nature < tb.Rows[j].Nature
		}
		return tb.Rows[i].LedgerName < tb.Rows[j].LedgerName
	})
	return tb
}
