package sales

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateLineTotalsExclusive(t *testing.T) {
	discount, tax, total := CalculateLineTotals(2, 500, 10, 18, false)
	require.InDelta(t, 100, discount, 0.001)  // 10% of 1000
	require.InDelta(t, 162, tax, 0.001)       // 18% of 900
	require.InDelta(t, 1062, total, 0.001)
}

func TestCalculateLineTotalsInclusive(t *testing.T) {
	// Price carries the GST: 1180 gross at 18% holds a 1000 base.
	discount, tax, total := CalculateLineTotals(1, 1180, 0, 18, true)
	require.InDelta(t, 0, discount, 0.001)
	require.InDelta(t, 180, tax, 0.01)
	require.InDelta(t, 1180, total, 0.001)
}

func TestCalculateLineTotalsZeroGST(t *testing.T) {
	_, tax, total := CalculateLineTotals(3, 100, 0, 0, false)
	require.InDelta(t, 0, tax, 0.001)
	require.InDelta(t, 300, total, 0.001)
}

func TestSettledStatus(t *testing.T) {
	require.Equal(t, StatusPaid, settledStatus(100, 100))
	require.Equal(t, StatusPaid, settledStatus(99.995, 100))
	require.Equal(t, StatusPartial, settledStatus(50, 100))
	require.Equal(t, StatusDue, settledStatus(0, 100))
}
