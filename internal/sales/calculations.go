package sales

// CalculateLineTotals computes one invoice line. With exclusive pricing the
// GST is added on top of the discounted amount; with inclusive pricing the
// unit price already carries GST and the tax is carved out of it.
func CalculateLineTotals(quantity, unitPrice, discountPercent, gstPercent float64, inclusive bool) (discountAmount, taxAmount, lineTotal float64) {
	grossAmount := quantity * unitPrice
	discountAmount = grossAmount * (discountPercent / 100)
	netAmount := grossAmount - discountAmount
	if inclusive {
		base := netAmount / (1 + gstPercent/100)
		taxAmount = netAmount - base
		lineTotal = netAmount
		return
	}
	taxAmount = netAmount * (gstPercent / 100)
	lineTotal = netAmount + taxAmount
	return
}
