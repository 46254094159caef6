// README: Refund amount calculation (provider fee deduction, payment percentage).
package refund

import (
	"github.com/shopspring/decimal"

	"angierens/internal/modules/order"
)

// feeRate is the GCash provider cut withheld from refunded online payments.
// Cash payments refund in full.
var feeRate = decimal.NewFromFloat(0.02)

var hundred = decimal.NewFromInt(100)

// Breakdown is the money split of one refund: what the provider keeps and
// what goes back to the customer.
type Breakdown struct {
	Fee   decimal.Decimal
	Total decimal.Decimal
}

// Calculate derives the refundable amount from what was actually paid.
// Both figures are rounded to two decimal places, half away from zero, and
// the payout never goes negative.
func Calculate(amountPaid decimal.Decimal, method order.PaymentMethod) Breakdown {
	if amountPaid.Sign() <= 0 {
		return Breakdown{Fee: decimal.Zero, Total: decimal.Zero}
	}
	fee := decimal.Zero
	if !method.Cash() {
		fee = amountPaid.Mul(feeRate).Round(2)
	}
	total := amountPaid.Sub(fee).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Breakdown{Fee: fee, Total: total}
}

// PercentPaid reports how much of the order value the payment covered, as a
// whole percentage of food plus delivery fee. Zero-value orders report zero.
func PercentPaid(amountPaid, foodTotal, deliveryFee decimal.Decimal) int {
	denom := foodTotal.Add(deliveryFee)
	if denom.Sign() <= 0 {
		return 0
	}
	return int(amountPaid.Div(denom).Mul(hundred).Round(0).IntPart())
}
