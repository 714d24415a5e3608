package payments

import "github.com/shopspring/decimal"

var (
	// MinTransferAmount is the smallest principal a transfer may move.
	MinTransferAmount = decimal.NewFromInt(100)
	// FeeThreshold is the amount above which a fee is charged.
	FeeThreshold = decimal.NewFromInt(10_000)
	// FeeRate applies to the whole amount once it exceeds FeeThreshold.
	FeeRate = decimal.RequireFromString("0.0001")
)

// ComputeFee returns the fee for moving amount: amount * 0.0001 when amount is
// strictly above 10,000, zero otherwise. The result is exact.
func ComputeFee(amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(FeeThreshold) {
		return amount.Mul(FeeRate)
	}
	return decimal.Zero
}
