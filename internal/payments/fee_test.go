package payments

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		amount string
		fee    string
	}{
		{"100", "0"},
		{"9999.99", "0"},
		{"10000", "0"},
		{"10000.01", "1.000001"},
		{"10001", "1.0001"},
		{"25000", "2.5"},
		{"1000000", "100"},
	}
	for _, tc := range cases {
		got := ComputeFee(decimal.RequireFromString(tc.amount))
		if !got.Equal(decimal.RequireFromString(tc.fee)) {
			t.Errorf("fee(%s) = %s, want %s", tc.amount, got, tc.fee)
		}
	}
}

func TestComputeFeeIsDeterministic(t *testing.T) {
	amount := decimal.RequireFromString("123456.78")
	first := ComputeFee(amount)
	for i := 0; i < 100; i++ {
		if !ComputeFee(amount).Equal(first) {
			t.Fatal("fee must be reproducible for audit")
		}
	}
}
