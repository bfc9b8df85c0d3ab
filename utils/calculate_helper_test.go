package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateLineAmounts(t *testing.T) {
	cases := []struct {
		name      string
		qty       string
		unitPrice string
		discount  string
		taxRate   string
		lineTotal string
		lineTax   string
	}{
		{"no discount no tax", "2", "1000", "0", "0", "2000", "0"},
		{"discount only", "2", "1000", "200", "0", "1800", "0"},
		{"discount and tax", "2", "1000", "200", "5", "1890", "90"},
		{"fractional qty", "1.5", "999.99", "0", "0", "1499.99", "0"},
		{"tax rounding", "1", "99.99", "0", "7.5", "107.49", "7.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lineTotal, lineTax := CalculateLineAmounts(
				decimal.RequireFromString(tc.qty),
				decimal.RequireFromString(tc.unitPrice),
				decimal.RequireFromString(tc.discount),
				decimal.RequireFromString(tc.taxRate),
			)
			if !lineTotal.Equal(decimal.RequireFromString(tc.lineTotal)) {
				t.Fatalf("line total: expected %s, got %s", tc.lineTotal, lineTotal)
			}
			if !lineTax.Equal(decimal.RequireFromString(tc.lineTax)) {
				t.Fatalf("line tax: expected %s, got %s", tc.lineTax, lineTax)
			}
		})
	}
}

func TestCalculateTierDiscount(t *testing.T) {
	subtotal := decimal.RequireFromString("2500")

	percent := CalculateTierDiscount(subtotal, "percent", decimal.NewFromInt(10))
	if !percent.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %s", percent)
	}

	flat := CalculateTierDiscount(subtotal, "amount", decimal.NewFromInt(300))
	if !flat.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 300, got %s", flat)
	}

	fractional := CalculateTierDiscount(decimal.RequireFromString("99.99"), "percent", decimal.NewFromInt(5))
	if !fractional.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("expected 5, got %s", fractional)
	}
}

func TestRoundHelpers(t *testing.T) {
	if got := RoundMoney(decimal.RequireFromString("1.005")); !got.Equal(decimal.RequireFromString("1.01")) {
		t.Fatalf("RoundMoney: got %s", got)
	}
	if got := RoundQty(decimal.RequireFromString("1.0005")); !got.Equal(decimal.RequireFromString("1.001")) {
		t.Fatalf("RoundQty: got %s", got)
	}
}
