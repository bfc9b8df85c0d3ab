package utils

import (
	"github.com/shopspring/decimal"
)

// Money amounts round to 2 decimal places, quantities carry 3.
const (
	MoneyPlaces = 2
	QtyPlaces   = 3
)

var decimalOneHundred = decimal.NewFromInt(100)

func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPlaces)
}

func RoundQty(qty decimal.Decimal) decimal.Decimal {
	return qty.Round(QtyPlaces)
}

// CalculateLineAmounts computes a sale order line:
// lineTotal = qty*unitPrice - discount, lineTax = lineTotal * taxRate/100,
// and the returned lineTotal includes the tax.
func CalculateLineAmounts(qty, unitPrice, discount, taxRate decimal.Decimal) (lineTotal, lineTax decimal.Decimal) {
	lineTotal = qty.Mul(unitPrice).Sub(discount)
	lineTax = RoundMoney(lineTotal.Mul(taxRate).Div(decimalOneHundred))
	lineTotal = RoundMoney(lineTotal.Add(lineTax))
	return lineTotal, lineTax
}

// CalculateTierDiscount resolves a customer tier into a flat discount amount.
// discountType "percent" applies the rate to the subtotal, "amount" is flat.
func CalculateTierDiscount(subtotal decimal.Decimal, discountType string, discountValue decimal.Decimal) decimal.Decimal {
	if discountType == "percent" {
		return RoundMoney(subtotal.Mul(discountValue).Div(decimalOneHundred))
	}
	return RoundMoney(discountValue)
}
