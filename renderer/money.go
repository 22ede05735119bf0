package renderer

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency formats amounts when none is set.
const DefaultCurrency = money.USD

// formatMoney formats an amount in its currency, like $100,000.00.
func formatMoney(v float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		cur = money.GetCurrency(DefaultCurrency)
	}
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// signedPercent formats a ratio as a signed percentage, like +12.34%.
func signedPercent(v float64) string { return fmt.Sprintf("%+.2f%%", v*100) }

// percent formats a ratio as a percentage, like 12.34%.
func percent(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

func ratio(v float64) string { return fmt.Sprintf("%.3f", v) }
