package pricing

import (
	"github.com/shopspring/decimal"
)

// Round2 rounds an amount to cents for presentation or storage.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Cents returns v rounded to two places as a decimal.
func Cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FormatMoney renders v as "$1,234.50".
func FormatMoney(v float64) string {
	d := Cents(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	s := d.StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	grouped := make([]byte, 0, len(whole)+len(whole)/3)
	for i := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, whole[i])
	}
	return sign + "$" + string(grouped) + "." + frac
}

// FormatPercent renders a fraction as a percentage without trailing zeros: 0.0875 -> "8.75%".
func FormatPercent(rate float64) string {
	return decimal.NewFromFloat(rate).Shift(2).Round(2).String() + "%"
}
