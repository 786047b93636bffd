package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// FormatMoney renders an amount in millions: "12.34M", or "1,234.5B" once it
// reaches a thousand.
func FormatMoney(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.Abs().GreaterThanOrEqual(thousand) {
		return groupThousands(d.Div(thousand).StringFixed(1)) + "B"
	}
	return groupThousands(d.StringFixed(2)) + "M"
}

// FormatPercent renders a percentage that is already scaled to 100.
func FormatPercent(pct float64) string {
	return decimal.NewFromFloat(pct).StringFixed(2) + "%"
}

// FormatNumber renders a plain amount with two decimals.
func FormatNumber(v float64) string {
	return groupThousands(decimal.NewFromFloat(v).StringFixed(2))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
