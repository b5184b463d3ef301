package money

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DisplayLocale is the presentation locale: 2 decimals, comma separator.
var DisplayLocale = language.BrazilianPortuguese

const currencySymbol = "R$"

// Format renders the amount for operators, e.g. "R$ 1.234,50".
// Formatting is presentational only; arithmetic never goes through it.
func Format(a Amount) string {
	return formatWith(message.NewPrinter(DisplayLocale), a, true)
}

// FormatPlain renders without the currency symbol, e.g. "1.234,50".
func FormatPlain(a Amount) string {
	return formatWith(message.NewPrinter(DisplayLocale), a, false)
}

func formatWith(p *message.Printer, a Amount, symbol bool) string {
	cents := a.Cents()
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := p.Sprintf("%d", cents/100)
	body := fmt.Sprintf("%s,%02d", whole, cents%100)
	if symbol {
		return sign + currencySymbol + " " + body
	}
	return sign + body
}

// ParseDisplay reads operator input using the display convention
// ("1.234,50", "R$ 12,5", "15"). Dots are thousands separators.
func ParseDisplay(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, currencySymbol)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	a, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if neg {
		return a.Neg(), nil
	}
	return a, nil
}
