package dashboard

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"despesas/internal/core"
)

// FormatBRL renders an amount in Brazilian reais ("R$ 1.234,56").
func FormatBRL(v float64) string {
	p := message.NewPrinter(language.BrazilianPortuguese)
	if v < 0 {
		return "-R$ " + p.Sprint(number.Decimal(-v, number.Scale(2)))
	}
	return "R$ " + p.Sprint(number.Decimal(v, number.Scale(2)))
}

// FormatMoney is FormatBRL for cent amounts.
func FormatMoney(m core.Money) string {
	return FormatBRL(m.Float())
}
