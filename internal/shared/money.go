package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.Finnish)

// FormatCents renders a balance kept in euro cents as a human readable string,
// e.g. -150 -> "-1,50 €". Used in receipts and export rows only; the ledger
// itself works in integer cents.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return moneyPrinter.Sprintf("%s%d,%02d €", sign, cents/100, cents%100)
}
