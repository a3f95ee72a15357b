package email

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// FormatAmount renders minor units in the given locale, for example
// "1 234,56 €" in French.
func FormatAmount(lang language.Tag, cents int64, currency string) string {
	code := strings.ToUpper(currency)
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code
	}
	p := message.NewPrinter(lang)
	return p.Sprint(number.Decimal(float64(cents)/100, number.Scale(2))) + " " + symbol
}

// FormatDate renders a date as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
