package core

import (
	"strings"
)

// DefaultCurrency is assigned to users that do not choose one.
const DefaultCurrency = "USD"

// Currency is one entry of the shared currency metadata table.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

var currencies = []Currency{
	{Code: "USD", Symbol: "$", Name: "US Dollar"},
	{Code: "EUR", Symbol: "€", Name: "Euro"},
	{Code: "GBP", Symbol: "£", Name: "British Pound"},
	{Code: "JPY", Symbol: "¥", Name: "Japanese Yen"},
	{Code: "CNY", Symbol: "¥", Name: "Chinese Yuan"},
	{Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
	{Code: "CAD", Symbol: "CA$", Name: "Canadian Dollar"},
	{Code: "AUD", Symbol: "A$", Name: "Australian Dollar"},
	{Code: "NZD", Symbol: "NZ$", Name: "New Zealand Dollar"},
	{Code: "CHF", Symbol: "CHF", Name: "Swiss Franc"},
	{Code: "SEK", Symbol: "kr", Name: "Swedish Krona"},
	{Code: "NOK", Symbol: "kr", Name: "Norwegian Krone"},
	{Code: "DKK", Symbol: "kr", Name: "Danish Krone"},
	{Code: "PLN", Symbol: "zł", Name: "Polish Zloty"},
	{Code: "BRL", Symbol: "R$", Name: "Brazilian Real"},
	{Code: "MXN", Symbol: "MX$", Name: "Mexican Peso"},
	{Code: "SGD", Symbol: "S$", Name: "Singapore Dollar"},
	{Code: "HKD", Symbol: "HK$", Name: "Hong Kong Dollar"},
	{Code: "KRW", Symbol: "₩", Name: "South Korean Won"},
	{Code: "ZAR", Symbol: "R", Name: "South African Rand"},
	{Code: "TRY", Symbol: "₺", Name: "Turkish Lira"},
}

var currencyIndex = func() map[string]Currency {
	idx := make(map[string]Currency, len(currencies))
	for _, c := range currencies {
		idx[c.Code] = c
	}
	return idx
}()

// Currencies returns a copy of the currency table in display order.
func Currencies() []Currency {
	return append([]Currency(nil), currencies...)
}

// LookupCurrency finds a currency by ISO code, case-insensitively.
func LookupCurrency(code string) (Currency, bool) {
	c, ok := currencyIndex[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// FormatMoney renders m with the currency symbol and thousands separators,
// e.g. "$1,234.50" or "-€12.00". Unknown codes fall back to "XYZ 1.00".
func FormatMoney(m Money, code string) string {
	prefix := strings.ToUpper(code) + " "
	if c, ok := LookupCurrency(code); ok {
		prefix = c.Symbol
	}
	return formatWithPrefix(m, prefix)
}

func formatWithPrefix(m Money, prefix string) string {
	sign := ""
	if m.Cents < 0 {
		sign = "-"
		m.Cents = -m.Cents
	}
	s := m.String()
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + prefix + b.String() + "." + frac
}
