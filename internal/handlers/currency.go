package handlers

import "strings"

// currencySymbols maps ISO 4217 codes to the symbol shown in customer
// messages. Unknown codes fall back to the dollar sign.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
	"CNY": "¥",
	"KRW": "₩",
	"THB": "฿",
	"VND": "₫",
	"PHP": "₱",
	"IDR": "Rp",
	"MYR": "RM",
	"SGD": "S$",
	"AUD": "A$",
	"CAD": "C$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"MXN": "MX$",
	"BRL": "R$",
	"ZAR": "R",
	"NGN": "₦",
	"RUB": "₽",
	"TRY": "₺",
	"AED": "AED",
	"SAR": "SAR",
	"CHF": "CHF",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
	"PLN": "zł",
	"CZK": "Kč",
	"ILS": "₪",
}

// CurrencySymbol returns the display symbol for an ISO 4217 currency code
func CurrencySymbol(code string) string {
	if sym, ok := currencySymbols[strings.ToUpper(code)]; ok {
		return sym
	}
	return "$"
}
