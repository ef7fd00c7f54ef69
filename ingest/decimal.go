package ingest

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseIntString converts an integer string in a coin's smallest unit into
// a fixed-point decimal with precision fractional digits, per the
// integer-string-to-decimal conversion rule: the last precision digits are
// the fractional part, whatever remains to the left is the integer part,
// and short strings are left-padded with zeros rather than producing a
// fraction longer than the string. This is deliberately done with exact
// decimal arithmetic, never a binary float conversion.
func ParseIntString(s string, precision int) (decimal.Decimal, error) {
	l := len(s)

	var intPart, fracPart string
	if l > precision {
		intPart = s[:l-precision]
		fracPart = s[l-precision:]
	} else {
		intPart = "0"
		fracPart = strings.Repeat("0", precision-l) + s
	}

	if precision == 0 {
		return decimal.NewFromString(intPart)
	}
	return decimal.NewFromString(intPart + "." + fracPart)
}
