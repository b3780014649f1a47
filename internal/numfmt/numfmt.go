// Package numfmt parses and formats locale-specific decimal numbers such as
// the Brazilian "1.234,56".
//
// Parsing is forgiving: anything that cannot be read as a finite number
// becomes 0. Form fields are re-evaluated on every keystroke, so a bare "-"
// or a trailing "," must not be an error.
package numfmt

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Locale describes the separators used to write a number.
type Locale struct {
	Decimal        rune
	Thousands      rune
	CurrencySymbol string
}

// BR is the Brazilian Portuguese locale (pt-BR).
var BR = Locale{Decimal: ',', Thousands: '.', CurrencySymbol: "R$"}

// ParseBR parses v using the BR locale.
func ParseBR(v any) float64 {
	return BR.Parse(v)
}

// FormatBR formats x using the BR locale.
func FormatBR(x float64) string {
	return BR.Format(x)
}

// Parse converts v to a float64. Strings are read with the locale's
// separators, numeric values are returned unchanged when finite. Everything
// else, including nil and malformed strings, yields 0.
func (l Locale) Parse(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return l.parseString(t)
	case *string:
		if t == nil {
			return 0
		}
		return l.parseString(*t)
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return 0
	}
}

func (l Locale) parseString(raw string) float64 {
	s := strings.TrimSpace(raw)
	if l.CurrencySymbol != "" {
		s = strings.TrimSpace(strings.TrimPrefix(s, l.CurrencySymbol))
	}
	if s == "" {
		return 0
	}

	dec := string(l.Decimal)
	th := string(l.Thousands)
	hasDec := strings.Contains(s, dec)
	hasTh := strings.Contains(s, th)

	switch {
	case hasDec && hasTh:
		s = strings.ReplaceAll(s, th, "")
		s = strings.ReplaceAll(s, dec, ".")
	case hasDec:
		s = strings.ReplaceAll(s, dec, ".")
	case hasTh:
		i := strings.LastIndex(s, th)
		frac := s[i+len(th):]
		if len(frac) == 3 && isDigits(frac) {
			s = strings.ReplaceAll(s, th, "")
		} else {
			s = strings.ReplaceAll(s[:i], th, "") + "." + frac
		}
	}

	if !isPlainNumber(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// Format renders x with two decimals and grouped thousands, e.g.
// 1234.5 -> "1.234,50" for BR. Non-finite values render as zero.
func (l Locale) Format(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		x = 0
	}
	fixed := decimal.NewFromFloat(x).Round(2).StringFixed(2)

	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune(l.Thousands)
		}
		b.WriteRune(r)
	}
	b.WriteRune(l.Decimal)
	b.WriteString(fracPart)
	return b.String()
}

// FormatCurrency prefixes Format with the locale's currency symbol.
func (l Locale) FormatCurrency(x float64) string {
	if l.CurrencySymbol == "" {
		return l.Format(x)
	}
	return l.CurrencySymbol + " " + l.Format(x)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// isPlainNumber accepts an optional sign, digits and at most one dot.
// strconv.ParseFloat alone would also take "Inf", hex floats and exponents.
func isPlainNumber(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
