package summary

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const (
	currencySuffix = " ₽"
	areaSuffix     = " м²"
	heightSuffix   = " м"

	thinSpace = "\u2009"
)

var reNotNumeric = regexp.MustCompile(`[^\d.,-]`)

// ParseNumber reads a number out of noisy text such as "1 234 567 ₽" or "45,5 м²".
// Comma is a decimal point. Booleans are not numbers.
func ParseNumber(v any) (float64, bool) {
	switch domain.KindOf(v) {
	case domain.KindNumber:
		return toNumber(v)
	case domain.KindText:
		cleaned := reNotNumeric.ReplaceAllString(v.(string), "")
		if cleaned == "" {
			return 0, false
		}
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FormatPrice rounds to whole roubles (half to even) and groups digits by three.
func FormatPrice(v any) string {
	f, ok := ParseNumber(v)
	if !ok {
		return Stringify(v)
	}
	n := strconv.FormatFloat(math.RoundToEven(f), 'f', 0, 64)
	if n == "-0" {
		n = "0"
	}
	return groupThousands(n) + currencySuffix
}

func FormatArea(v any) string {
	f, ok := ParseNumber(v)
	if !ok {
		return Stringify(v)
	}
	return trimDecimal(strconv.FormatFloat(f, 'f', 1, 64)) + areaSuffix
}

func FormatHeight(v any) string {
	f, ok := ParseNumber(v)
	if !ok {
		return Stringify(v)
	}
	return trimDecimal(strconv.FormatFloat(f, 'f', 2, 64)) + heightSuffix
}

func format(f formatter, v any) string {
	switch f {
	case price:
		return FormatPrice(v)
	case area:
		return FormatArea(v)
	case height:
		return FormatHeight(v)
	default:
		return Stringify(v)
	}
}

// trimDecimal drops trailing zeros and then a dangling point: "45.0" -> "45", "2.70" -> "2.7".
func trimDecimal(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func groupThousands(n string) string {
	sign := ""
	if strings.HasPrefix(n, "-") {
		sign, n = "-", n[1:]
	}
	if len(n) <= 3 {
		return sign + n
	}
	var b strings.Builder
	head := len(n) % 3
	if head > 0 {
		b.WriteString(n[:head])
	}
	for i := head; i < len(n); i += 3 {
		if b.Len() > 0 {
			b.WriteString(thinSpace)
		}
		b.WriteString(n[i : i+3])
	}
	return sign + b.String()
}
