package listing

import (
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/summary"
)

var priceColumns = []string{"price", "price_total", "price_rub", "price_month", "price_per_month"}

// Digits keeps only the ASCII digits of v's text form.
func Digits(v any) string {
	s := summary.Stringify(v)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PriceMatches reports whether digits occur inside any price column of rec.
func PriceMatches(rec domain.Record, digits string) bool {
	if digits == "" {
		return false
	}
	for _, col := range priceColumns {
		v, ok := rec[col]
		if !ok || v == nil {
			continue
		}
		if d := Digits(v); d != "" && strings.Contains(d, digits) {
			return true
		}
	}
	return false
}

// Matches is the mini app search predicate: exact id, address or complex
// substring (case-insensitive) or a price containing the term's digits.
func Matches(rec domain.Record, idColumn, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	if v, ok := rec[idColumn]; ok && v != nil && summary.Stringify(v) == term {
		return true
	}
	needle := Fold(term)
	if addr := Fold(rec.FirstStr("address", "full_address")); addr != "" && strings.Contains(addr, needle) {
		return true
	}
	if cx := Fold(rec.FirstStr("complex_name", "complex")); cx != "" && strings.Contains(cx, needle) {
		return true
	}
	return PriceMatches(rec, Digits(term))
}

// RecordKey is the id used to de-duplicate search hits.
func RecordKey(rec domain.Record, idColumn string) string {
	for _, k := range []string{idColumn, "id"} {
		if v, ok := rec[k]; ok && !domain.IsEmpty(v) {
			return summary.Stringify(v)
		}
	}
	return ""
}
