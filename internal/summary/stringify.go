package summary

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const (
	yes = "Да"
	no  = "Нет"

	mapSep  = "; "
	listSep = ", "
)

// Stringify renders any record value as plain (unescaped) text.
// Mapping keys are sorted so output does not depend on map iteration order.
func Stringify(v any) string {
	switch domain.KindOf(v) {
	case domain.KindAbsent:
		return ""
	case domain.KindBool:
		if v.(bool) {
			return yes
		}
		return no
	case domain.KindNumber:
		if s, ok := exactInteger(v); ok {
			return s
		}
		f, ok := toNumber(v)
		if !ok {
			return fmt.Sprint(v)
		}
		return formatNumber(f)
	case domain.KindText:
		return v.(string)
	case domain.KindMapping:
		m, _ := domain.AsMap(v)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if domain.IsEmpty(m[k]) {
				continue
			}
			s := Stringify(m[k])
			if s == "" {
				continue
			}
			parts = append(parts, k+": "+s)
		}
		return strings.Join(parts, mapSep)
	case domain.KindSequence:
		items, _ := domain.AsSlice(v)
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if domain.IsEmpty(it) {
				continue
			}
			if s := Stringify(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, listSep)
	default:
		return fmt.Sprint(v)
	}
}

// formatNumber prints whole numbers without a fractional part and everything
// else with the shortest exact decimal, never in exponent form.
func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// exactInteger prints integers without a float64 round trip, which loses
// digits above 2^53 (bigint ids, Telegram ids).
func exactInteger(v any) (string, bool) {
	switch t := v.(type) {
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case json.Number:
		s := string(t)
		digits := strings.TrimPrefix(s, "-")
		if digits == "" {
			return "", false
		}
		for _, r := range digits {
			if r < '0' || r > '9' {
				return "", false
			}
		}
		return s, true
	}
	return "", false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
