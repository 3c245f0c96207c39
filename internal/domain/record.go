package domain

import (
	"encoding/json"
	"strings"
)

// Record is one listing row as returned by the store. Its column set is not
// known at build time; values are whatever JSON decoding produced.
type Record map[string]any

// Kind is the closed set of value shapes a Record can carry.
type Kind int

const (
	KindAbsent Kind = iota
	KindBool
	KindNumber
	KindText
	KindMapping
	KindSequence
	KindOther
)

// KindOf classifies v. Go integer kinds and json.Number count as numbers so
// records built in code and records decoded with UseNumber behave the same.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindAbsent
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	case string:
		return KindText
	case map[string]any, Record:
		return KindMapping
	case []any, []string:
		return KindSequence
	default:
		return KindOther
	}
}

// IsEmpty reports nil, "" and zero-length sequences. false, 0 and {} are values.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// AsMap returns the nested mapping behind v, if any.
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return map[string]any(t), true
	}
	return nil, false
}

// AsSlice returns the sequence behind v, if any.
func AsSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Str returns the value at key when it is non-blank text.
func (r Record) Str(key string) string {
	if s, ok := r[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// FirstStr returns the first non-blank text among keys.
func (r Record) FirstStr(keys ...string) string {
	for _, k := range keys {
		if s := r.Str(k); s != "" {
			return s
		}
	}
	return ""
}

// FirstValue returns the first non-empty value among keys.
func (r Record) FirstValue(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && !IsEmpty(v) {
			return v
		}
	}
	return nil
}
