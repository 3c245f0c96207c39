package listing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusRejected Status = "rejected"
	StatusInactive Status = "inactive"
)

type statusRule struct {
	status   Status
	keywords []string
}

// Checked in order; the first rule with a matching keyword wins, so a text
// that mentions both moderation and rejection is a draft.
var statusRules = []statusRule{
	{StatusActive, []string{"publish", "размещ", "опублик"}},
	{StatusDraft, []string{"moder", "модерац", "ожидает", "установлено из импорта"}},
	{StatusRejected, []string{"refus", "откл", "blocked", "remove", "удален", "снят"}},
	{StatusInactive, []string{"deactiv", "деактив", "pause"}},
}

// Fold lowercases and trims s for keyword matching. A Caser is stateful, so
// each call gets its own.
func Fold(s string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

// MapExternalStatus classifies a CIAN offer status. ok is false when no rule
// matches; callers must then leave the stored status alone.
func MapExternalStatus(raw string) (Status, bool) {
	norm := Fold(raw)
	if norm == "" {
		return "", false
	}
	for _, r := range statusRules {
		for _, kw := range r.keywords {
			if strings.Contains(norm, kw) {
				return r.status, true
			}
		}
	}
	return "", false
}
