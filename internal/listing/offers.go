package listing

import (
	"fmt"
	"html"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/summary"
)

const (
	problemsHeader   = "⚠️ <b>Проблемы при импорте CIAN</b>"
	problemsShown    = 5
	noDescription    = "Без описания"
	missingReference = "—"
)

// Offer is one entry of the CIAN order report.
type Offer struct {
	ExternalID string
	OfferID    string
	Status     string
	Errors     []string
	Warnings   []string
	URL        string
}

// Ref is the id the store knows the offer by: externalId, else offerId.
func (o Offer) Ref() string {
	if o.ExternalID != "" {
		return o.ExternalID
	}
	return o.OfferID
}

func (o Offer) HasProblems() bool {
	return len(o.Errors) > 0 || len(o.Warnings) > 0
}

// ExtractOffers reads result.offers from a decoded order report. Entries that
// are not objects are skipped.
func ExtractOffers(report map[string]any) []Offer {
	result, _ := domain.AsMap(report["result"])
	raw, _ := domain.AsSlice(result["offers"])
	out := make([]Offer, 0, len(raw))
	for _, it := range raw {
		m, ok := domain.AsMap(it)
		if !ok {
			continue
		}
		out = append(out, Offer{
			ExternalID: scalar(m["externalId"]),
			OfferID:    scalar(m["offerId"]),
			Status:     scalar(m["status"]),
			Errors:     messages(m["errors"]),
			Warnings:   messages(m["warnings"]),
			URL:        scalar(m["url"]),
		})
	}
	return out
}

// ProblemDigest builds the team notification for offers with import errors or
// warnings. ok is false when there is nothing to report.
func ProblemDigest(offers []Offer) (string, bool) {
	var bad []Offer
	for _, o := range offers {
		if o.HasProblems() {
			bad = append(bad, o)
		}
	}
	if len(bad) == 0 {
		return "", false
	}

	lines := []string{problemsHeader}
	for i, o := range bad {
		if i == problemsShown {
			break
		}
		ref := o.Ref()
		if ref == "" {
			ref = missingReference
		}
		msgs := o.Errors
		if len(msgs) == 0 {
			msgs = o.Warnings
		}
		if len(msgs) == 0 {
			msgs = []string{noDescription}
		}
		lines = append(lines, fmt.Sprintf("#%s: %s", html.EscapeString(ref), html.EscapeString(strings.Join(msgs, "; "))))
		if o.URL != "" {
			lines = append(lines, html.EscapeString(o.URL))
		}
	}
	if rest := len(bad) - problemsShown; rest > 0 {
		lines = append(lines, fmt.Sprintf("…и еще %d объявл.", rest))
	}
	return strings.Join(lines, "\n"), true
}

func scalar(v any) string {
	switch domain.KindOf(v) {
	case domain.KindText, domain.KindNumber:
		return strings.TrimSpace(summary.Stringify(v))
	}
	return ""
}

func messages(v any) []string {
	items, ok := domain.AsSlice(v)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s := strings.TrimSpace(summary.Stringify(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
