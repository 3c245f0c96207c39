package app

import (
	"html"
	"maps"
	"slices"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/listing"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/summary"
)

/********** alias registries **********/

var listAliases = map[string][]string{
	"address": {"address", "full_address"},
	"price":   {"price", "price_total", "price_rub"},
}

var personAliases = map[string][]string{
	"name":  {"name", "full_name", "fio", "first_name"},
	"phone": {"phone", "phone_number", "tel"},
}

/********** list items **********/

// ListItem is the shape the mini app list pages render.
type ListItem struct {
	ID      any           `json:"id"`
	Address any           `json:"address"`
	Price   any           `json:"price"`
	Raw     domain.Record `json:"raw"`
}

func (s *ObjectService) listItems(recs []domain.Record) []ListItem {
	out := make([]ListItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, mapListItem(rec, s.store.IDColumn()))
	}
	return out
}

func mapListItem(rec domain.Record, idColumn string) ListItem {
	id := rec.FirstValue(idColumn, "id")
	return ListItem{
		ID:      id,
		Address: rec.FirstValue(listAliases["address"]...),
		Price:   rec.FirstValue(listAliases["price"]...),
		Raw:     listing.Reconcile(rec).Record,
	}
}

/********** showing card **********/

// showingCard renders the team message for a showing request. obj may be nil
// when the object could not be loaded.
func showingCard(req ShowingRequest, obj domain.Record) string {
	lines := []string{"🗓 <b>Запрос на показ</b>"}

	objLine := "Объект: #" + html.EscapeString(req.ObjectID)
	if addr := obj.FirstStr(listAliases["address"]...); addr != "" {
		objLine += " · " + html.EscapeString(addr)
	}
	lines = append(lines, objLine)
	if p := obj.FirstValue(listAliases["price"]...); p != nil {
		if s := summary.FormatPrice(p); s != "" {
			lines = append(lines, "Цена: "+html.EscapeString(s))
		}
	}

	when := strings.TrimSpace(req.Date + " " + req.Time)
	lines = append(lines, "Когда: "+html.EscapeString(when))

	if p := personLine(req.Owner); p != "" {
		lines = append(lines, "Собственник: "+p)
	}
	if p := personLine(req.Client); p != "" {
		lines = append(lines, "Клиент: "+p)
	}
	if req.Comment != "" {
		lines = append(lines, "Комментарий: "+html.EscapeString(req.Comment))
	}
	return strings.Join(lines, "\n")
}

// personLine accepts either a plain string or an object with name/phone.
func personLine(v any) string {
	switch domain.KindOf(v) {
	case domain.KindText, domain.KindNumber:
		return html.EscapeString(strings.TrimSpace(summary.Stringify(v)))
	case domain.KindMapping:
		m, _ := domain.AsMap(v)
		rec := domain.Record(m)
		var parts []string
		for _, key := range []string{"name", "phone"} {
			if s := rec.FirstStr(personAliases[key]...); s != "" {
				parts = append(parts, html.EscapeString(s))
			}
		}
		return strings.Join(parts, " · ")
	}
	return ""
}

/********** journal entries **********/

func patchEntries(objectID, source string, patch map[string]any) []domain.PatchEntry {
	out := make([]domain.PatchEntry, 0, len(patch))
	for _, field := range slices.Sorted(maps.Keys(patch)) {
		out = append(out, domain.PatchEntry{
			ObjectID: objectID,
			Source:   source,
			Field:    field,
			Value:    summary.Stringify(patch[field]),
		})
	}
	return out
}
