package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/listing"
)

var searchColumns = []string{"address", "full_address", "complex_name"}

// ListObjects returns objects newest first. With a search term it collects
// exact id hits and address/complex matches, then local id/price matches
// over the plain list, and finally the plain list when nothing matched.
func (c *Client) ListObjects(ctx context.Context, q domain.ListQuery) ([]domain.Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	fetch := func(extra url.Values) ([]domain.Record, error) {
		params := url.Values{
			"select": {"*"},
			"limit":  {strconv.Itoa(limit)},
			"order":  {defaultOrder},
		}
		for k, v := range extra {
			params[k] = v
		}
		for k, v := range q.Filters {
			params.Set(k, v)
		}
		rows, _, err := c.do(ctx, "list", http.MethodGet, c.table, params, nil, "")
		return rows, err
	}

	term := strings.TrimSpace(q.Search)
	if term == "" {
		return fetch(nil)
	}

	hits := newHitSet(c.idColumn)
	// bad filter values (e.g. text against a numeric id column) come back as 400
	tolerate := func(rows []domain.Record, err error) error {
		if err != nil {
			if HasStatus(err, http.StatusBadRequest, http.StatusNotFound) {
				return nil
			}
			return err
		}
		hits.add(rows...)
		return nil
	}

	if err := tolerate(fetch(url.Values{c.idColumn: {"eq." + term}})); err != nil {
		return nil, err
	}
	like := strings.ReplaceAll(strings.ReplaceAll(term, ",", ""), " ", "%")
	for _, col := range searchColumns {
		if err := tolerate(fetch(url.Values{col: {"ilike.*" + like + "*"}})); err != nil {
			return nil, err
		}
	}

	var plain []domain.Record
	if hits.len() == 0 {
		var err error
		if plain, err = fetch(nil); err != nil {
			return nil, err
		}
		for _, rec := range plain {
			if listing.Matches(rec, c.idColumn, term) {
				hits.add(rec)
			}
		}
	}

	if hits.len() > 0 {
		out := hits.items()
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}
	return plain, nil
}

// hitSet keeps the first-seen order of records while later duplicates
// replace earlier values.
type hitSet struct {
	idColumn string
	order    []string
	byKey    map[string]domain.Record
}

func newHitSet(idColumn string) *hitSet {
	return &hitSet{idColumn: idColumn, byKey: map[string]domain.Record{}}
}

func (h *hitSet) add(recs ...domain.Record) {
	for _, r := range recs {
		key := listing.RecordKey(r, h.idColumn)
		if key == "" {
			key = "#" + strconv.Itoa(len(h.order))
		}
		if _, seen := h.byKey[key]; !seen {
			h.order = append(h.order, key)
		}
		h.byKey[key] = r
	}
}

func (h *hitSet) len() int { return len(h.order) }

func (h *hitSet) items() []domain.Record {
	out := make([]domain.Record, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.byKey[k])
	}
	return out
}
