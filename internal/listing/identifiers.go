// Package listing holds the rules that tie store rows to CIAN listings:
// canonical id reconciliation, status classification and offer reports.
package listing

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const (
	FieldCianID  = "cian_id"
	FieldCianURL = "cian_url"

	urlTemplate = "https://www.cian.ru/rent/flat/%s/"
)

var (
	reListingID = regexp.MustCompile(`[0-9]{5,}`)

	placeholders = map[string]struct{}{"empty": {}, "null": {}, "none": {}}

	idCandidates = []string{FieldCianID, "external_id", "id", FieldCianURL}
)

// Result is what Reconcile derived for one record. Patch holds only the
// fields that were missing and could be filled.
type Result struct {
	ID     string
	URL    string
	Patch  map[string]any
	Record domain.Record
}

// IsMissing reports values that mean "not set yet": nil, blank text and the
// placeholder words EMPTY, NULL and NONE in any case.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return true
		}
		_, ok := placeholders[strings.ToLower(s)]
		return ok
	}
	return false
}

// ExtractID returns the first run of five or more ASCII digits in v.
func ExtractID(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprint(t)
	default:
		return "", false
	}
	m := reListingID.FindString(s)
	return m, m != ""
}

// URLFor builds the public listing URL for a digit id.
func URLFor(id string) string {
	return fmt.Sprintf(urlTemplate, id)
}

// Reconcile derives the canonical CIAN id and URL of rec and the patch that
// would backfill them. Existing non-missing values are never overwritten and
// rec itself is left untouched.
func Reconcile(rec domain.Record) Result {
	var id string
	for _, k := range idCandidates {
		v := rec[k]
		if IsMissing(v) {
			continue
		}
		if d, ok := ExtractID(v); ok {
			id = d
			break
		}
	}

	var url string
	if v := rec[FieldCianURL]; !IsMissing(v) {
		url = strings.TrimSpace(fmt.Sprint(v))
	} else if id != "" {
		url = URLFor(id)
	}

	patch := map[string]any{}
	if id != "" && IsMissing(rec[FieldCianID]) {
		patch[FieldCianID] = id
	}
	if url != "" && IsMissing(rec[FieldCianURL]) {
		patch[FieldCianURL] = url
	}

	annotated := rec.Clone()
	for k, v := range patch {
		annotated[k] = v
	}

	return Result{ID: id, URL: url, Patch: patch, Record: annotated}
}
