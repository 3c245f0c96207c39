package summary

import "github.com/hapjinhope/happiness-crm-miniapp/internal/domain"

// Resolver picks values out of a record for one rendering pass and remembers
// which source keys it has already handed out.
type Resolver struct {
	rec  domain.Record
	used map[string]struct{}
}

func NewResolver(rec domain.Record) *Resolver {
	return &Resolver{rec: rec, used: make(map[string]struct{}, 16)}
}

// Resolve returns the value of the first alias present with a non-empty
// value and marks that key consumed. Consumed keys are skipped.
func (r *Resolver) Resolve(aliases []string) (any, bool) {
	for _, k := range aliases {
		if _, taken := r.used[k]; taken {
			continue
		}
		v, ok := r.rec[k]
		if !ok || domain.IsEmpty(v) {
			continue
		}
		r.used[k] = struct{}{}
		return v, true
	}
	return nil, false
}

func (r *Resolver) Consumed(key string) bool {
	_, ok := r.used[key]
	return ok
}
