package browse

import (
	"context"
	"strings"
)

func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Filter returns the records matching query in their original order.
// An empty query matches everything and returns recs as is.
func Filter(recs []JoinedRecord, query string) []JoinedRecord {
	kw := NormalizeQuery(query)
	if kw == "" {
		return recs
	}

	out := make([]JoinedRecord, 0, len(recs)/4)
	for _, r := range recs {
		if r.matches(kw) {
			out = append(out, r)
		}
	}
	return out
}

func (r JoinedRecord) matches(kw string) bool {
	if strings.Contains(r.title, kw) || strings.Contains(r.desc, kw) {
		return true
	}
	if r.User == nil {
		return false
	}
	return strings.Contains(r.first, kw) || strings.Contains(r.last, kw)
}

const cancelCheckEvery = 256

// FilterContext is Filter that gives up once ctx is done, so a superseded
// recompute stops burning CPU.
func FilterContext(ctx context.Context, recs []JoinedRecord, query string) ([]JoinedRecord, error) {
	kw := NormalizeQuery(query)
	if kw == "" {
		return recs, ctx.Err()
	}

	out := make([]JoinedRecord, 0, len(recs)/4)
	for i, r := range recs {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if r.matches(kw) {
			out = append(out, r)
		}
	}
	return out, nil
}
