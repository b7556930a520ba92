package matching

import (
	"sort"

	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
)

// Rank orders results best first and keeps at most k of them. Ties break on
// lower known tuition, then normalized name, degree and field, so the order
// never depends on input order.
func Rank(results []Result, k int) []Result {
	ranked := make([]Result, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		at, aok := a.Record.Tuition()
		bt, bok := b.Record.Tuition()
		if aok != bok {
			return aok
		}
		if aok && at != bt {
			return at < bt
		}
		ak, bk := a.Record.Key(), b.Record.Key()
		if ak.NormalizedName != bk.NormalizedName {
			return ak.NormalizedName < bk.NormalizedName
		}
		if ak.Degree != bk.Degree {
			return ak.Degree < bk.Degree
		}
		if ak.Field != bk.Field {
			return ak.Field < bk.Field
		}
		return normalize.Text(a.Record.University) < normalize.Text(b.Record.University)
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
