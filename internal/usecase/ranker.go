package usecase

import (
	"sort"

	"github.com/cartmatch/reconciler/internal/domain"
)

// RankByPriceDiff returns the matches ordered by absolute dollar difference,
// largest first. The sort is stable so ties preserve input order, which keeps
// output deterministic across runs over the same snapshots.
func RankByPriceDiff(matches []domain.MatchRecord) []domain.MatchRecord {
	ranked := make([]domain.MatchRecord, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AbsPriceDiff() > ranked[j].AbsPriceDiff()
	})
	return ranked
}
