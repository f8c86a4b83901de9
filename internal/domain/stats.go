package domain

import "time"

// RunStats accumulates the end-of-run diagnostics for one pipeline execution.
// Each stage returns its own contribution; the pipeline aggregates them after
// the fan-in barrier, so no synchronization is needed here.
type RunStats struct {
	RunID string `json:"run_id"`

	// Partitioning
	MatchingBrands       int `json:"matching_brands"`
	MatchedBrandProducts int `json:"matched_brand_products"`

	// Dispatch
	TasksDispatched int `json:"tasks_dispatched"`
	TasksFailed     int `json:"tasks_failed"`
	CacheHits       int `json:"cache_hits"`

	// Assembly
	PairsReturned int `json:"pairs_returned"`
	PairsDropped  int `json:"pairs_dropped"`

	// Validation and ranking
	MatchesAssembled int `json:"matches_assembled"`
	MatchesRemoved   int `json:"matches_removed"`
	MatchesKept      int `json:"matches_kept"`

	PartitionDuration time.Duration `json:"partition_duration"`
	MatchingDuration  time.Duration `json:"matching_duration"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// TaskStats is one matching task's contribution to the run statistics.
type TaskStats struct {
	Failed        bool
	CacheHit      bool
	PairsReturned int
	PairsDropped  int
}

// Add folds a single task's outcome into the run totals.
func (s *RunStats) Add(t TaskStats) {
	if t.Failed {
		s.TasksFailed++
	}
	if t.CacheHit {
		s.CacheHits++
	}
	s.PairsReturned += t.PairsReturned
	s.PairsDropped += t.PairsDropped
}
