package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// ArtifactWriter persists the three run artifacts: the unfiltered match list,
// the final ranked list, and the recovery snapshot written when a run fails
// before completion.
type ArtifactWriter interface {
	WriteRaw(matches []domain.MatchRecord) error
	WriteFinal(matches []domain.MatchRecord) error
	WriteRecovery(matches []domain.MatchRecord) error
}

// PipelineConfig holds configuration for the reconciliation pipeline.
type PipelineConfig struct {
	MaxConcurrent int
	CacheTTL      time.Duration
}

// Pipeline runs the full reconciliation: partition both catalogs by brand,
// fan out one matching task per partition, assemble and validate the results,
// then rank and persist them. Task failures degrade coverage but never abort
// the run; only structural failures (unwritable output, cancellation) end it
// early, and even then accumulated matches are flushed first.
type Pipeline struct {
	partitioner   *Partitioner
	matcher       domain.Matcher
	assembler     *Assembler
	validator     *Validator
	artifacts     ArtifactWriter
	cache         domain.CacheRepository
	cacheTTL      time.Duration
	maxConcurrent int
	logger        *zap.Logger
}

// NewPipeline wires the pipeline stages together. cache may be nil to disable
// response caching.
func NewPipeline(
	partitioner *Partitioner,
	matcher domain.Matcher,
	assembler *Assembler,
	validator *Validator,
	artifacts ArtifactWriter,
	cache domain.CacheRepository,
	config PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &Pipeline{
		partitioner:   partitioner,
		matcher:       matcher,
		assembler:     assembler,
		validator:     validator,
		artifacts:     artifacts,
		cache:         cache,
		cacheTTL:      cacheTTL,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// taskResult is one matching task's outcome: its assembled matches plus its
// contribution to the run statistics.
type taskResult struct {
	matches []domain.MatchRecord
	stats   domain.TaskStats
}

// Run executes the pipeline over two loaded catalogs.
// The returned statistics are valid even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, storeA, storeB []domain.Product) (stats *domain.RunStats, err error) {
	start := time.Now()
	stats = &domain.RunStats{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", stats.RunID))

	var accumulated []domain.MatchRecord
	defer func() {
		// Whatever happened, partial progress is never discarded: an
		// unexpected panic becomes a reported failure with a recovery
		// artifact, same as any other pipeline-level error.
		if r := recover(); r != nil {
			p.flushRecovery(accumulated, log)
			stats.TotalDuration = time.Since(start)
			err = fmt.Errorf("pipeline failure: %v", r)
		}
	}()

	if len(storeA) == 0 || len(storeB) == 0 {
		return stats, domain.ErrEmptyCatalog
	}

	partitionStart := time.Now()
	partitioned := p.partitioner.Partition(storeA, storeB)
	stats.MatchingBrands = partitioned.MatchingBrands
	stats.MatchedBrandProducts = partitioned.MatchedBrandProducts
	stats.PartitionDuration = time.Since(partitionStart)

	partitions := partitioned.Partitions
	stats.TasksDispatched = len(partitions)
	log.Info("dispatching matching tasks",
		zap.Int("tasks", len(partitions)),
		zap.Int("max_concurrent", p.maxConcurrent),
	)

	matchingStart := time.Now()
	results := runTasks(ctx, len(partitions), p.maxConcurrent, func(ctx context.Context, idx int) taskResult {
		return p.matchPartition(ctx, partitions[idx], log)
	})
	stats.MatchingDuration = time.Since(matchingStart)

	for _, r := range results {
		stats.Add(r.stats)
		accumulated = append(accumulated, r.matches...)
	}
	stats.MatchesAssembled = len(accumulated)

	if ctxErr := ctx.Err(); ctxErr != nil {
		p.flushRecovery(accumulated, log)
		stats.TotalDuration = time.Since(start)
		return stats, ctxErr
	}

	if writeErr := p.artifacts.WriteRaw(accumulated); writeErr != nil {
		// The unfiltered snapshot is a side artifact; losing it does not
		// invalidate the run.
		log.Warn("failed to write unfiltered matches", zap.Error(writeErr))
	}

	validated := p.validator.Filter(accumulated)
	stats.MatchesRemoved = validated.Removed

	ranked := RankByPriceDiff(validated.Kept)
	stats.MatchesKept = len(ranked)

	if writeErr := p.artifacts.WriteFinal(ranked); writeErr != nil {
		p.flushRecovery(accumulated, log)
		stats.TotalDuration = time.Since(start)
		return stats, fmt.Errorf("writing final matches: %w", writeErr)
	}

	stats.TotalDuration = time.Since(start)
	log.Info("reconciliation complete",
		zap.Int("brands", stats.MatchingBrands),
		zap.Int("matches_assembled", stats.MatchesAssembled),
		zap.Int("matches_kept", stats.MatchesKept),
		zap.Int("tasks_failed", stats.TasksFailed),
		zap.Duration("total", stats.TotalDuration),
	)

	return stats, nil
}

// matchPartition runs one brand's matching task end to end. Any error is
// contained here: the task resolves to an empty result and only the failure
// count records that anything went wrong.
func (p *Pipeline) matchPartition(ctx context.Context, partition domain.BrandPartition, log *zap.Logger) taskResult {
	pairs, cacheHit, err := p.lookupOrMatch(ctx, partition)
	if err != nil {
		log.Warn("matching task failed",
			zap.String("brand", partition.Brand),
			zap.Error(err),
		)
		return taskResult{stats: domain.TaskStats{Failed: true}}
	}

	assembled := p.assembler.Assemble(partition, pairs)
	log.Debug("matching task complete",
		zap.String("brand", partition.Brand),
		zap.Int("pairs", len(pairs)),
		zap.Int("matches", len(assembled.Matches)),
		zap.Bool("cache_hit", cacheHit),
	)

	return taskResult{
		matches: assembled.Matches,
		stats: domain.TaskStats{
			CacheHit:      cacheHit,
			PairsReturned: len(pairs),
			PairsDropped:  assembled.Dropped,
		},
	}
}

// lookupOrMatch consults the response cache before paying for an external
// call. Poisoned cache entries are deleted and treated as misses.
func (p *Pipeline) lookupOrMatch(ctx context.Context, partition domain.BrandPartition) ([]domain.CandidatePair, bool, error) {
	key := matchCacheKey(partition)

	if p.cache != nil {
		if data, err := p.cache.Get(ctx, key); err == nil {
			var pairs []domain.CandidatePair
			if json.Unmarshal(data, &pairs) == nil {
				return pairs, true, nil
			}
			_ = p.cache.Delete(ctx, key)
		}
	}

	pairs, err := p.matcher.MatchProducts(ctx, partition.Brand, partition.StoreAProducts, partition.StoreBProducts)
	if err != nil {
		return nil, false, err
	}

	if p.cache != nil {
		if data, marshalErr := json.Marshal(pairs); marshalErr == nil {
			_ = p.cache.Set(ctx, key, data, p.cacheTTL)
		}
	}

	return pairs, false, nil
}

// matchCacheKey fingerprints a partition by brand and candidate identifiers,
// so a cache entry is only reused while both candidate lists are unchanged.
func matchCacheKey(partition domain.BrandPartition) string {
	h := fnv.New64a()
	for _, p := range partition.StoreAProducts {
		h.Write([]byte(p.Identifier()))
		h.Write([]byte{'|'})
	}
	h.Write([]byte{';'})
	for _, p := range partition.StoreBProducts {
		h.Write([]byte(p.Identifier()))
		h.Write([]byte{'|'})
	}
	return fmt.Sprintf("match:%s:%x", partition.Brand, h.Sum64())
}

// flushRecovery writes accumulated matches to the recovery artifact,
// best-effort.
func (p *Pipeline) flushRecovery(matches []domain.MatchRecord, log *zap.Logger) {
	if len(matches) == 0 {
		return
	}
	if err := p.artifacts.WriteRecovery(matches); err != nil {
		log.Error("failed to write recovery artifact", zap.Error(err))
		return
	}
	log.Info("flushed partial matches to recovery artifact", zap.Int("matches", len(matches)))
}
