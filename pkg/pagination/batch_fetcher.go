package pagination

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/zerolog"
)

var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_batch_items_total",
		Help: "Total per-repository operations run by batch fetches, by operation and outcome",
	}, []string{"operation", "outcome"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghstats_batch_duration_seconds",
		Help:    "Duration of a single batch by operation",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"operation"})
)

// Default batch sizes per operation.
const (
	DefaultLinesBatchSize     = 5
	DefaultViewsBatchSize     = 10
	DefaultBreakdownBatchSize = 5
)

// FetchFunc fetches the result for one key.
type FetchFunc[K any, T any] func(ctx context.Context, key K) (T, error)

// FetchAll runs op for every key, batchSize at a time. All calls of a
// batch finish before the next batch starts. The result has one entry
// per key in key order; a failed key yields the zero value of T and is
// logged to logger, never returned.
func FetchAll[K any, T any](ctx context.Context, logger zerolog.Logger, operation string, keys []K, batchSize int, op FetchFunc[K, T]) []T {
	if batchSize <= 0 {
		batchSize = 1
	}

	start := time.Now()
	results := make([]T, len(keys))
	failed := 0
	batches := 0

	for lo := 0; lo < len(keys); lo += batchSize {
		if ctx.Err() != nil {
			logger.Warn().
				Str("operation", operation).
				Int("completed", lo).
				Int("total", len(keys)).
				Msg("Batch fetch stopped (context cancelled)")
			break
		}

		hi := lo + batchSize
		if hi > len(keys) {
			hi = len(keys)
		}

		batchStart := time.Now()
		errs := make([]error, hi-lo)
		swg := sizedwaitgroup.New(batchSize)
		for i := lo; i < hi; i++ {
			swg.Add()
			go func(i int) {
				defer swg.Done()
				v, err := op(ctx, keys[i])
				if err != nil {
					errs[i-lo] = err
					return
				}
				results[i] = v
			}(i)
		}
		swg.Wait()
		batches++
		batchDuration.WithLabelValues(operation).Observe(time.Since(batchStart).Seconds())

		for j, err := range errs {
			if err == nil {
				batchItemsTotal.WithLabelValues(operation, "ok").Inc()
				continue
			}
			failed++
			batchItemsTotal.WithLabelValues(operation, "failed").Inc()
			logger.Warn().
				Err(err).
				Str("operation", operation).
				Interface("key", keys[lo+j]).
				Msg("Per-repository fetch failed, using empty result")
		}

		logger.Debug().
			Str("operation", operation).
			Int("fetched", hi).
			Int("total", len(keys)).
			Msg("Batch complete")
	}

	logger.Info().
		Str("operation", operation).
		Int("keys", len(keys)).
		Int("batches", batches).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}
