package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/animals-etl/pkg/animals"
	"github.com/Sternrassler/animals-etl/pkg/cache"
	"github.com/Sternrassler/animals-etl/pkg/client"
	"github.com/Sternrassler/animals-etl/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultConcurrency bounds in-flight detail requests. Thousands of ids must
// not open thousands of simultaneous connections.
const DefaultConcurrency = 32

// DetailResult is the terminal outcome for one id: a detail or an error,
// never both.
type DetailResult struct {
	Detail animals.Detail
	Err    error
}

// FetcherConfig holds detail fetcher configuration.
type FetcherConfig struct {
	// Concurrency is the maximum number of in-flight detail requests.
	Concurrency int

	// FailFast cancels in-flight siblings after the first terminal per-id
	// failure. Leave false when partial results are wanted.
	FailFast bool

	// Cache is an optional detail payload cache; nil disables caching.
	Cache *cache.Store
}

// DetailFetcher fetches per-id details through a fixed worker pool.
type DetailFetcher struct {
	client *client.Client
	config FetcherConfig
	logger zerolog.Logger
}

// NewDetailFetcher creates a detail fetcher.
func NewDetailFetcher(c *client.Client, cfg FetcherConfig) *DetailFetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &DetailFetcher{
		client: c,
		config: cfg,
		logger: logging.NewLogger("fetcher"),
	}
}

// FetchAll fetches the detail for every id. Results may complete out of
// order, but every input id yields exactly one entry before FetchAll
// returns. Each worker owns one result slot at a time, so slot writes are
// never contended. The returned error is the failure that triggered
// FailFast cancellation when there was one, otherwise the first terminal
// per-id failure in id order (nil when all ids succeeded); the mapping is
// complete either way.
func (f *DetailFetcher) FetchAll(ctx context.Context, ids []int64) (map[int64]DetailResult, error) {
	results := make([]DetailResult, len(ids))

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	indexQueue := make(chan int, len(ids))
	for i := range ids {
		indexQueue <- i
	}
	close(indexQueue)

	var fetched atomic.Int64
	var wg sync.WaitGroup

	// The terminal error that triggered cancellation. Once FailFast cancels
	// the phase, sibling slots fill with cancellation artifacts; the cause
	// must not be masked by them.
	var failOnce sync.Once
	var failErr error

	for w := 0; w < f.config.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range indexQueue {
				id := ids[i]

				if err := phaseCtx.Err(); err != nil {
					results[i] = DetailResult{Err: fmt.Errorf("animal %d: fetch cancelled: %w", id, err)}
					continue
				}

				detail, err := f.fetchOne(phaseCtx, id)
				if err != nil {
					results[i] = DetailResult{Err: err}
					f.logger.Warn().
						Err(err).
						Int("worker_id", workerID).
						Int64("animal_id", id).
						Msg("Detail fetch failed")
					if f.config.FailFast {
						failOnce.Do(func() {
							failErr = err
							cancel()
						})
					}
					continue
				}

				results[i] = DetailResult{Detail: detail}
				if n := fetched.Add(1); n%100 == 0 {
					f.logger.Info().
						Int64("fetched", n).
						Int("total", len(ids)).
						Msg("Fetch progress")
				}
			}
		}(w)
	}
	wg.Wait()

	out := make(map[int64]DetailResult, len(ids))
	firstErr := failErr
	for i, id := range ids {
		out[id] = results[i]
		if results[i].Err != nil && firstErr == nil {
			firstErr = results[i].Err
		}
	}

	f.logger.Info().
		Int64("fetched", fetched.Load()).
		Int("total", len(ids)).
		Msg("Fetch complete")

	return out, firstErr
}

// fetchOne resolves a single detail, consulting the cache first when one is
// configured. Cache errors degrade to a direct fetch.
func (f *DetailFetcher) fetchOne(ctx context.Context, id int64) (animals.Detail, error) {
	path := fmt.Sprintf("/animals/v1/animals/%d", id)

	if f.config.Cache != nil {
		payload, err := f.config.Cache.Get(ctx, id)
		if err == nil {
			var detail animals.Detail
			if err := json.Unmarshal(payload, &detail); err == nil {
				f.logger.Debug().Int64("animal_id", id).Msg("Detail cache hit")
				return detail, nil
			}
			// Corrupted entry: refetch and overwrite.
			_ = f.config.Cache.Delete(ctx, id)
		} else if err != cache.ErrCacheMiss {
			f.logger.Warn().Err(err).Int64("animal_id", id).Msg("Cache get error")
		}
	}

	var payload json.RawMessage
	if err := f.client.GetJSON(ctx, path, nil, &payload); err != nil {
		return animals.Detail{}, fmt.Errorf("animal %d: %w", id, err)
	}

	var detail animals.Detail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return animals.Detail{}, fmt.Errorf("animal %d: decode detail: %w", id, err)
	}

	if f.config.Cache != nil {
		if err := f.config.Cache.Set(ctx, id, payload); err != nil {
			f.logger.Warn().Err(err).Int64("animal_id", id).Msg("Cache set error")
		}
	}

	return detail, nil
}
