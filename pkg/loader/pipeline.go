package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/animals-etl/pkg/animals"
	"github.com/Sternrassler/animals-etl/pkg/cache"
	"github.com/Sternrassler/animals-etl/pkg/client"
	"github.com/Sternrassler/animals-etl/pkg/logging"
	"github.com/rs/zerolog"
)

// Phase identifies where the pipeline currently is, or where it ended.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseListing      Phase = "listing"
	PhaseFetching     Phase = "fetching"
	PhaseTransforming Phase = "transforming"
	PhaseUploading    Phase = "uploading"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// Config holds pipeline configuration.
type Config struct {
	// PerPage is the listing page size.
	PerPage int

	// Concurrency bounds in-flight detail requests (default 32).
	Concurrency int

	// BatchSize is the upload batch size, clamped to [1, 100].
	BatchSize int

	// AllowPartial proceeds to upload when some detail fetches fail
	// terminally. Default false: any terminal fetch failure aborts the run,
	// since the job is to load everything.
	AllowPartial bool

	// Cache is an optional detail cache; nil disables caching.
	Cache *cache.Store
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		PerPage:     DefaultPerPage,
		Concurrency: DefaultConcurrency,
		BatchSize:   MaxBatchSize,
	}
}

// Report is the outcome of one run: per-phase counts, the final phase, and
// the first fatal error when the run failed.
type Report struct {
	Listed        int
	Fetched       int
	FetchFailures int
	Transformed   int
	Dropped       int
	Uploaded      int
	FailedBatches int
	Phase         Phase
	FailedAt      Phase
	Err           error
	Duration      time.Duration
}

// Pipeline sequences extract, transform, and load against one API client.
type Pipeline struct {
	lister   *Lister
	fetcher  *DetailFetcher
	uploader *Uploader
	config   Config
	logger   zerolog.Logger
}

// New creates a pipeline from a client and configuration.
func New(c *client.Client, cfg Config) *Pipeline {
	return &Pipeline{
		lister: NewLister(c, cfg.PerPage),
		fetcher: NewDetailFetcher(c, FetcherConfig{
			Concurrency: cfg.Concurrency,
			FailFast:    !cfg.AllowPartial,
			Cache:       cfg.Cache,
		}),
		uploader: NewUploader(c, cfg.BatchSize),
		config:   cfg,
		logger:   logging.NewLogger("pipeline"),
	}
}

// Run executes the full pipeline. The report is always populated; a nil
// report Err with Phase == PhaseDone means every record was uploaded.
func (p *Pipeline) Run(ctx context.Context) (report Report) {
	start := time.Now()
	report.Phase = PhaseIdle
	defer func() {
		report.Duration = time.Since(start)
	}()

	// Listing
	report.Phase = PhaseListing
	p.logger.Info().Msg("Listing animals")
	summaries, err := p.lister.ListAll(ctx)
	if err != nil {
		return p.fail(report, err)
	}
	report.Listed = len(summaries)

	// Fetch details, id ascending so batch contents are reproducible across
	// runs regardless of completion order.
	report.Phase = PhaseFetching
	ids := make([]int64, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	p.logger.Info().
		Int("ids", len(ids)).
		Int("concurrency", p.fetcher.config.Concurrency).
		Msg("Fetching details")
	results, fetchErr := p.fetcher.FetchAll(ctx, ids)
	if fetchErr != nil && !p.config.AllowPartial {
		return p.fail(report, fmt.Errorf("%w: %w", ErrFetchFailed, fetchErr))
	}

	// Transforming: data-quality failures drop the record, never the run.
	report.Phase = PhaseTransforming
	records := make([]animals.Record, 0, len(ids))
	for _, id := range ids {
		res := results[id]
		if res.Err != nil {
			// AllowPartial: skip terminally failed ids.
			report.FetchFailures++
			continue
		}
		report.Fetched++

		rec, err := animals.Transform(res.Detail)
		if err != nil {
			report.Dropped++
			p.logger.Warn().
				Err(err).
				Int64("animal_id", id).
				Msg("Dropping malformed record")
			continue
		}
		records = append(records, rec)
	}
	report.Transformed = len(records)

	// Uploading
	report.Phase = PhaseUploading
	p.logger.Info().
		Int("records", len(records)).
		Int("batch_size", p.uploader.batchSize).
		Msg("Uploading records")
	uploadResult := p.uploader.UploadAll(ctx, records)
	report.Uploaded = uploadResult.Uploaded
	report.FailedBatches = len(uploadResult.FailedBatches)
	if len(uploadResult.FailedBatches) > 0 {
		return p.fail(report, fmt.Errorf("%w: %d batches failed: first: %w",
			ErrUploadFailed, len(uploadResult.FailedBatches), uploadResult.FailedBatches[0]))
	}

	report.Phase = PhaseDone
	p.logger.Info().
		Int("listed", report.Listed).
		Int("fetched", report.Fetched).
		Int("transformed", report.Transformed).
		Int("dropped", report.Dropped).
		Int("uploaded", report.Uploaded).
		Dur("duration", time.Since(start)).
		Msg("Pipeline complete")

	return report
}

// fail finalizes a report for a terminal phase error.
func (p *Pipeline) fail(report Report, err error) Report {
	p.logger.Error().
		Err(err).
		Str("phase", string(report.Phase)).
		Msg("Pipeline failed")
	report.Err = err
	report.FailedAt = report.Phase
	report.Phase = PhaseFailed
	return report
}

// Failed reports whether the run ended in a terminal error.
func (r Report) Failed() bool {
	return r.Err != nil || r.Phase == PhaseFailed
}

// Summary renders the one-line human summary printed at exit.
func (r Report) Summary() string {
	status := "OK"
	if r.Failed() {
		status = "FAILED"
	}
	return fmt.Sprintf("%s listed=%d fetched=%d transformed=%d dropped=%d uploaded=%d failed_batches=%d duration=%s",
		status, r.Listed, r.Fetched, r.Transformed, r.Dropped, r.Uploaded, r.FailedBatches, r.Duration.Round(time.Millisecond))
}
