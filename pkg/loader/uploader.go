package loader

import (
	"context"
	"fmt"

	"github.com/Sternrassler/animals-etl/pkg/animals"
	"github.com/Sternrassler/animals-etl/pkg/client"
	"github.com/Sternrassler/animals-etl/pkg/logging"
	"github.com/rs/zerolog"
)

const homePath = "/animals/v1/home"

// MaxBatchSize is the server-side contract: the home endpoint rejects more
// than 100 records per request. Enforced regardless of configuration.
const MaxBatchSize = 100

// Uploader posts normalized records to the home endpoint in bounded batches.
type Uploader struct {
	client    *client.Client
	batchSize int
	logger    zerolog.Logger
}

// NewUploader creates an uploader. batchSize is clamped to [1, MaxBatchSize].
func NewUploader(c *client.Client, batchSize int) *Uploader {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Uploader{
		client:    c,
		batchSize: batchSize,
		logger:    logging.NewLogger("uploader"),
	}
}

// UploadResult reports the outcome of an upload pass.
type UploadResult struct {
	Uploaded      int
	FailedBatches []error
}

// UploadAll partitions records into contiguous batches in input order (the
// last batch may be smaller) and posts each through the retrying client.
// Batches are independent: one batch exhausting retries is recorded and
// does not block the remaining batches, so completed work is not wasted.
func (u *Uploader) UploadAll(ctx context.Context, records []animals.Record) UploadResult {
	var result UploadResult

	batches := chunk(records, u.batchSize)
	for i, batch := range batches {
		var resp struct {
			Message string `json:"message"`
		}
		if err := u.client.PostJSON(ctx, homePath, batch, &resp); err != nil {
			result.FailedBatches = append(result.FailedBatches,
				fmt.Errorf("batch %d (%d records): %w", i+1, len(batch), err))
			u.logger.Error().
				Err(err).
				Int("batch", i+1).
				Int("batch_size", len(batch)).
				Msg("Batch upload failed")
			continue
		}

		result.Uploaded += len(batch)
		u.logger.Info().
			Int("batch", i+1).
			Int("batches", len(batches)).
			Int("uploaded", result.Uploaded).
			Int("total", len(records)).
			Str("response", resp.Message).
			Msg("Batch uploaded")
	}

	return result
}

// chunk splits records into contiguous slices of at most size elements.
func chunk(records []animals.Record, size int) [][]animals.Record {
	if len(records) == 0 || size <= 0 {
		return nil
	}
	batches := make([][]animals.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
