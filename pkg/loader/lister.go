// Package loader implements the extract-transform-load pipeline against the
// animals API: sequential pagination, bounded-concurrency detail fetching,
// normalization, and batched upload.
package loader

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/animals-etl/pkg/animals"
	"github.com/Sternrassler/animals-etl/pkg/client"
	"github.com/Sternrassler/animals-etl/pkg/logging"
	"github.com/rs/zerolog"
)

const listPath = "/animals/v1/animals"

// DefaultPerPage matches the upstream's page size.
const DefaultPerPage = 10

// Lister walks all pages of the listing endpoint sequentially. Page N+1 is
// not requested until page N is consumed; the traversal depends on the
// server-reported metadata of the previous page.
type Lister struct {
	client  *client.Client
	perPage int
	logger  zerolog.Logger
}

// NewLister creates a lister. perPage <= 0 falls back to DefaultPerPage.
func NewLister(c *client.Client, perPage int) *Lister {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Lister{
		client:  c,
		perPage: perPage,
		logger:  logging.NewLogger("lister"),
	}
}

// ListAll fetches every listing page starting from page 1 and returns all
// summaries in listing order. An empty page is the authoritative terminal
// condition; the server-reported total page count is a secondary bound, so
// the walk is robust to miscounted totals. A page exhausting retries aborts
// the whole listing with ErrListingFailed.
func (l *Lister) ListAll(ctx context.Context) ([]animals.Summary, error) {
	var summaries []animals.Summary

	for page := 1; ; page++ {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(l.perPage)},
		}

		var resp animals.ListPage
		if err := l.client.GetJSON(ctx, listPath, query, &resp); err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrListingFailed, page, err)
		}

		if len(resp.Items) == 0 {
			break
		}
		summaries = append(summaries, resp.Items...)

		if page%50 == 0 {
			l.logger.Info().
				Int("page", page).
				Int("total_pages", resp.TotalPages).
				Int("listed", len(summaries)).
				Msg("Listing progress")
		}

		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}

	l.logger.Info().
		Int("listed", len(summaries)).
		Msg("Listing complete")

	return summaries, nil
}
