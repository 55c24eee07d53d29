package loader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/animals-etl/pkg/logging"
)

// WaitUntilReady polls the API root until it answers with a sub-4xx status
// or the timeout elapses. The upstream takes a while to generate its
// dataset on startup, so the loader waits before extracting.
func WaitUntilReady(ctx context.Context, baseURL string, timeout, interval time.Duration) error {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	if interval <= 0 {
		interval = time.Second
	}

	logger := logging.NewLogger("readiness")
	logger.Info().
		Str("url", baseURL).
		Dur("timeout", timeout).
		Msg("Waiting for API")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpClient := &http.Client{Timeout: 3 * time.Second}
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
		if err != nil {
			return fmt.Errorf("readiness request: %w", err)
		}

		resp, err := httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 400 {
				logger.Info().
					Int("status", resp.StatusCode).
					Int("attempt", attempt).
					Msg("API is up")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("api not ready within %s: %w", timeout, ctx.Err())
		case <-time.After(interval):
		}
	}
}
