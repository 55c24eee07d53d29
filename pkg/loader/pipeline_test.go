package loader

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/animals-etl/internal/testutil"
)

func newTestPipeline(t *testing.T, mock *testutil.MockAnimalsAPI, cfg Config) *Pipeline {
	t.Helper()
	return New(newTestClient(t, mock.URL(), 3), cfg)
}

func TestRun_HappyPath(t *testing.T) {
	// Listing returns 2 pages of 3 items (ids 1-6), details resolve with
	// concurrency 2, batch size 100: one batch of 6, run ends Done.
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(6, 3)

	pipeline := newTestPipeline(t, mock, Config{
		PerPage:     3,
		Concurrency: 2,
		BatchSize:   100,
	})

	report := pipeline.Run(context.Background())

	if report.Failed() {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.Phase != PhaseDone {
		t.Errorf("Phase = %s, want done", report.Phase)
	}
	if report.Listed != 6 || report.Fetched != 6 || report.Transformed != 6 || report.Uploaded != 6 {
		t.Errorf("Counts = %+v, want 6 across the board", report)
	}
	if report.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", report.Dropped)
	}

	batches := mock.ReceivedBatches()
	if len(batches) != 1 {
		t.Fatalf("Server received %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 6 {
		t.Fatalf("Batch has %d records, want 6", len(batches[0]))
	}

	// Records are re-sorted id ascending so batch contents are reproducible
	// regardless of detail completion order.
	for i, rec := range batches[0] {
		if rec["id"] != float64(i+1) {
			t.Errorf("batch[%d].id = %v, want %d", i, rec["id"], i+1)
		}
		friends, ok := rec["friends"].([]any)
		if !ok || len(friends) != 2 || friends[0] != "Tom" || friends[1] != "Jerry" {
			t.Errorf("batch[%d].friends = %v, want [Tom Jerry]", i, rec["friends"])
		}
		if rec["born_at"] != "2021-01-01T00:00:00Z" {
			t.Errorf("batch[%d].born_at = %v, want 2021-01-01T00:00:00Z", i, rec["born_at"])
		}
	}
}

func TestRun_FetchFailureAbortsBeforeUpload(t *testing.T) {
	// Id 4's detail endpoint always returns 500: the run must end Failed in
	// the fetch phase with no upload attempted.
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(6, 3)
	mock.AlwaysFail("/animals/v1/animals/4", http.StatusInternalServerError)

	pipeline := newTestPipeline(t, mock, Config{PerPage: 3, Concurrency: 2})

	report := pipeline.Run(context.Background())

	if !report.Failed() {
		t.Fatal("Expected run to fail")
	}
	if report.FailedAt != PhaseFetching {
		t.Errorf("FailedAt = %s, want fetching", report.FailedAt)
	}
	if !errors.Is(report.Err, ErrFetchFailed) {
		t.Errorf("Err = %v, want ErrFetchFailed", report.Err)
	}
	if mock.RequestCount("/animals/v1/home") != 0 {
		t.Error("No upload must be attempted after a fetch failure")
	}
}

func TestRun_AllowPartialProceedsWithoutFailedIDs(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(6, 3)
	mock.AlwaysFail("/animals/v1/animals/4", http.StatusInternalServerError)

	pipeline := newTestPipeline(t, mock, Config{
		PerPage:      3,
		Concurrency:  2,
		AllowPartial: true,
	})

	report := pipeline.Run(context.Background())

	if report.Failed() {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.Fetched != 5 || report.FetchFailures != 1 {
		t.Errorf("Fetched/FetchFailures = %d/%d, want 5/1", report.Fetched, report.FetchFailures)
	}
	if report.Uploaded != 5 {
		t.Errorf("Uploaded = %d, want 5", report.Uploaded)
	}
}

func TestRun_MalformedTimestampDroppedNotFatal(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(3, 3)
	mock.SetDetail(2, `{"id": 2, "name": "Dog", "friends": "", "born_at": "yesterday"}`)

	pipeline := newTestPipeline(t, mock, Config{PerPage: 3, Concurrency: 2})

	report := pipeline.Run(context.Background())

	if report.Failed() {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", report.Dropped)
	}
	if report.Uploaded != 2 {
		t.Errorf("Uploaded = %d, want 2", report.Uploaded)
	}
}

func TestRun_ListingFailureAbortsRun(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.AlwaysFail("/animals/v1/animals", http.StatusServiceUnavailable)

	pipeline := newTestPipeline(t, mock, Config{})

	report := pipeline.Run(context.Background())

	if !report.Failed() {
		t.Fatal("Expected run to fail")
	}
	if report.FailedAt != PhaseListing {
		t.Errorf("FailedAt = %s, want listing", report.FailedAt)
	}
	if !errors.Is(report.Err, ErrListingFailed) {
		t.Errorf("Err = %v, want ErrListingFailed", report.Err)
	}
	if mock.RequestCount("/animals/v1/home") != 0 {
		t.Error("No upload must be attempted after a listing failure")
	}
}

func TestRun_UploadFailureReported(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(3, 3)
	mock.AlwaysFail("/animals/v1/home", http.StatusBadGateway)

	pipeline := newTestPipeline(t, mock, Config{PerPage: 3, Concurrency: 2})

	report := pipeline.Run(context.Background())

	if !report.Failed() {
		t.Fatal("Expected run to fail")
	}
	if report.FailedAt != PhaseUploading {
		t.Errorf("FailedAt = %s, want uploading", report.FailedAt)
	}
	if !errors.Is(report.Err, ErrUploadFailed) {
		t.Errorf("Err = %v, want ErrUploadFailed", report.Err)
	}
	if report.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", report.FailedBatches)
	}
}

func TestRun_EmptyDatasetIsDone(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()

	pipeline := newTestPipeline(t, mock, Config{})

	report := pipeline.Run(context.Background())
	if report.Failed() {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.Phase != PhaseDone || report.Uploaded != 0 {
		t.Errorf("Report = %+v, want Done with 0 uploads", report)
	}
}

func TestReport_Summary(t *testing.T) {
	report := Report{
		Listed: 6, Fetched: 6, Transformed: 6, Uploaded: 6,
		Phase: PhaseDone,
	}
	if got := report.Summary(); got == "" || got[:2] != "OK" {
		t.Errorf("Summary() = %q, want OK prefix", got)
	}

	report.Err = ErrUploadFailed
	if got := report.Summary(); got[:6] != "FAILED" {
		t.Errorf("Summary() = %q, want FAILED prefix", got)
	}
}
