package main

import (
	"os"
	"testing"

	"github.com/Sternrassler/animals-etl/internal/testutil"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_LOADER_VAR", "from-env")
	defer os.Unsetenv("TEST_LOADER_VAR")

	if got := getEnv("TEST_LOADER_VAR", "default"); got != "from-env" {
		t.Errorf("getEnv() = %q, want %q", got, "from-env")
	}
	if got := getEnv("TEST_LOADER_UNSET", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Setenv("TEST_LOADER_INT", "42")
	defer os.Unsetenv("TEST_LOADER_INT")

	if got := getEnvInt("TEST_LOADER_INT", 7); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("TEST_LOADER_UNSET", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want 7", got)
	}

	os.Setenv("TEST_LOADER_INT", "not-a-number")
	if got := getEnvInt("TEST_LOADER_INT", 7); got != 7 {
		t.Errorf("getEnvInt() with garbage = %d, want 7", got)
	}
}

func TestRunSuccess(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(4, 2)

	code := run([]string{
		"-base-url", mock.URL(),
		"-wait-timeout", "5s",
		"-concurrency", "2",
		"-log-level", "error",
	})
	if code != 0 {
		t.Errorf("run() = %d, want 0", code)
	}
	if len(mock.ReceivedBatches()) != 1 {
		t.Errorf("expected 1 upload batch, got %d", len(mock.ReceivedBatches()))
	}
}

func TestRunFetchFailure(t *testing.T) {
	mock := testutil.NewMockAnimalsAPI()
	defer mock.Close()
	mock.SeedAnimals(3, 3)
	mock.AlwaysFail("/animals/v1/animals/2", 500)

	code := run([]string{
		"-base-url", mock.URL(),
		"-wait-timeout", "5s",
		"-max-attempts", "2",
		"-log-level", "error",
	})
	if code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	code := run([]string{
		"-base-url", "http://localhost:1",
		"-max-attempts", "0",
		"-log-level", "error",
	})
	if code != 1 {
		t.Errorf("run() with invalid max-attempts = %d, want 1", code)
	}
}
