// Package testutil provides testing utilities for the animals ETL loader.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/animals-etl/pkg/animals"
)

// MockAnimalsAPI is a configurable, deterministic stand-in for the animals
// API. Random chaos belongs to the real upstream; tests script failures
// explicitly with FailTimes/AlwaysFail instead.
type MockAnimalsAPI struct {
	server *httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	pages    [][]animals.Summary
	details  map[int64]string
	failures map[string]*failureScript

	requestCounts   map[string]int
	receivedBatches [][]map[string]any
}

// failureScript makes a path fail with a status for a number of requests.
// remaining < 0 means fail forever.
type failureScript struct {
	status    int
	remaining int
}

// NewMockAnimalsAPI creates a started mock server with no data configured.
func NewMockAnimalsAPI() *MockAnimalsAPI {
	mock := &MockAnimalsAPI{
		handlers:      make(map[string]http.HandlerFunc),
		details:       make(map[int64]string),
		failures:      make(map[string]*failureScript),
		requestCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCounts[r.URL.Path]++
		script, scripted := mock.failures[r.URL.Path]
		if scripted && script.remaining == 0 {
			scripted = false
		}
		if scripted && script.remaining > 0 {
			script.remaining--
		}
		handler, custom := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if scripted {
			http.Error(w, "Sorry!", script.status)
			return
		}
		if custom {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAnimalsAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAnimalsAPI) Close() {
	m.server.Close()
}

// Reset clears tracking counters and received batches.
func (m *MockAnimalsAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounts = make(map[string]int)
	m.receivedBatches = nil
}

// SetHandler installs a custom handler for an exact path.
func (m *MockAnimalsAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetPages configures the listing dataset. Page numbers are 1-indexed;
// requests beyond the last page return an empty item list.
func (m *MockAnimalsAPI) SetPages(pages [][]animals.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
}

// SetDetail configures the raw detail body served for an animal id.
func (m *MockAnimalsAPI) SetDetail(id int64, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[id] = body
}

// SeedAnimals configures pageSize-sized listing pages and matching details
// for ids 1..count, with a friends string and epoch-millis born_at.
func (m *MockAnimalsAPI) SeedAnimals(count, pageSize int) {
	var pages [][]animals.Summary
	var page []animals.Summary
	for i := 1; i <= count; i++ {
		id := int64(i)
		name := fmt.Sprintf("Animal-%d", i)
		page = append(page, animals.Summary{ID: id, Name: name})
		if len(page) == pageSize {
			pages = append(pages, page)
			page = nil
		}
		m.SetDetail(id, fmt.Sprintf(
			`{"id": %d, "name": %q, "friends": "Tom, Jerry", "born_at": 1609459200000}`, id, name))
	}
	if len(page) > 0 {
		pages = append(pages, page)
	}
	m.SetPages(pages)
}

// FailTimes makes the next n requests to path fail with status.
func (m *MockAnimalsAPI) FailTimes(path string, status, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = &failureScript{status: status, remaining: n}
}

// AlwaysFail makes every request to path fail with status.
func (m *MockAnimalsAPI) AlwaysFail(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = &failureScript{status: status, remaining: -1}
}

// RequestCount returns the number of requests seen for an exact path.
func (m *MockAnimalsAPI) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCounts[path]
}

// TotalRequests returns the number of requests seen across all paths.
func (m *MockAnimalsAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requestCounts {
		total += n
	}
	return total
}

// ReceivedBatches returns the batches posted to the home endpoint in order.
func (m *MockAnimalsAPI) ReceivedBatches() [][]map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]map[string]any, len(m.receivedBatches))
	copy(out, m.receivedBatches)
	return out
}

// defaultHandler implements the animals API contract from configured data.
func (m *MockAnimalsAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/":
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `"Hello!"`)

	case path == "/animals/v1/animals" && r.Method == http.MethodGet:
		m.serveListing(w, r)

	case strings.HasPrefix(path, "/animals/v1/animals/") && r.Method == http.MethodGet:
		m.serveDetail(w, strings.TrimPrefix(path, "/animals/v1/animals/"))

	case path == "/animals/v1/home" && r.Method == http.MethodPost:
		m.serveHome(w, r)

	default:
		http.NotFound(w, r)
	}
}

func (m *MockAnimalsAPI) serveListing(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	m.mu.RLock()
	totalPages := len(m.pages)
	var items []animals.Summary
	if page <= totalPages {
		items = m.pages[page-1]
	}
	m.mu.RUnlock()

	if items == nil {
		items = []animals.Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(animals.ListPage{
		Page:       page,
		TotalPages: totalPages,
		Items:      items,
	})
}

func (m *MockAnimalsAPI) serveDetail(w http.ResponseWriter, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	body, ok := m.details[id]
	m.mu.RUnlock()

	if !ok {
		http.NotFound(w, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func (m *MockAnimalsAPI) serveHome(w http.ResponseWriter, r *http.Request) {
	var batch []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	if len(batch) > 100 {
		http.Error(w, "Sorry, only 100 animals at a time", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.receivedBatches = append(m.receivedBatches, batch)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"message": "Helped %d find home"}`, len(batch))
}
