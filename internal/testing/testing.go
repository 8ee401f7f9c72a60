// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
)

// Call records one request made against a [MockService].
type Call struct {
	Method     string
	PlaylistID string
	URIs       []string
	Title      string
	Artist     string
	IDs        []string
}

// MockService is a test double for [services.Service].
//
// Search results are keyed by lower-cased "title|artist". Tracks are keyed by id. Errors in AddErrs are returned
// by successive AddTracks calls, a nil entry meaning success.
type MockService struct {
	mu sync.Mutex

	SearchResults map[string]*models.ResolvedTrack
	SearchErr     error
	Catalog       map[string]*models.ResolvedTrack
	TracksErr     error
	ClearErr      error
	AddErrs       []error

	Calls []Call
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{
		SearchResults: make(map[string]*models.ResolvedTrack),
		Catalog:       make(map[string]*models.ResolvedTrack),
	}
}

// SearchKey builds the key used by [MockService.SearchResults].
func SearchKey(title, artist string) string {
	return strings.ToLower(title + "|" + artist)
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error) {
	m.record(Call{Method: "search", Title: title, Artist: artist})
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	t, ok := m.SearchResults[SearchKey(title, artist)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, title)
	}
	cp := *t
	return &cp, nil
}

func (m *MockService) Tracks(ctx context.Context, ids []string) ([]*models.ResolvedTrack, error) {
	m.record(Call{Method: "tracks", IDs: append([]string(nil), ids...)})
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	out := make([]*models.ResolvedTrack, len(ids))
	for i, id := range ids {
		if t, ok := m.Catalog[id]; ok {
			cp := *t
			out[i] = &cp
		}
	}
	return out, nil
}

func (m *MockService) ClearPlaylist(ctx context.Context, playlistID string) error {
	m.record(Call{Method: "clear", PlaylistID: playlistID})
	return m.ClearErr
}

func (m *MockService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	var err error
	n := 0
	for _, c := range m.Calls {
		if c.Method == "add" {
			n++
		}
	}
	if n < len(m.AddErrs) {
		err = m.AddErrs[n]
	}
	m.mu.Unlock()

	m.record(Call{Method: "add", PlaylistID: playlistID, URIs: append([]string(nil), uris...)})
	return err
}

// CallsTo returns the recorded calls for method.
func (m *MockService) CallsTo(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockService) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

// MockLoader returns fixed rows.
type MockLoader struct {
	Rows []models.Row
	Err  error
}

func (l *MockLoader) Load(ctx context.Context, source string) ([]models.Row, error) {
	return l.Rows, l.Err
}

// NewRow builds a row from alternating column/value pairs.
func NewRow(line int, kv ...string) models.Row {
	row := models.Row{Line: line, Fields: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		row.Fields[kv[i]] = kv[i+1]
	}
	return row
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
