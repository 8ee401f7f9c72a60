// package loader reads the track list CSV from a local file or an HTTP(S) URL.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader fetches and parses track list CSVs.
type Loader struct {
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a Loader. A nil client uses [http.DefaultClient]; a nil logger uses [shared.NewLogger].
func New(client *http.Client, logger *log.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Loader{httpClient: client, logger: logger}
}

// IsRemote reports whether source is an http or https URL.
func IsRemote(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Load reads rows from source, which is either a local path or an HTTP(S) URL.
//
// Every failure is wrapped in [shared.ErrCSVFetch] or [shared.ErrCSVParse].
func (l *Loader) Load(ctx context.Context, source string) ([]models.Row, error) {
	source = strings.TrimSpace(source)

	var data []byte
	var err error
	if IsRemote(source) {
		l.logger.Infof("fetching CSV from URL %v", source)
		data, err = l.fetch(ctx, source)
	} else {
		l.logger.Infof("reading CSV from %v", source)
		data, err = os.ReadFile(source)
		if err != nil {
			err = fmt.Errorf("%w: %v", shared.ErrCSVFetch, err)
		}
	}
	if err != nil {
		return nil, err
	}

	rows, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	l.logger.Infof("read %d rows from CSV", len(rows))
	return rows, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrCSVFetch, err)
	}
	req.Header.Set("User-Agent", shared.UserAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrCSVFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", shared.ErrCSVFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrCSVFetch, err)
	}
	return body, nil
}

// Parse reads a header line followed by records.
//
// Column names are trimmed and lower-cased, values are trimmed, short records are padded with empty values,
// and cells under an empty header are dropped. When a column name repeats, the last one wins.
func Parse(r io.Reader) ([]models.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", shared.ErrCSVParse, err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = string(bytes.TrimPrefix([]byte(h), utf8BOM))
		}
		keys[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := []models.Row{}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", shared.ErrCSVParse, line, err)
		}

		fields := make(map[string]string, len(keys))
		for i, key := range keys {
			if key == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			fields[key] = value
		}
		rows = append(rows, models.Row{Line: line, Fields: fields})
	}

	return rows, nil
}
