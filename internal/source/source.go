// Package source loads raw publication records from the upstream
// publication feeds: a local JSON export or the paginated HTTP API.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/circulab/pubrag/internal/domain"
)

// File reads publication records from a local JSON export. The export is
// either a single record object or an array of records.
type File struct{}

// NewFile creates a local-file record source.
func NewFile() *File {
	return &File{}
}

// Fetch reads and decodes the export at path. A single-object export is
// returned as a one-record batch.
func (f *File) Fetch(_ context.Context, path string) ([]domain.RawPublication, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publications file: %w", err)
	}
	return decodeRecords(data)
}

// API fetches publication records from the upstream HTTP endpoint.
type API struct {
	endpoint string
	client   *http.Client
}

// NewAPI creates an API record source for the given endpoint URL.
func NewAPI(endpoint string, timeout time.Duration) *API {
	return &API{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch requests up to limit records via the endpoint's limit query
// parameter. Transport and status failures are reported as a source
// availability error.
func (a *API) Fetch(ctx context.Context, limit int) ([]domain.RawPublication, error) {
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse source endpoint: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrSourceUnavailable, err)
	}

	return decodeRecords(data)
}

// decodeRecords accepts either an array of records or one bare record.
func decodeRecords(data []byte) ([]domain.RawPublication, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var rec domain.RawPublication
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode publication record: %w", err)
		}
		return []domain.RawPublication{rec}, nil
	}

	var recs []domain.RawPublication
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode publication records: %w", err)
	}
	return recs, nil
}
