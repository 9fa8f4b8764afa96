package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"base44/internal/model"
)

// PulledPage is one page of records from a pull-based external source
type PulledPage struct {
	Records    []map[string]interface{} `json:"records"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// SourceClient fetches paginated raw records from an external source using
// the connector's credentials. Connector syncs drain it synchronously.
type SourceClient interface {
	FetchPage(ctx context.Context, opts model.PullOptions, cursor string) (PulledPage, error)
}

// HTTPSourceClient pulls pages over HTTP: GET base_url?cursor=&limit= with a
// bearer credential, expecting a {"records": [...], "next_cursor": "..."}
// body.
type HTTPSourceClient struct {
	client *http.Client
}

func NewHTTPSourceClient() *HTTPSourceClient {
	return &HTTPSourceClient{client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPSourceClient) FetchPage(ctx context.Context, opts model.PullOptions, cursor string) (PulledPage, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return PulledPage{}, fmt.Errorf("parse source url: %w", err)
	}

	q := u.Query()
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if opts.PageSize > 0 {
		q.Set("limit", strconv.Itoa(opts.PageSize))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PulledPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	if opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return PulledPage{}, fmt.Errorf("fetch source page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PulledPage{}, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	var page PulledPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return PulledPage{}, fmt.Errorf("decode source page: %w", err)
	}
	return page, nil
}

// maxSourcePages bounds a sync against sources that never exhaust their cursor
const maxSourcePages = 100

// DrainSource fetches every page of the source and returns the combined
// records
func DrainSource(ctx context.Context, client SourceClient, opts model.PullOptions) ([]map[string]interface{}, error) {
	var records []map[string]interface{}
	cursor := ""

	for page := 0; page < maxSourcePages; page++ {
		result, err := client.FetchPage(ctx, opts, cursor)
		if err != nil {
			return nil, err
		}
		records = append(records, result.Records...)

		if result.NextCursor == "" {
			return records, nil
		}
		cursor = result.NextCursor
	}

	return nil, fmt.Errorf("source pagination exceeded %d pages", maxSourcePages)
}
