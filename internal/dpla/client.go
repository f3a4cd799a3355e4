package dpla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

// ErrRecordNotFound is returned by FetchRecord when the aggregator has no
// document for the requested id. Callers treat this as a per-record failure,
// not an I/O error.
var ErrRecordNotFound = errors.New("dpla: record not found")

// maxRecordBytes caps a single item API response.
const maxRecordBytes = 8 * 1024 * 1024

// Client fetches catalog records from the aggregator item API. Each pipeline
// worker owns its own Client (wrapping its own retrying HTTP client).
type Client struct {
	http    *httpretry.Client
	baseURL string
	apiKey  string
}

// NewClient constructs an item API client. baseURL is the API root, e.g.
// "https://api.dp.la/v2".
func NewClient(httpClient *httpretry.Client, baseURL, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// FetchRecord retrieves and parses the record for id. The response carries a
// "docs" array; the first element is the record, and an empty array means the
// id is unknown.
func (c *Client) FetchRecord(ctx context.Context, id string) (*Record, error) {
	requestURL := fmt.Sprintf("%s/items/%s", c.baseURL, url.PathEscape(id))

	// The key rides in a header so it never appears in logged URLs.
	var headers []httpretry.Header
	if c.apiKey != "" {
		headers = append(headers, httpretry.Header{Key: "Authorization", Value: c.apiKey})
	}

	body, err := c.http.GetBytes(ctx, requestURL, maxRecordBytes, headers...)
	if err != nil {
		return nil, fmt.Errorf("dpla: fetching record %s: %w", id, err)
	}

	var envelope struct {
		Docs []json.RawMessage `json:"docs"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("dpla: parsing item response for %s: %w", id, err)
	}
	if len(envelope.Docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	rec, err := ParseRecord(envelope.Docs[0])
	if err != nil {
		return nil, fmt.Errorf("dpla: record %s: %w", id, err)
	}
	return rec, nil
}
