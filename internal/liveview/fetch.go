package liveview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/dialogs/internal/directory"
)

// HTTPFetcher loads session state from the web tier's REST surface.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher against the given base URL.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionResponse struct {
	Session  directory.SessionSummary   `json:"session"`
	Messages []directory.MessagePayload `json:"messages"`
}

// FetchSession loads one session's summary and full transcript.
func (f *HTTPFetcher) FetchSession(ctx context.Context, sessionID string) (directory.SessionSummary, []directory.MessagePayload, error) {
	url := fmt.Sprintf("%s/session/%s", f.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return directory.SessionSummary{}, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return directory.SessionSummary{}, nil, fmt.Errorf("fetching session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return directory.SessionSummary{}, nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return directory.SessionSummary{}, nil, fmt.Errorf("session fetch error (%d): %s", resp.StatusCode, string(body))
	}

	var parsed sessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return directory.SessionSummary{}, nil, fmt.Errorf("parsing response: %w", err)
	}
	return parsed.Session, parsed.Messages, nil
}
