package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

// CMSClient fetches directory entries from a Notion-style CMS database.
type CMSClient struct {
	baseURL    string
	token      string
	databaseID string
	client     *retryablehttp.Client
	log        *logging.Logger
}

// NewCMSClient creates a CMS client. Requests are retried with backoff on
// transient failures and capped by the given timeout per attempt.
func NewCMSClient(baseURL, token, databaseID string, timeout time.Duration, log *logging.Logger) *CMSClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &CMSClient{
		baseURL:    baseURL,
		token:      token,
		databaseID: databaseID,
		client:     client,
		log:        log.Sub("cms"),
	}
}

type cmsQueryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type cmsQueryResponse struct {
	Results    []cmsPage `json:"results"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor"`
}

type cmsPage struct {
	Properties map[string]cmsProperty `json:"properties"`
}

type cmsProperty struct {
	Type     string        `json:"type"`
	Title    []cmsRichText `json:"title,omitempty"`
	RichText []cmsRichText `json:"rich_text,omitempty"`
	Checkbox bool          `json:"checkbox,omitempty"`
}

type cmsRichText struct {
	PlainText string `json:"plain_text"`
}

func (p cmsProperty) text() string {
	parts := p.Title
	if p.Type == "rich_text" {
		parts = p.RichText
	}
	var out string
	for _, rt := range parts {
		out += rt.PlainText
	}
	return out
}

// FetchEntries queries the CMS database, following pagination until all
// pages are consumed.
func (c *CMSClient) FetchEntries(ctx context.Context) ([]domain.UserMetadata, error) {
	var entries []domain.UserMetadata
	cursor := ""

	for {
		page, err := c.queryPage(ctx, cursor)
		if err != nil {
			return nil, err
		}

		for _, result := range page.Results {
			entry := pageToEntry(result)
			if entry.OriginalName == "" {
				continue
			}
			entries = append(entries, entry)
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.log.Debug().Int("entries", len(entries)).Msg("directory fetched")
	return entries, nil
}

func (c *CMSClient) queryPage(ctx context.Context, cursor string) (*cmsQueryResponse, error) {
	body, err := json.Marshal(cmsQueryRequest{StartCursor: cursor, PageSize: 100})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, c.databaseID)
	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", "2022-06-28")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result cmsQueryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &result, nil
}

func pageToEntry(page cmsPage) domain.UserMetadata {
	entry := domain.UserMetadata{}
	for name, prop := range page.Properties {
		switch name {
		case "Name":
			entry.OriginalName = prop.text()
		case "Override":
			entry.Override = prop.text()
		case "IsGuest":
			entry.IsGuest = prop.Checkbox
		case "IsHost":
			entry.IsHost = prop.Checkbox
		}
	}
	return entry
}
