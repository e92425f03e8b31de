package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrProvider covers transport failures and malformed provider responses.
	ErrProvider = errors.New("search provider error")
	// ErrRateLimited is returned when the provider signals quota exhaustion.
	ErrRateLimited = errors.New("search provider rate limited")
)

// MaxResultsCap bounds how many results a single search may request.
const MaxResultsCap = 10

// Result represents a single organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client queries a SerpAPI-compatible search endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Engine     string
	HTTPClient *http.Client
}

// NewClient creates a search client for the given endpoint and key.
func NewClient(baseURL, apiKey, engine string, timeout time.Duration) *Client {
	if engine == "" {
		engine = "google"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Engine:  engine,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search performs a search query and returns up to maxResults organic results.
// The query is validated before any network call is made.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}
	if maxResults <= 0 || maxResults > MaxResultsCap {
		maxResults = MaxResultsCap
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("engine", c.Engine)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(maxResults))
	q.Set("api_key", c.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProvider, err)
	}

	var serpResults struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &serpResults); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProvider, err)
	}
	if serpResults.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProvider, serpResults.Error)
	}

	results := make([]Result, 0, maxResults)
	for _, r := range serpResults.OrganicResults {
		if r.Link == "" {
			continue
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
		if len(results) == maxResults {
			break
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no organic results found", ErrProvider)
	}

	return results, nil
}
