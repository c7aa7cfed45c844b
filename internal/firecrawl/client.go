// Package firecrawl is a client for the Firecrawl scrape and crawl API (cloud or self-hosted).
package firecrawl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/jobs"
)

// Request timeouts.
const (
	ScrapeTimeout      = 60 * time.Second
	CrawlTimeout       = 120 * time.Second
	CrawlStatusTimeout = 30 * time.Second
)

// Client talks to one Firecrawl deployment.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a client for baseURL. apiKey may be empty for self-hosted deployments,
// in which case no Authorization header is sent.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Configured reports whether the client has somewhere to send requests.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// CrawlJob is the result of submitting a crawl: either an asynchronous job ID or,
// for providers that crawl synchronously, the pages themselves.
type CrawlJob struct {
	ID    string
	Pages []string
}

// Async reports whether the crawl must be polled.
func (j *CrawlJob) Async() bool {
	return j.ID != ""
}

type scrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type crawlRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type page struct {
	Markdown string `json:"markdown"`
}

type crawlResponse struct {
	ID   string `json:"id"`
	Data []page `json:"data"`
}

type scrapeResponse struct {
	Data page `json:"data"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   []page `json:"data"`
}

// StartCrawl submits a crawl of up to limit pages starting at target.
func (c *Client) StartCrawl(ctx context.Context, target string, limit int) (*CrawlJob, error) {
	var resp crawlResponse
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/v1/crawl",
		Headers: c.headers(),
		Body: crawlRequest{
			URL:           target,
			Limit:         limit,
			ScrapeOptions: scrapeOptions{Formats: []string{"markdown"}, OnlyMainContent: true},
		},
		Timeout: CrawlTimeout,
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}
	return &CrawlJob{ID: resp.ID, Pages: markdownPages(resp.Data)}, nil
}

// CrawlStatus reports the normalized state of crawl job id.
func (c *Client) CrawlStatus(ctx context.Context, id string) (jobs.Status[[]string], error) {
	var resp statusResponse
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		URL:     c.baseURL + "/v1/crawl/" + url.PathEscape(id),
		Headers: c.headers(),
		Timeout: CrawlStatusTimeout,
	}, &resp)
	if err != nil {
		return jobs.Status[[]string]{}, classify(err)
	}
	return normalizeStatus(resp), nil
}

// Scrape fetches a single page and returns its markdown.
func (c *Client) Scrape(ctx context.Context, target string) (string, error) {
	var resp scrapeResponse
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/v1/scrape",
		Headers: c.headers(),
		Body:    scrapeRequest{URL: target, Formats: []string{"markdown"}, OnlyMainContent: true},
		Timeout: ScrapeTimeout,
	}, &resp)
	if err != nil {
		return "", classify(err)
	}
	return resp.Data.Markdown, nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// normalizeStatus maps Firecrawl's lower-case statuses onto jobs.State. Anything other than
// pending, completed or failed (e.g. "scraping") is treated as still processing.
func normalizeStatus(resp statusResponse) jobs.Status[[]string] {
	switch resp.Status {
	case "completed":
		return jobs.Done(markdownPages(resp.Data))
	case "failed":
		return jobs.Fail[[]string](resp.Error)
	case "pending":
		return jobs.InProgress[[]string](jobs.Pending)
	default:
		return jobs.InProgress[[]string](jobs.Processing)
	}
}

func markdownPages(data []page) []string {
	pages := make([]string, 0, len(data))
	for _, p := range data {
		if p.Markdown != "" {
			pages = append(pages, p.Markdown)
		}
	}
	return pages
}

func classify(err error) error {
	var status *fetch.StatusError
	if errors.As(err, &status) {
		return apierr.FromHTTPStatus("firecrawl", status.StatusCode, status.Body).WithCause(err)
	}
	return apierr.External("firecrawl", apierr.CodeFirecrawlScrapeFailed, "firecrawl request failed", true).WithCause(err)
}
