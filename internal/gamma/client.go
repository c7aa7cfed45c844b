// Package gamma is a client for the Gamma generations API, which turns a text prompt into a
// hosted presentation with PDF and PPTX exports.
package gamma

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

// DefaultBaseURL is the public v1.0 API root.
const DefaultBaseURL = "https://public-api.gamma.app/v1.0"

// Request timeouts.
const (
	RequestTimeout = 30 * time.Second
	ListTimeout    = 15 * time.Second
)

// Client talks to the Gamma API with an X-API-Key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a client. An empty baseURL selects DefaultBaseURL.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// TextOptions controls generated copy.
type TextOptions struct {
	Tone     string `json:"tone"`
	Amount   string `json:"amount"`
	Language string `json:"language"`
}

// ImageOptions controls generated imagery.
type ImageOptions struct {
	Source string `json:"source"`
	Model  string `json:"model"`
	Style  string `json:"style"`
}

// GenerationRequest is the body of POST /generations.
type GenerationRequest struct {
	InputText    string       `json:"inputText"`
	TextMode     string       `json:"textMode"`
	Format       string       `json:"format"`
	NumCards     int          `json:"numCards"`
	CardSplit    string       `json:"cardSplit"`
	TextOptions  TextOptions  `json:"textOptions"`
	ImageOptions ImageOptions `json:"imageOptions"`
	ExportAs     string       `json:"exportAs"`
	ThemeID      string       `json:"themeId,omitempty"`
}

// NewGenerationRequest fills the fixed house style around prompt.
func NewGenerationRequest(prompt, format string, numCards int, themeID string) GenerationRequest {
	return GenerationRequest{
		InputText: prompt,
		TextMode:  "generate",
		Format:    format,
		NumCards:  numCards,
		CardSplit: "auto",
		TextOptions: TextOptions{
			Tone:     "professional, persuasive",
			Amount:   "detailed",
			Language: "en",
		},
		ImageOptions: ImageOptions{
			Source: "aiGenerated",
			Model:  "flux-1-pro",
			Style:  "professional, modern, clean",
		},
		ExportAs: "pdf",
		ThemeID:  themeID,
	}
}

// Artifacts are the URLs of a finished generation. Any of them may be empty.
type Artifacts struct {
	GammaURL string `json:"gammaUrl"`
	PDFURL   string `json:"pdfUrl"`
	PPTXURL  string `json:"pptxUrl"`
}

type generationResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Artifacts
}

// Theme is a selectable deck theme.
type Theme struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Folder is a workspace folder.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateGeneration starts a generation job and returns its ID, which is empty when the
// provider accepted the request without assigning one.
func (c *Client) CreateGeneration(ctx context.Context, req GenerationRequest) (string, error) {
	var resp generationResponse
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/generations",
		Headers: c.headers(),
		Body:    req,
		Timeout: RequestTimeout,
	}, &resp)
	if err != nil {
		return "", classify(err)
	}
	return resp.ID, nil
}

// Generation reports the normalized state of generation id.
func (c *Client) Generation(ctx context.Context, id string) (jobs.Status[Artifacts], error) {
	var resp statusResponse
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		URL:     c.baseURL + "/generations/" + url.PathEscape(id),
		Headers: c.headers(),
		Timeout: RequestTimeout,
	}, &resp)
	if err != nil {
		return jobs.Status[Artifacts]{}, classify(err)
	}
	return normalizeStatus(resp), nil
}

// ListThemes returns the themes available to the account.
func (c *Client) ListThemes(ctx context.Context) ([]Theme, error) {
	var resp struct {
		Themes []Theme `json:"themes"`
	}
	if err := c.list(ctx, "/themes", &resp); err != nil {
		return nil, err
	}
	return resp.Themes, nil
}

// ListFolders returns the account's folders.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	var resp struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.list(ctx, "/folders", &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

func (c *Client) list(ctx context.Context, path string, out any) error {
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		URL:     c.baseURL + path,
		Headers: c.headers(),
		Timeout: ListTimeout,
	}, out)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-API-Key": c.apiKey}
}

// normalizeStatus maps Gamma's upper-case statuses onto jobs.State; unknown values are
// treated as still processing.
func normalizeStatus(resp statusResponse) jobs.Status[Artifacts] {
	switch resp.Status {
	case "COMPLETED":
		return jobs.Done(resp.Artifacts)
	case "FAILED":
		msg := resp.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return jobs.Fail[Artifacts](msg)
	case "PENDING":
		return jobs.InProgress[Artifacts](jobs.Pending)
	default:
		return jobs.InProgress[Artifacts](jobs.Processing)
	}
}

func classify(err error) error {
	var status *fetch.StatusError
	if errors.As(err, &status) {
		return apierr.FromHTTPStatus("gamma", status.StatusCode, status.Body).WithCause(err)
	}
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) && errors.Is(err, context.DeadlineExceeded) {
		return apierr.External("gamma", apierr.CodeGammaTimeout, "gamma API: Request timeout", true).WithCause(err)
	}
	return apierr.External("gamma", apierr.CodeGammaAPI, "gamma request failed", true).WithCause(err)
}
