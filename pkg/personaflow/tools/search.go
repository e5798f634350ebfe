package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Document is one web search result.
type Document struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// SearchClient fetches documents for a query.
// Implementations are fallible synchronous functions with no retry logic.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]Document, error)
}

// SerperClient implements SearchClient against the Serper web search API.
type SerperClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// SerperOption configures a SerperClient.
type SerperOption func(*SerperClient)

// WithSerperBaseURL overrides the API endpoint. Used by tests.
func WithSerperBaseURL(url string) SerperOption {
	return func(c *SerperClient) { c.baseURL = url }
}

// WithMaxResults bounds the number of documents returned.
func WithMaxResults(n int) SerperOption {
	return func(c *SerperClient) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// NewSerperClient creates a search client for the Serper API.
func NewSerperClient(apiKey string, opts ...SerperOption) *SerperClient {
	c := &SerperClient{
		apiKey:     apiKey,
		baseURL:    "https://google.serper.dev",
		maxResults: 5,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// serperResponse is the subset of the Serper payload we consume.
type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search implements SearchClient.
func (c *SerperClient) Search(ctx context.Context, query string) ([]Document, error) {
	payload, err := json.Marshal(map[string]any{"q": query, "num": c.maxResults})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, body)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]Document, 0, len(parsed.Organic))
	for _, item := range parsed.Organic {
		docs = append(docs, Document{Title: item.Title, URL: item.Link, Text: item.Snippet})
		if len(docs) >= c.maxResults {
			break
		}
	}
	return docs, nil
}

// NewSearchTool wraps a SearchClient as a registry Tool.
// The observation is a compact rendering of the returned documents.
func NewSearchTool(client SearchClient) Tool {
	return Func{
		ToolName: "search",
		Desc:     "Search the web for information and return relevant documents",
		Fn: func(ctx context.Context, input string) (string, error) {
			docs, err := client.Search(ctx, input)
			if err != nil {
				return "", err
			}
			return FormatDocuments(docs), nil
		},
	}
}

// FormatDocuments renders documents for inclusion in a model prompt.
func FormatDocuments(docs []Document) string {
	if len(docs) == 0 {
		return "no results"
	}
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s", i+1, doc.Title, doc.URL, doc.Text)
	}
	return b.String()
}
