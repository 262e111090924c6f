package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gail/internal/agent"

	bravesearch "github.com/cnosuke/go-brave-search"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"
)

const maxFetchBytes = 100 * 1024

// WebSearch looks up carriers, holders and requirements on the web.
type WebSearch struct {
	brave  *bravesearch.Client
	client *http.Client
}

func NewWebSearch(braveAPIKey string) (*WebSearch, error) {
	client, err := bravesearch.NewClient(braveAPIKey)
	if err != nil {
		return nil, fmt.Errorf("brave client: %w", err)
	}
	return newWebSearch(client), nil
}

func newWebSearch(brave *bravesearch.Client) *WebSearch {
	return &WebSearch{
		brave: brave,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (w *WebSearch) Name() string { return "web_search" }
func (w *WebSearch) Description() string {
	return "Search the web or fetch the text of a URL, e.g. to find a carrier's NAIC number or a holder's address"
}

func (w *WebSearch) InputSchema() map[string]any {
	return object(map[string]any{
		"action": map[string]any{
			"type":        "string",
			"enum":        []string{"search", "fetch"},
			"description": "Operation: search the web or fetch a URL",
		},
		"query": str("Search query (required for search)"),
		"url":   str("URL to fetch (required for fetch)"),
		"count": map[string]any{
			"type":        "integer",
			"description": "Number of search results to return (default 5, max 20)",
		},
	}, "action")
}

type searchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (w *WebSearch) Execute(ctx context.Context, input json.RawMessage, _ agent.Call) (*agent.Result, error) {
	var args struct {
		Action string `json:"action"`
		Query  string `json:"query"`
		URL    string `json:"url"`
		Count  int    `json:"count"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}

	switch args.Action {
	case "search":
		return w.search(ctx, args.Query, args.Count)
	case "fetch":
		return w.fetch(ctx, args.URL)
	default:
		return nil, fmt.Errorf("unknown action: %q", args.Action)
	}
}

func (w *WebSearch) search(ctx context.Context, query string, count int) (*agent.Result, error) {
	if query == "" {
		return nil, errors.New("query is required for search action")
	}
	if count <= 0 {
		count = 5
	}
	if count > 20 {
		count = 20
	}

	slog.Debug("web: searching", "query", query, "count", count)

	resp, err := w.brave.WebSearch(ctx, query, &bravesearch.WebSearchParams{Count: count})
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	results := resp.GetWebResults()
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{Title: r.Title, URL: r.URL, Description: r.Description})
	}

	slog.Debug("web: search done", "query", query, "results", len(hits))
	return &agent.Result{
		Summary: fmt.Sprintf("Found %d results for %q", len(hits), query),
		Data:    map[string]any{"results": hits},
	}, nil
}

func (w *WebSearch) fetch(ctx context.Context, url string) (*agent.Result, error) {
	if url == "" {
		return nil, errors.New("url is required for fetch action")
	}

	slog.Debug("web: fetching", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "gail/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}

	text, err := extractText(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	slog.Debug("web: fetch done", "url", url, "bytes", len(text))
	return &agent.Result{
		Summary: fmt.Sprintf("Fetched %s", url),
		Data:    map[string]any{"url": url, "text": truncate([]byte(text))},
	}, nil
}

var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"svg":      true,
}

// extractText returns the visible text of an HTML document with whitespace
// collapsed. Plain text passes through unchanged apart from whitespace.
func extractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}
