package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// SearchResult is one hit from the search provider.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ScrapedSource is one fetched source prepared for the LLM stages.
type ScrapedSource struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

var debugEnabled bool

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Domains that never yield usable article sources.
var blockedDomains = []string{
	"youtube.com", "youtu.be", "pinterest.", "facebook.com",
	"twitter.com", "x.com", "instagram.com", "tiktok.com",
	"reddit.com", "linkedin.com",
}

// SourceFetcher finds and scrapes web sources for a topic. Scraping
// uses bounded concurrency internal to the pipeline; the orchestrator
// never sees it.
type SourceFetcher struct {
	searchURL     string
	searchKey     string
	client        *http.Client
	converter     *md.Converter
	maxConcurrent int
}

// NewSourceFetcher reads the search provider endpoint from the
// environment (SEARCH_API_URL, SEARCH_API_KEY).
func NewSourceFetcher(client *http.Client, maxConcurrent int) *SourceFetcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &SourceFetcher{
		searchURL:     os.Getenv("SEARCH_API_URL"),
		searchKey:     os.Getenv("SEARCH_API_KEY"),
		client:        client,
		converter:     md.NewConverter("", true, nil),
		maxConcurrent: maxConcurrent,
	}
}

// Search queries the search provider for sources about the topic.
func (f *SourceFetcher) Search(ctx context.Context, topic string) ([]SearchResult, error) {
	if f.searchURL == "" {
		return nil, fmt.Errorf("search provider not configured: set SEARCH_API_URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	q := req.URL.Query()
	q.Set("query", topic)
	q.Set("limit", "10")
	req.URL.RawQuery = q.Encode()
	if f.searchKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.searchKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: f.searchURL}
	}

	var payload struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	debugLog("Search returned %d results for %q", len(payload.Results), topic)
	return payload.Results, nil
}

// FilterURLs deduplicates search hits and drops domains that never
// yield usable article content.
func FilterURLs(results []SearchResult) []string {
	seen := make(map[string]bool, len(results))
	var urls []string
	for _, result := range results {
		raw := strings.TrimSpace(result.URL)
		if raw == "" || seen[raw] {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		if isBlockedDomain(parsed.Host) {
			continue
		}
		seen[raw] = true
		urls = append(urls, raw)
	}
	return urls
}

func isBlockedDomain(host string) bool {
	host = strings.ToLower(host)
	for _, blocked := range blockedDomains {
		if strings.Contains(host, blocked) {
			return true
		}
	}
	return false
}

// Scrape fetches one URL and converts its HTML to markdown.
func (f *SourceFetcher) Scrape(ctx context.Context, pageURL string) (*ScrapedSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", pageURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	markdown, err := f.converter.ConvertString(string(body))
	if err != nil {
		return nil, fmt.Errorf("converting HTML to markdown: %w", err)
	}
	debugLog("Scraped %s: %d bytes of markdown", pageURL, len(markdown))

	return &ScrapedSource{
		URL:      pageURL,
		Title:    extractMarkdownTitle(markdown),
		Markdown: markdown,
	}, nil
}

// ScrapeAll fetches the given URLs with bounded concurrency. Failed
// URLs are logged and skipped; the order of successes follows the
// input order.
func (f *SourceFetcher) ScrapeAll(ctx context.Context, urls []string) []*ScrapedSource {
	results := make([]*ScrapedSource, len(urls))
	semaphore := make(chan struct{}, f.maxConcurrent)
	var wg sync.WaitGroup

	for i, pageURL := range urls {
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			source, err := f.Scrape(ctx, pageURL)
			if err != nil {
				log.Printf("⚠ Skipping source %s: %v", pageURL, err)
				return
			}
			results[i] = source
		}(i, pageURL)
	}
	wg.Wait()

	var sources []*ScrapedSource
	for _, source := range results {
		if source != nil {
			sources = append(sources, source)
		}
	}
	return sources
}

// extractMarkdownTitle returns the first markdown heading, if any.
func extractMarkdownTitle(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}
