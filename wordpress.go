package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultWordPressAPIURL = "https://ailynx.ru/wp-json/wp/v2"

// PublicationVerifier confirms that a topic's article actually reached
// the CMS before the orchestrator advances.
type PublicationVerifier interface {
	VerifyPublication(ctx context.Context, topic string) VerificationResult
}

// WordPressClient talks to the WordPress REST API: publication
// verification for the orchestrator, article publishing for the
// pipeline.
type WordPressClient struct {
	apiURL   string
	username string
	password string
	client   *http.Client
}

// NewWordPressClient reads credentials from the environment. Missing
// credentials are a valid configuration: verification is skipped and
// publishing is unavailable.
func NewWordPressClient(timeout time.Duration) *WordPressClient {
	apiURL := os.Getenv("WORDPRESS_API_URL")
	if apiURL == "" {
		apiURL = defaultWordPressAPIURL
	}
	return &WordPressClient{
		apiURL:   strings.TrimRight(apiURL, "/"),
		username: os.Getenv("WORDPRESS_USERNAME"),
		password: os.Getenv("WORDPRESS_APP_PASSWORD"),
		client:   &http.Client{Timeout: timeout},
	}
}

// HasCredentials reports whether an application password is configured.
func (c *WordPressClient) HasCredentials() bool {
	return c.password != ""
}

// wpPost is the subset of post fields the search endpoint returns.
type wpPost struct {
	ID    int `json:"id"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// VerifyPublication searches WordPress for an article whose title
// contains the topic (case-insensitive). Drafts and published posts
// both count. Any transport or HTTP failure is treated as not found:
// a verification error blocks progress rather than silently passing.
func (c *WordPressClient) VerifyPublication(ctx context.Context, topic string) VerificationResult {
	if !c.HasCredentials() {
		log.Printf("WordPress credentials not found, skipping publication verification")
		return VerificationResult{Status: VerificationSkipped}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/posts", nil)
	if err != nil {
		log.Printf("Error building verification request: %v", err)
		return VerificationResult{Status: VerificationNotFound}
	}
	q := req.URL.Query()
	q.Set("search", strings.TrimSpace(topic))
	q.Set("status", "draft,publish")
	q.Set("per_page", "10")
	q.Set("_fields", "id,title,link,status")
	req.URL.RawQuery = q.Encode()
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("Error verifying WordPress publication: %v", err)
		return VerificationResult{Status: VerificationNotFound}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("WordPress API error: %d", resp.StatusCode)
		return VerificationResult{Status: VerificationNotFound}
	}

	var posts []wpPost
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		log.Printf("Error decoding WordPress search response: %v", err)
		return VerificationResult{Status: VerificationNotFound}
	}
	debugLog("WordPress search returned %d posts for %q", len(posts), topic)

	want := strings.ToLower(strings.TrimSpace(topic))
	for _, post := range posts {
		if strings.Contains(strings.ToLower(post.Title.Rendered), want) {
			log.Printf("✓ Found published article: %s (ID: %d)", post.Title.Rendered, post.ID)
			return VerificationResult{Status: VerificationPublished, PostID: post.ID, PostURL: post.Link}
		}
	}

	log.Printf("⚠ Article not found in WordPress for topic: %s", topic)
	return VerificationResult{Status: VerificationNotFound}
}

// WordPressArticle is the payload for publishing one article.
type WordPressArticle struct {
	Title      string
	Content    string
	Excerpt    string
	Categories []string
}

// PublishResult identifies the created post.
type PublishResult struct {
	PostID int
	URL    string
}

// PublishArticle creates a draft post. Category names are resolved to
// IDs by search; unknown categories are skipped with a warning.
func (c *WordPressClient) PublishArticle(ctx context.Context, article *WordPressArticle) (*PublishResult, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("WordPress credentials not configured")
	}

	categoryIDs := c.resolveCategoryIDs(ctx, article.Categories)

	payload := map[string]interface{}{
		"title":   article.Title,
		"content": article.Content,
		"excerpt": article.Excerpt,
		"status":  "draft",
	}
	if len(categoryIDs) > 0 {
		payload["categories"] = categoryIDs
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publishing article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("WordPress publish failed: HTTP %d", resp.StatusCode)
	}

	var created struct {
		ID   int    `json:"id"`
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding publish response: %w", err)
	}

	log.Printf("✓ Article published to WordPress: %s (ID: %d)", article.Title, created.ID)
	return &PublishResult{PostID: created.ID, URL: created.Link}, nil
}

// resolveCategoryIDs looks up category IDs by name.
func (c *WordPressClient) resolveCategoryIDs(ctx context.Context, names []string) []int {
	var ids []int
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/categories", nil)
		if err != nil {
			continue
		}
		q := req.URL.Query()
		q.Set("search", name)
		q.Set("per_page", "10")
		req.URL.RawQuery = q.Encode()
		req.SetBasicAuth(c.username, c.password)

		resp, err := c.client.Do(req)
		if err != nil {
			log.Printf("Warning: category lookup failed for %q: %v", name, err)
			continue
		}
		var categories []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}
		err = json.NewDecoder(resp.Body).Decode(&categories)
		resp.Body.Close()
		if err != nil {
			log.Printf("Warning: decoding category lookup for %q: %v", name, err)
			continue
		}

		found := false
		for _, cat := range categories {
			if strings.EqualFold(cat.Name, name) {
				ids = append(ids, cat.ID)
				found = true
				break
			}
		}
		if !found {
			log.Printf("Warning: WordPress category %q not found, skipping", name)
		}
	}
	return ids
}

// TestConnection verifies that the configured credentials authenticate.
func (c *WordPressClient) TestConnection(ctx context.Context) error {
	if !c.HasCredentials() {
		return fmt.Errorf("WordPress credentials not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/users/me", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to WordPress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("WordPress authentication failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
