package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *WordPressClient {
	return &WordPressClient{
		apiURL:   serverURL,
		username: "editor",
		password: "app-password",
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestVerifyPublication(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		posts      string
		statusCode int
		want       VerificationStatus
		wantID     int
	}{
		{
			"exact title match",
			"Best AI Prompts",
			`[{"id": 42, "title": {"rendered": "Best AI Prompts"}, "link": "https://example.com/42", "status": "publish"}]`,
			http.StatusOK,
			VerificationPublished,
			42,
		},
		{
			"case-insensitive substring match",
			"chatgpt tips",
			`[{"id": 7, "title": {"rendered": "10 ChatGPT Tips for Writers"}, "link": "https://example.com/7", "status": "draft"}]`,
			http.StatusOK,
			VerificationPublished,
			7,
		},
		{
			"no matching title",
			"missing topic",
			`[{"id": 1, "title": {"rendered": "Unrelated article"}, "link": "https://example.com/1", "status": "publish"}]`,
			http.StatusOK,
			VerificationNotFound,
			0,
		},
		{
			"empty result set",
			"any topic",
			`[]`,
			http.StatusOK,
			VerificationNotFound,
			0,
		},
		{
			"HTTP error is fail-closed",
			"any topic",
			`{"code": "rest_forbidden"}`,
			http.StatusInternalServerError,
			VerificationNotFound,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/posts" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("status") != "draft,publish" {
					t.Errorf("status param = %q, want draft,publish", q.Get("status"))
				}
				if q.Get("per_page") != "10" {
					t.Errorf("per_page param = %q, want 10", q.Get("per_page"))
				}
				if q.Get("search") != tt.topic {
					t.Errorf("search param = %q, want %q", q.Get("search"), tt.topic)
				}
				if _, _, ok := r.BasicAuth(); !ok {
					t.Error("request missing basic auth")
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.posts))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			result := client.VerifyPublication(context.Background(), tt.topic)

			if result.Status != tt.want {
				t.Errorf("Status = %q, want %q", result.Status, tt.want)
			}
			if result.PostID != tt.wantID {
				t.Errorf("PostID = %d, want %d", result.PostID, tt.wantID)
			}
		})
	}
}

func TestVerifyPublicationSkippedWithoutCredentials(t *testing.T) {
	client := &WordPressClient{
		apiURL: "https://example.invalid/wp-json/wp/v2",
		client: &http.Client{Timeout: time.Second},
	}

	result := client.VerifyPublication(context.Background(), "any topic")
	if result.Status != VerificationSkipped {
		t.Errorf("Status = %q, want skipped when no credentials configured", result.Status)
	}
}

func TestVerifyPublicationTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(server.URL)
	result := client.VerifyPublication(context.Background(), "any topic")
	if result.Status != VerificationNotFound {
		t.Errorf("Status = %q, want not_found on transport error", result.Status)
	}
}

func TestPublishArticle(t *testing.T) {
	var posted map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/categories":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": 3, "name": "prompts"},
			})
		case "/posts":
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
				t.Fatalf("decoding post payload: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 99, "link": "https://example.com/99",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.PublishArticle(context.Background(), &WordPressArticle{
		Title:      "Test Article",
		Content:    "<p>Body</p>",
		Excerpt:    "Summary",
		Categories: []string{"prompts"},
	})
	if err != nil {
		t.Fatalf("PublishArticle() error = %v", err)
	}

	if result.PostID != 99 {
		t.Errorf("PostID = %d, want 99", result.PostID)
	}
	if posted["title"] != "Test Article" {
		t.Errorf("posted title = %v", posted["title"])
	}
	if posted["status"] != "draft" {
		t.Errorf("posted status = %v, want draft", posted["status"])
	}
	categories, ok := posted["categories"].([]interface{})
	if !ok || len(categories) != 1 || categories[0].(float64) != 3 {
		t.Errorf("posted categories = %v, want [3]", posted["categories"])
	}
}

func TestConnectionCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"authenticated", http.StatusOK, false},
		{"rejected credentials", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/users/me" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if _, _, ok := r.BasicAuth(); !ok {
					t.Error("request missing basic auth")
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			err := client.TestConnection(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("TestConnection() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionCheckWithoutCredentials(t *testing.T) {
	client := &WordPressClient{apiURL: "https://example.invalid", client: &http.Client{}}
	if err := client.TestConnection(context.Background()); err == nil {
		t.Error("expected error when no credentials are configured")
	}
}

func TestPublishArticleWithoutCredentials(t *testing.T) {
	client := &WordPressClient{apiURL: "https://example.invalid", client: &http.Client{}}
	if _, err := client.PublishArticle(context.Background(), &WordPressArticle{Title: "x"}); err == nil {
		t.Error("expected error when publishing without credentials")
	}
}
