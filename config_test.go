package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnsureConfigExistsBootstrapsDefaults(t *testing.T) {
	chdirTemp(t)

	if err := ensureConfigExists(); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if settings.Batch.MaxTopicTimeoutSeconds != 1800 {
		t.Errorf("max_topic_timeout_seconds = %d, want 1800", settings.Batch.MaxTopicTimeoutSeconds)
	}
	if settings.Batch.RetryFailedTopics != 2 {
		t.Errorf("retry_failed_topics = %d, want 2", settings.Batch.RetryFailedTopics)
	}
	if !settings.Batch.VerifyPublication {
		t.Error("verify_publication_before_next = false, want true by default")
	}

	for _, contentType := range []string{"prompt_collection", "business_ideas", "marketing_content", "educational_content", "basic_articles"} {
		if _, ok := settings.ContentTypes[contentType]; !ok {
			t.Errorf("default settings missing content type %q", contentType)
		}
	}

	// Second call must not overwrite an existing settings file.
	settingsPath := getConfigPath("settings.yaml")
	if err := os.WriteFile(settingsPath, []byte("batch:\n  retry_failed_topics: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ensureConfigExists(); err != nil {
		t.Fatal(err)
	}
	settings, err = loadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.Batch.RetryFailedTopics != 7 {
		t.Error("ensureConfigExists() overwrote an existing settings file")
	}
}

func TestLoadSettingsClampsRetryBudget(t *testing.T) {
	chdirTemp(t)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(getConfigPath("settings.yaml"), []byte("batch:\n  retry_failed_topics: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if settings.Batch.RetryFailedTopics != 1 {
		t.Errorf("retry budget = %d, want clamped to 1", settings.Batch.RetryFailedTopics)
	}
}

func TestBatchSettingsDurations(t *testing.T) {
	batch := BatchSettings{
		MaxTopicTimeoutSeconds:  1800,
		WordPressTimeoutSeconds: 30,
		RetryDelaySeconds:       60,
		TopicPauseSeconds:       5,
	}

	if got := batch.MaxTopicTimeout(); got != 30*time.Minute {
		t.Errorf("MaxTopicTimeout() = %s, want 30m", got)
	}
	if got := batch.WordPressTimeout(); got != 30*time.Second {
		t.Errorf("WordPressTimeout() = %s, want 30s", got)
	}
	if got := batch.RetryDelay(); got != time.Minute {
		t.Errorf("RetryDelay() = %s, want 1m", got)
	}
	if got := batch.TopicPause(); got != 5*time.Second {
		t.Errorf("TopicPause() = %s, want 5s", got)
	}
}

func TestEnsurePromptsFolderExists(t *testing.T) {
	dir := t.TempDir()
	cfg := ContentTypeConfig{PromptsFolder: filepath.Join(dir, "prompts", "prompt_collection")}

	if err := ensurePromptsFolderExists(cfg); err != nil {
		t.Fatalf("ensurePromptsFolderExists() error = %v", err)
	}

	for _, name := range []string{extractPromptFile, generatePromptFile, editorialPromptFile} {
		if _, err := os.Stat(filepath.Join(cfg.PromptsFolder, name)); err != nil {
			t.Errorf("placeholder prompt %s not created", name)
		}
	}

	// Empty folder config is valid and a no-op.
	if err := ensurePromptsFolderExists(ContentTypeConfig{}); err != nil {
		t.Errorf("empty prompts folder must be a no-op, got %v", err)
	}
}
