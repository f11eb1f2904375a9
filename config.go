package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configDir = ".batch-writer"

// AgentSettings configures one LLM pipeline stage.
type AgentSettings struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ContentTypeConfig describes one named article category. A content
// type scopes the prompts folder, the default topics file and the
// progress/lock files.
type ContentTypeConfig struct {
	PromptsFolder     string `yaml:"prompts_folder"`
	Description       string `yaml:"description"`
	DefaultTopicsFile string `yaml:"default_topics_file"`
	OutputPrefix      string `yaml:"output_prefix"`
	WordPressCategory string `yaml:"wordpress_category"`
}

// BatchSettings holds the orchestration policy knobs.
type BatchSettings struct {
	MaxTopicTimeoutSeconds     int  `yaml:"max_topic_timeout_seconds"`
	WordPressTimeoutSeconds    int  `yaml:"wordpress_api_timeout_seconds"`
	MemoryCheckIntervalSeconds int  `yaml:"memory_check_interval_seconds"`
	MaxMemoryMB                int  `yaml:"max_memory_mb"`
	RetryFailedTopics          int  `yaml:"retry_failed_topics"`
	RetryDelaySeconds          int  `yaml:"retry_delay_seconds"`
	TopicPauseSeconds          int  `yaml:"topic_pause_seconds"`
	MaxConcurrentRequests      int  `yaml:"max_concurrent_requests"`
	VerifyPublication          bool `yaml:"verify_publication_before_next"`
	EnableMemoryMonitoring     bool `yaml:"enable_memory_monitoring"`
}

func (b BatchSettings) MaxTopicTimeout() time.Duration {
	return time.Duration(b.MaxTopicTimeoutSeconds) * time.Second
}

func (b BatchSettings) WordPressTimeout() time.Duration {
	return time.Duration(b.WordPressTimeoutSeconds) * time.Second
}

func (b BatchSettings) MemoryCheckInterval() time.Duration {
	return time.Duration(b.MemoryCheckIntervalSeconds) * time.Second
}

func (b BatchSettings) RetryDelay() time.Duration {
	return time.Duration(b.RetryDelaySeconds) * time.Second
}

func (b BatchSettings) TopicPause() time.Duration {
	return time.Duration(b.TopicPauseSeconds) * time.Second
}

// Settings represents the YAML configuration structure.
type Settings struct {
	Batch  BatchSettings `yaml:"batch"`
	Agents struct {
		Extract   AgentSettings `yaml:"extract"`
		Generate  AgentSettings `yaml:"generate"`
		Editorial AgentSettings `yaml:"editorial"`
	} `yaml:"agents"`
	ContentTypes map[string]ContentTypeConfig `yaml:"content_types"`
}

// getConfigPath returns the path to a config file in the .batch-writer directory.
func getConfigPath(filename string) string {
	return filepath.Join(configDir, filename)
}

// progressFilePath returns the progress file path for a content type.
func progressFilePath(contentType string) string {
	return fmt.Sprintf(".batch_progress_%s.json", contentType)
}

// lockFilePath returns the lock file path for a content type.
func lockFilePath(contentType string) string {
	return fmt.Sprintf(".batch_lock_%s.pid", contentType)
}

const failedTopicsLogPath = "batch_failed_topics.log"
const sessionStatsPath = "batch_stats.json"

// loadSettings loads settings from the default location.
func loadSettings() (*Settings, error) {
	settingsPath := getConfigPath("settings.yaml")

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	if settings.Batch.RetryFailedTopics < 1 {
		settings.Batch.RetryFailedTopics = 1
	}
	return &settings, nil
}

// ensureConfigExists creates the config directory and default settings
// file if they don't exist.
func ensureConfigExists() error {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		defaultSettings := `batch:
  max_topic_timeout_seconds: 1800
  wordpress_api_timeout_seconds: 30
  memory_check_interval_seconds: 300
  max_memory_mb: 2048
  retry_failed_topics: 2
  retry_delay_seconds: 60
  topic_pause_seconds: 5
  max_concurrent_requests: 5
  verify_publication_before_next: true
  enable_memory_monitoring: true
agents:
  extract:
    model: claude-sonnet-4-20250514
    max_tokens: 4000
    temperature: 0.0
  generate:
    model: claude-sonnet-4-20250514
    max_tokens: 8000
    temperature: 0.3
  editorial:
    model: claude-sonnet-4-20250514
    max_tokens: 8000
    temperature: 0.1
content_types:
  prompt_collection:
    prompts_folder: prompts/prompt_collection
    description: Articles about AI prompts and prompt engineering
    default_topics_file: topics_prompts.txt
    output_prefix: prompts_
    wordpress_category: prompts
  business_ideas:
    prompts_folder: prompts/business_ideas
    description: Business ideas and entrepreneurship content
    default_topics_file: topics_business_ideas.txt
    output_prefix: business_
    wordpress_category: business
  marketing_content:
    prompts_folder: prompts/marketing_content
    description: Marketing and advertising content
    default_topics_file: topics_marketing.txt
    output_prefix: marketing_
    wordpress_category: marketing
  educational_content:
    prompts_folder: prompts/educational_content
    description: Educational and tutorial content
    default_topics_file: topics_educational.txt
    output_prefix: edu_
    wordpress_category: education
  basic_articles:
    prompts_folder: prompts/basic_articles
    description: Basic informational articles with FAQ and sources
    default_topics_file: topics_basic_articles.txt
    output_prefix: article_
    wordpress_category: articles
`
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("failed to write default settings: %w", err)
		}
	}

	return nil
}

// ensurePromptsFolderExists creates the content type's prompts folder
// with placeholder prompt files on first use.
func ensurePromptsFolderExists(cfg ContentTypeConfig) error {
	if cfg.PromptsFolder == "" {
		return nil
	}
	if _, err := os.Stat(cfg.PromptsFolder); err == nil {
		return nil
	}
	if err := os.MkdirAll(cfg.PromptsFolder, 0755); err != nil {
		return fmt.Errorf("creating prompts folder: %w", err)
	}

	placeholders := map[string]string{
		extractPromptFile:   "# Placeholder for extraction prompts\n# Customize this prompt for the content type\n",
		generatePromptFile:  "# Placeholder for article generation prompts\n# Customize this prompt for the content type\n",
		editorialPromptFile: "# Placeholder for editorial review prompts\n# Customize this prompt for the content type\n",
	}
	for name, content := range placeholders {
		path := filepath.Join(cfg.PromptsFolder, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing placeholder prompt %s: %w", path, err)
			}
		}
	}
	return nil
}
