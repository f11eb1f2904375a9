package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Stage prompt file names inside a content type's prompts folder.
const (
	extractPromptFile   = "01_extract.txt"
	generatePromptFile  = "02_generate_article.txt"
	editorialPromptFile = "03_editorial_review.txt"
)

// Model override keys accepted from the CLI.
const (
	OverrideExtract   = "extract_prompts"
	OverrideGenerate  = "generate_article"
	OverrideEditorial = "editorial_review"
)

// Minimum usable source length after scraping, in characters.
const minSourceLength = 200

// How many top-scored sources feed the extraction stage.
const maxSelectedSources = 5

// ExtractedPrompt is one prompt pulled out of a source article.
type ExtractedPrompt struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// generatedArticle is the structured output of the generation and
// editorial stages.
type generatedArticle struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

// ArticlePipeline is the production single-topic pipeline: search the
// web for sources, scrape and rank them, extract prompts, generate the
// article, run an editorial pass and publish the result to WordPress.
type ArticlePipeline struct {
	apiKey    string
	settings  *Settings
	typeCfg   ContentTypeConfig
	fetcher   *SourceFetcher
	publisher *WordPressClient
}

func NewArticlePipeline(apiKey string, settings *Settings, typeCfg ContentTypeConfig, fetcher *SourceFetcher, publisher *WordPressClient) *ArticlePipeline {
	return &ArticlePipeline{
		apiKey:    apiKey,
		settings:  settings,
		typeCfg:   typeCfg,
		fetcher:   fetcher,
		publisher: publisher,
	}
}

// Run executes the full pipeline for one topic. Stage artifacts are
// saved under output/<topic>/ for inspection.
func (p *ArticlePipeline) Run(ctx context.Context, topic string, modelOverrides map[string]string, publish bool) error {
	log.Printf("--- Starting content generation pipeline for topic: %q ---", topic)
	outputDir := filepath.Join("output", sanitizeTopic(topic))

	// Stage 1: search.
	searchResults, err := p.fetcher.Search(ctx, topic)
	if err != nil {
		return fmt.Errorf("searching sources: %w", err)
	}
	saveArtifact(searchResults, outputDir, "01_search", "search_results.json")

	urls := FilterURLs(searchResults)
	if len(urls) == 0 {
		return fmt.Errorf("no usable URLs found for topic %q", topic)
	}
	saveArtifact(urls, outputDir, "01_search", "clean_urls.json")

	// Stage 2: scrape.
	scraped := p.fetcher.ScrapeAll(ctx, urls)
	saveArtifact(scraped, outputDir, "02_parsing", "scraped_sources.json")

	valid := validateSources(scraped)
	if len(valid) == 0 {
		return fmt.Errorf("no valid sources after scraping for topic %q", topic)
	}

	// Stage 3: score and select.
	selected := selectBestSources(valid, topic)
	saveArtifact(selected, outputDir, "03_selection", "top_sources.json")

	// Stage 4: extract prompts from each selected source.
	prompts, err := p.extractPrompts(ctx, topic, selected, outputDir, modelOverrides)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return fmt.Errorf("no prompts extracted from sources for topic %q", topic)
	}
	saveArtifact(prompts, outputDir, "04_extraction", "all_prompts.json")

	// Stage 5: generate the article.
	article, err := p.generateArticle(topic, prompts, modelOverrides)
	if err != nil {
		return fmt.Errorf("generating article: %w", err)
	}
	saveArtifact(article, outputDir, "05_final_article", "wordpress_data.json")

	// Stage 6: editorial review.
	final, err := p.editorialReview(topic, article, modelOverrides)
	if err != nil {
		log.Printf("⚠ Editorial review failed, using unedited article: %v", err)
		final = article
	}
	saveArtifact(final, outputDir, "06_editorial_review", "wordpress_data_final.json")

	// Stage 7: publish.
	if publish {
		result, err := p.publisher.PublishArticle(ctx, &WordPressArticle{
			Title:      final.Title,
			Content:    final.Content,
			Excerpt:    final.Excerpt,
			Categories: []string{p.typeCfg.WordPressCategory},
		})
		if err != nil {
			return fmt.Errorf("publishing to WordPress: %w", err)
		}
		log.Printf("🎉 Article published: %s (ID: %d)", result.URL, result.PostID)
	} else {
		log.Printf("WordPress publication skipped")
	}

	return nil
}

// extractPrompts runs the extraction stage against every selected
// source. A source that yields no prompts is logged, not fatal.
func (p *ArticlePipeline) extractPrompts(ctx context.Context, topic string, sources []*ScrapedSource, outputDir string, overrides map[string]string) ([]ExtractedPrompt, error) {
	systemPrompt := p.loadStagePrompt(extractPromptFile, defaultExtractPrompt)
	agent := p.settings.Agents.Extract
	model := overrideModel(overrides, OverrideExtract, agent.Model)

	var all []ExtractedPrompt
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sourceID := fmt.Sprintf("source_%d", i+1)
		log.Printf("→ Extracting prompts from %s (%s)", sourceID, source.URL)

		userPrompt := fmt.Sprintf("Topic: %s\n\nSource article:\n%s", topic, source.Markdown)
		text, err := p.prompt(systemPrompt, userPrompt, model, agent)
		if err != nil {
			log.Printf("⚠ Extraction failed for %s: %v", sourceID, err)
			continue
		}

		var prompts []ExtractedPrompt
		if err := json.Unmarshal([]byte(stripCodeFences(text)), &prompts); err != nil {
			log.Printf("⚠ %s returned unparseable prompt JSON: %v", sourceID, err)
			continue
		}
		saveArtifact(prompts, outputDir, "04_extraction", sourceID+".json")
		log.Printf("✓ %s extracted %d prompts", sourceID, len(prompts))
		all = append(all, prompts...)
	}
	return all, nil
}

// generateArticle turns the collected prompts into a WordPress-ready
// article.
func (p *ArticlePipeline) generateArticle(topic string, prompts []ExtractedPrompt, overrides map[string]string) (*generatedArticle, error) {
	log.Printf("→ Generating article from %d prompts...", len(prompts))
	systemPrompt := p.loadStagePrompt(generatePromptFile, defaultGeneratePrompt)
	agent := p.settings.Agents.Generate
	model := overrideModel(overrides, OverrideGenerate, agent.Model)

	promptsJSON, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling prompts: %w", err)
	}
	userPrompt := fmt.Sprintf("Topic: %s\n\nCollected prompts:\n%s", topic, promptsJSON)

	text, err := p.prompt(systemPrompt, userPrompt, model, agent)
	if err != nil {
		return nil, err
	}

	var article generatedArticle
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &article); err != nil {
		return nil, fmt.Errorf("parsing generated article JSON: %w", err)
	}
	if article.Title == "" || article.Content == "" {
		return nil, fmt.Errorf("generated article is missing title or content")
	}
	log.Printf("✓ Generated article: %s", article.Title)
	return &article, nil
}

// editorialReview runs the editorial pass over the generated article.
func (p *ArticlePipeline) editorialReview(topic string, article *generatedArticle, overrides map[string]string) (*generatedArticle, error) {
	log.Printf("→ Editorial review...")
	systemPrompt := p.loadStagePrompt(editorialPromptFile, defaultEditorialPrompt)
	agent := p.settings.Agents.Editorial
	model := overrideModel(overrides, OverrideEditorial, agent.Model)

	articleJSON, err := json.Marshal(article)
	if err != nil {
		return nil, fmt.Errorf("marshaling article: %w", err)
	}
	userPrompt := fmt.Sprintf("Topic: %s\n\nDraft article:\n%s", topic, articleJSON)

	text, err := p.prompt(systemPrompt, userPrompt, model, agent)
	if err != nil {
		return nil, err
	}

	var final generatedArticle
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &final); err != nil {
		return nil, fmt.Errorf("parsing editorial review JSON: %w", err)
	}
	if final.Title == "" || final.Content == "" {
		return nil, fmt.Errorf("editorial review dropped title or content")
	}
	log.Printf("✓ Editorial review completed: %s", final.Title)
	return &final, nil
}

// prompt issues one LLM call with the stage's settings.
func (p *ArticlePipeline) prompt(systemPrompt, userPrompt, model string, agent AgentSettings) (string, error) {
	settings := types.RequestSettings{
		Model:       model,
		MaxTokens:   agent.MaxTokens,
		Temperature: agent.Temperature,
	}
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, "", p.apiKey, settings)
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in LLM response")
	}
	return response.Content[0].Text, nil
}

// loadStagePrompt reads the stage prompt from the content type's
// prompts folder, falling back to the built-in default.
func (p *ArticlePipeline) loadStagePrompt(filename, fallback string) string {
	path := filepath.Join(p.typeCfg.PromptsFolder, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	prompt := strings.TrimSpace(string(data))
	// Bootstrap placeholders are comment-only; treat them as absent.
	if prompt == "" || allCommentLines(prompt) {
		return fallback
	}
	return prompt
}

func allCommentLines(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return false
		}
	}
	return true
}

func overrideModel(overrides map[string]string, key, fallback string) string {
	if overrides != nil && overrides[key] != "" {
		return overrides[key]
	}
	return fallback
}

// validateSources drops sources that are too short to be useful.
func validateSources(sources []*ScrapedSource) []*ScrapedSource {
	var valid []*ScrapedSource
	for _, source := range sources {
		if len(source.Markdown) >= minSourceLength {
			valid = append(valid, source)
		}
	}
	return valid
}

// selectBestSources scores sources by topic-keyword overlap and length,
// and returns the top ones.
func selectBestSources(sources []*ScrapedSource, topic string) []*ScrapedSource {
	keywords := strings.Fields(strings.ToLower(topic))

	type scored struct {
		source *ScrapedSource
		score  int
	}
	ranked := make([]scored, 0, len(sources))
	for _, source := range sources {
		content := strings.ToLower(source.Markdown)
		score := 0
		for _, keyword := range keywords {
			if len(keyword) < 3 {
				continue
			}
			score += strings.Count(content, keyword)
		}
		if len(source.Markdown) > 2000 {
			score += 5
		}
		ranked = append(ranked, scored{source: source, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := len(ranked)
	if n > maxSelectedSources {
		n = maxSelectedSources
	}
	selected := make([]*ScrapedSource, 0, n)
	for _, r := range ranked[:n] {
		selected = append(selected, r.source)
	}
	return selected
}

// saveArtifact writes a stage artifact as indented JSON. Artifacts are
// diagnostics; failures are logged, never fatal.
func saveArtifact(data interface{}, outputDir, stage, filename string) {
	dir := filepath.Join(outputDir, stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: creating artifact dir %s: %v", dir, err)
		return
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Printf("Warning: marshaling artifact %s: %v", filename, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, filename), payload, 0644); err != nil {
		log.Printf("Warning: writing artifact %s: %v", filename, err)
	}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
var multiDashRe = regexp.MustCompile(`-+`)

// sanitizeTopic converts a topic into a filesystem-safe slug.
func sanitizeTopic(topic string) string {
	slug := strings.ToLower(topic)
	slug = nonAlnumRe.ReplaceAllString(slug, "-")
	slug = multiDashRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		return "topic"
	}
	return slug
}

// stripCodeFences removes a surrounding markdown code fence from LLM
// output, if present.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Built-in stage prompts used until a content type provides its own.
const defaultExtractPrompt = `You extract reusable AI prompts from source articles.
Return a JSON array of objects with "title" and "text" fields.
Extract at most 2 high-quality prompts per article. Return [] when the
article contains none. Respond with JSON only.`

const defaultGeneratePrompt = `You write WordPress-ready articles from collected AI prompts.
Return a JSON object with "title", "content" (HTML) and "excerpt" fields.
The article must present each prompt with context and usage guidance.
Respond with JSON only.`

const defaultEditorialPrompt = `You are an editor. Improve clarity, fix grammar and remove
repetition in the draft article without changing its structure.
Return a JSON object with "title", "content" (HTML) and "excerpt" fields.
Respond with JSON only.`
