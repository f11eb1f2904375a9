package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	contentType     string
	resumeRun       bool
	skipPublication bool
	extractModel    string
	generateModel   string
	editorialModel  string
	apiKey          string
	debugMode       bool
)

var rootCmd = &cobra.Command{
	Use:   "batch-writer [topics-file]",
	Short: "Sequential batch article generation with resumable progress",
	Long: `Drives the single-topic content pipeline across a list of topics,
one at a time, with crash-resumable progress, per-content-type locking
and WordPress publication verification between topics.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runBatch(args))
	},
}

func init() {
	rootCmd.Flags().StringVar(&contentType, "content-type", "prompt_collection", "Content type to process")
	rootCmd.Flags().BoolVar(&resumeRun, "resume", false, "Resume a previous batch session")
	rootCmd.Flags().BoolVar(&skipPublication, "skip-publication", false, "Skip WordPress publication and verification")
	rootCmd.Flags().StringVar(&extractModel, "extract-model", "", "Override the extraction model")
	rootCmd.Flags().StringVar(&generateModel, "generate-model", "", "Override the generation model")
	rootCmd.Flags().StringVar(&editorialModel, "editorial-model", "", "Override the editorial review model")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "Anthropic API key")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

// runBatch wires the session and maps its outcome to an exit code:
// 0 on full success, 1 on failures or fatal errors, 130 when stopped
// by an interrupt.
func runBatch(args []string) int {
	// Optional .env with WordPress and search provider credentials.
	_ = godotenv.Load()

	if debugMode {
		SetDebugMode(true)
	}

	if err := ensureConfigExists(); err != nil {
		log.Printf("✗ %v", err)
		return 1
	}
	settings, err := loadSettings()
	if err != nil {
		log.Printf("✗ %v", err)
		return 1
	}

	typeCfg, ok := settings.ContentTypes[contentType]
	if !ok {
		log.Printf("✗ Unknown content type: %s", contentType)
		return 1
	}

	topicsFile := typeCfg.DefaultTopicsFile
	if len(args) > 0 {
		topicsFile = args[0]
	}

	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		log.Printf("✗ API key required: use --api-key flag or ANTHROPIC_API_KEY environment variable")
		return 1
	}

	overrides := map[string]string{}
	if extractModel != "" {
		overrides[OverrideExtract] = extractModel
	}
	if generateModel != "" {
		overrides[OverrideGenerate] = generateModel
	}
	if editorialModel != "" {
		overrides[OverrideEditorial] = editorialModel
	}

	wordpress := NewWordPressClient(settings.Batch.WordPressTimeout())
	if !skipPublication && wordpress.HasCredentials() {
		connCtx, cancel := context.WithTimeout(context.Background(), settings.Batch.WordPressTimeout())
		if err := wordpress.TestConnection(connCtx); err != nil {
			log.Printf("⚠ WordPress connection check failed: %v", err)
		}
		cancel()
	}
	fetcher := NewSourceFetcher(&http.Client{Timeout: 60 * time.Second}, settings.Batch.MaxConcurrentRequests)
	pipeline := NewArticlePipeline(apiKey, settings, typeCfg, fetcher, wordpress)

	processor, err := NewBatchProcessor(BatchOptions{
		TopicsFile:      topicsFile,
		ContentType:     contentType,
		ModelOverrides:  overrides,
		Resume:          resumeRun,
		SkipPublication: skipPublication,
	}, settings, pipeline, wordpress)
	if err != nil {
		log.Printf("✗ %v", err)
		return 1
	}

	// The signal handler's only job is to cancel this context; the
	// orchestrator consults it between topics.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	success, err := processor.Run(ctx)
	if ctx.Err() != nil {
		log.Printf("🛑 Batch processing interrupted")
		return 130
	}
	if err != nil {
		if errors.Is(err, ErrBatchRunning) {
			return 1
		}
		log.Printf("✗ Batch processing failed: %v", err)
		return 1
	}
	if !success {
		log.Printf("✗ Batch processing completed with errors")
		return 1
	}
	log.Printf("✓ Batch processing completed successfully")
	return 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
