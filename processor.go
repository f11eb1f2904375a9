package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// Pipeline runs the full single-topic content pipeline: search, scrape,
// score, extract, generate, edit and optionally publish. It either
// succeeds or returns an error; the orchestrator observes no partial
// result.
type Pipeline interface {
	Run(ctx context.Context, topic string, modelOverrides map[string]string, publish bool) error
}

// BatchOptions configures one BatchProcessor run.
type BatchOptions struct {
	TopicsFile      string
	ContentType     string
	ModelOverrides  map[string]string
	Resume          bool
	SkipPublication bool
}

// BatchProcessor drives the content pipeline across a list of topics,
// strictly one at a time, with crash-resumable progress, a PID lock per
// content type and a publication gate between topics.
type BatchProcessor struct {
	topicsFile      string
	contentType     string
	modelOverrides  map[string]string
	resume          bool
	skipPublication bool

	store    *ProgressStore
	lock     *LockManager
	verifier PublicationVerifier
	monitor  *MemoryMonitor
	pipeline Pipeline

	maxRetries        int
	maxTopicTimeout   time.Duration
	verifyTimeout     time.Duration
	retryDelay        time.Duration
	topicPause        time.Duration
	verifyPublication bool

	progress *BatchProgress
}

// NewBatchProcessor validates the content type and topics file and
// wires the session's collaborators.
func NewBatchProcessor(opts BatchOptions, settings *Settings, pipeline Pipeline, verifier PublicationVerifier) (*BatchProcessor, error) {
	typeCfg, ok := settings.ContentTypes[opts.ContentType]
	if !ok {
		return nil, &ConfigurationError{Reason: "unknown content type: " + opts.ContentType}
	}
	if _, err := os.Stat(opts.TopicsFile); err != nil {
		return nil, &ConfigurationError{Reason: "topics file not found: " + opts.TopicsFile, Err: err}
	}
	if err := ensurePromptsFolderExists(typeCfg); err != nil {
		return nil, err
	}

	batch := settings.Batch
	return &BatchProcessor{
		topicsFile:      opts.TopicsFile,
		contentType:     opts.ContentType,
		modelOverrides:  opts.ModelOverrides,
		resume:          opts.Resume,
		skipPublication: opts.SkipPublication,

		store:    NewProgressStore(progressFilePath(opts.ContentType)),
		lock:     NewLockManager(lockFilePath(opts.ContentType)),
		verifier: verifier,
		monitor:  NewMemoryMonitor(float64(batch.MaxMemoryMB), batch.MemoryCheckInterval(), batch.EnableMemoryMonitoring),
		pipeline: pipeline,

		maxRetries:        batch.RetryFailedTopics,
		maxTopicTimeout:   batch.MaxTopicTimeout(),
		verifyTimeout:     batch.WordPressTimeout(),
		retryDelay:        batch.RetryDelay(),
		topicPause:        batch.TopicPause(),
		verifyPublication: batch.VerifyPublication,
	}, nil
}

// Run processes every pending topic sequentially. Topic N+1 never
// starts before topic N reached a terminal state and progress was
// persisted. The context is consulted only between topics; a running
// topic always finishes (or times out) first. Returns true when the
// session ends with no failed topics.
func (bp *BatchProcessor) Run(ctx context.Context) (bool, error) {
	if bp.lock.IsLocked() {
		log.Printf("✗ Batch processing already running for %s", bp.contentType)
		return false, ErrBatchRunning
	}
	if err := bp.lock.Acquire(); err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	defer bp.cleanup()

	topics, err := loadTopics(bp.topicsFile)
	if err != nil {
		return false, err
	}

	if bp.resume {
		bp.progress = bp.store.Load(bp.contentType, bp.topicsFile, topics)
		log.Printf("Resuming previous batch session: %d/%d already completed",
			len(bp.progress.CompletedTopics), bp.progress.TotalTopics)
	} else {
		bp.progress = bp.store.Initialize(bp.contentType, bp.topicsFile, topics)
		log.Printf("Starting new batch session for %d topics", len(topics))
	}

	sessionStart := time.Now()
	pending := bp.store.PendingTopics(bp.progress, topics, bp.maxRetries)
	if len(pending) == 0 {
		log.Printf("No pending topics found. Batch processing complete!")
		return len(bp.progress.FailedTopics) == 0, nil
	}
	log.Printf("Processing %d pending topics...", len(pending))

	for _, topic := range pending {
		if ctx.Err() != nil {
			log.Printf("Shutdown requested, stopping batch processing...")
			break
		}

		if err := bp.monitor.Check(); err != nil {
			bp.logFinalStatistics()
			bp.writeSessionStats(sessionStart)
			return false, err
		}

		success := bp.processTopic(ctx, topic)
		bp.updateProgress(topic, success)
		bp.monitor.Cleanup()

		if err := bp.store.Save(bp.progress); err != nil {
			log.Printf("Warning: failed to save progress: %v", err)
		}

		// Pause between topics for stability.
		if ctx.Err() == nil {
			sleepWithContext(ctx, bp.topicPause)
		}
	}

	bp.logFinalStatistics()
	bp.writeSessionStats(sessionStart)
	return len(bp.progress.FailedTopics) == 0, nil
}

// processTopic drives one topic through the state machine with a
// bounded retry loop. Each attempt runs the pipeline under the topic
// deadline and, when enabled, the publication gate. Returns true when
// the topic completed.
func (bp *BatchProcessor) processTopic(ctx context.Context, topic string) bool {
	for {
		status := bp.beginAttempt(topic)
		log.Printf("📝 Starting topic: %q (attempt %d/%d)", topic, status.Attempts, bp.maxRetries)

		err := bp.runAttempt(topic, status)
		now := time.Now()
		status.EndTime = &now

		if err == nil {
			status.Status = TopicCompleted
			log.Printf("✓ Topic completed: %q", topic)
			return true
		}

		status.Status = TopicFailed
		status.ErrorMessage = err.Error()
		log.Printf("✗ Topic failed: %q - %v", topic, err)

		if status.Attempts >= bp.maxRetries {
			log.Printf("✗ Topic %q failed permanently after %d attempts", topic, status.Attempts)
			return false
		}

		status.Status = TopicPending
		log.Printf("↻ Will retry topic %q (attempt %d/%d)", topic, status.Attempts, bp.maxRetries)
		if !sleepWithContext(ctx, bp.retryDelay) {
			// Shutdown during the retry delay: the topic stays failed
			// with budget left and re-enters the pending set on resume.
			status.Status = TopicFailed
			return false
		}
	}
}

// beginAttempt transitions a topic to processing and increments its
// attempt counter.
func (bp *BatchProcessor) beginAttempt(topic string) *TopicStatus {
	status, ok := bp.progress.TopicStatuses[topic]
	if !ok {
		status = &TopicStatus{Topic: topic, Status: TopicPending}
		bp.progress.TopicStatuses[topic] = status
	}
	status.Status = TopicProcessing
	status.Attempts++
	now := time.Now()
	status.StartTime = &now
	status.EndTime = nil
	status.ErrorMessage = ""
	bp.progress.CurrentTopic = &topic
	return status
}

// runAttempt executes the pipeline under the topic deadline, then the
// publication gate. The deadline context is deliberately detached from
// the session's cancellation: a termination signal never aborts the
// in-flight topic, only the timeout does.
func (bp *BatchProcessor) runAttempt(topic string, status *TopicStatus) error {
	pipelineCtx, cancel := context.WithTimeout(context.Background(), bp.maxTopicTimeout)
	defer cancel()

	log.Printf("→ Executing pipeline for: %s", topic)
	done := make(chan error, 1)
	go func() {
		done <- bp.pipeline.Run(pipelineCtx, topic, bp.modelOverrides, !bp.skipPublication)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &TopicProcessingError{Topic: topic, Err: err}
		}
	case <-pipelineCtx.Done():
		log.Printf("⏰ Topic %q timed out after %s", topic, bp.maxTopicTimeout)
		return &TopicProcessingError{Topic: topic, Err: fmt.Errorf("processing timeout after %s", bp.maxTopicTimeout)}
	}

	if !bp.skipPublication && bp.verifyPublication {
		log.Printf("→ Verifying WordPress publication for: %s", topic)
		verifyCtx, cancel := context.WithTimeout(context.Background(), bp.verifyTimeout)
		defer cancel()

		result := bp.verifier.VerifyPublication(verifyCtx, topic)
		switch result.Status {
		case VerificationPublished:
			status.PublishedID = result.PostID
			status.PublishedURL = result.PostURL
			log.Printf("✓ WordPress publication verified for: %s", topic)
		case VerificationSkipped:
			// No credentials configured: verification is a policy
			// toggle, not an unconditional requirement.
		default:
			return &PublicationError{Topic: topic, Reason: "article not found in WordPress"}
		}
	}

	return nil
}

// updateProgress records a topic's terminal outcome. A successful
// re-attempt removes the topic from the failed set, keeping the
// completed and failed sets disjoint.
func (bp *BatchProcessor) updateProgress(topic string, success bool) {
	if success {
		bp.progress.CompletedTopics = appendUnique(bp.progress.CompletedTopics, topic)
		bp.progress.FailedTopics = removeString(bp.progress.FailedTopics, topic)
	} else {
		bp.progress.FailedTopics = appendUnique(bp.progress.FailedTopics, topic)
		// Only terminal failures reach the failed-topics log. A failure
		// with retry budget left re-enters the pending set on resume.
		if status := bp.progress.TopicStatuses[topic]; status != nil && status.Attempts >= bp.maxRetries {
			bp.appendFailedTopicLog(topic)
		}
	}
	bp.progress.CurrentTopic = nil
	bp.progress.LastUpdateTime = time.Now()
}

// cleanup persists final progress, releases the lock and frees memory.
func (bp *BatchProcessor) cleanup() {
	if bp.progress != nil {
		if err := bp.store.Save(bp.progress); err != nil {
			log.Printf("Warning: failed to save final progress: %v", err)
		}
	}
	bp.lock.Release()
	bp.monitor.Cleanup()
}

// logFinalStatistics reports counts, per-failure messages and durations
// for the session.
func (bp *BatchProcessor) logFinalStatistics() {
	if bp.progress == nil {
		return
	}
	total := bp.progress.TotalTopics
	completed := len(bp.progress.CompletedTopics)
	failed := len(bp.progress.FailedTopics)

	log.Printf("📊 Batch Processing Statistics:")
	log.Printf("   Total topics: %d", total)
	if total > 0 {
		log.Printf("   Completed: %d (%.1f%%)", completed, float64(completed)/float64(total)*100)
		log.Printf("   Failed: %d (%.1f%%)", failed, float64(failed)/float64(total)*100)
	}

	if failed > 0 {
		log.Printf("✗ Failed topics:")
		for _, topic := range bp.progress.FailedTopics {
			if status := bp.progress.TopicStatuses[topic]; status != nil && status.ErrorMessage != "" {
				log.Printf("   - %s: %s", topic, status.ErrorMessage)
			} else {
				log.Printf("   - %s", topic)
			}
		}
	}

	totalDuration := time.Since(bp.progress.StartTime)
	log.Printf("⏱ Total duration: %s", totalDuration.Round(time.Second))
	if completed > 0 {
		log.Printf("📈 Average time per topic: %s", (totalDuration / time.Duration(completed)).Round(time.Second))
	}
}

// sessionStats is the per-session record written to batch_stats.json.
type sessionStats struct {
	SessionID       string    `json:"session_id"`
	ContentType     string    `json:"content_type"`
	TotalTopics     int       `json:"total_topics"`
	Completed       int       `json:"completed"`
	Failed          int       `json:"failed"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func (bp *BatchProcessor) writeSessionStats(sessionStart time.Time) {
	if bp.progress == nil {
		return
	}
	now := time.Now()
	stats := sessionStats{
		SessionID:       uuid.NewString(),
		ContentType:     bp.contentType,
		TotalTopics:     bp.progress.TotalTopics,
		Completed:       len(bp.progress.CompletedTopics),
		Failed:          len(bp.progress.FailedTopics),
		StartTime:       sessionStart,
		EndTime:         now,
		DurationSeconds: now.Sub(sessionStart).Seconds(),
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(sessionStatsPath, data, 0644); err != nil {
		log.Printf("Warning: writing session stats: %v", err)
	}
}

// appendFailedTopicLog appends a terminal failure to the failed-topics
// log.
func (bp *BatchProcessor) appendFailedTopicLog(topic string) {
	f, err := os.OpenFile(failedTopicsLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("Warning: opening failed-topics log: %v", err)
		return
	}
	defer f.Close()

	message := ""
	if status := bp.progress.TopicStatuses[topic]; status != nil {
		message = status.ErrorMessage
	}
	fmt.Fprintf(f, "%s\t%s\t%s\n", time.Now().Format(time.RFC3339), topic, message)
}

// sleepWithContext pauses for d unless ctx is cancelled first. Returns
// false when interrupted.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func removeString(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
