// resetfailed moves terminally failed topics in a batch progress file
// back to pending so a resumed session picks them up again.
//
// Usage: resetfailed [-clear-attempts] <progress-file> [topic ...]
//
// With no topics listed, every failed topic is reset. Attempts are
// preserved by default; -clear-attempts restarts the retry budget.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

type topicStatus struct {
	Topic        string     `json:"topic"`
	Status       string     `json:"status"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
	PublishedID  int        `json:"published_id,omitempty"`
	PublishedURL string     `json:"published_url,omitempty"`
}

type batchProgress struct {
	ContentType     string                  `json:"content_type"`
	TopicsFile      string                  `json:"topics_file"`
	TotalTopics     int                     `json:"total_topics"`
	CompletedTopics []string                `json:"completed_topics"`
	FailedTopics    []string                `json:"failed_topics"`
	CurrentTopic    *string                 `json:"current_topic"`
	StartTime       time.Time               `json:"start_time"`
	LastUpdateTime  time.Time               `json:"last_update_time"`
	TopicStatuses   map[string]*topicStatus `json:"topic_statuses"`
}

func main() {
	clearAttempts := flag.Bool("clear-attempts", false, "reset the attempt counter along with the status")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: resetfailed [-clear-attempts] <progress-file> [topic ...]")
	}
	progressFile := flag.Arg(0)
	topics := flag.Args()[1:]

	data, err := os.ReadFile(progressFile)
	if err != nil {
		log.Fatalf("Reading progress file: %v", err)
	}

	var progress batchProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		log.Fatalf("Parsing progress file: %v", err)
	}

	selected := make(map[string]bool, len(topics))
	for _, topic := range topics {
		selected[topic] = true
	}

	reset := 0
	var remaining []string
	for _, topic := range progress.FailedTopics {
		if len(selected) > 0 && !selected[topic] {
			remaining = append(remaining, topic)
			continue
		}
		status := progress.TopicStatuses[topic]
		if status == nil {
			status = &topicStatus{Topic: topic}
			progress.TopicStatuses[topic] = status
		}
		status.Status = "pending"
		status.ErrorMessage = ""
		status.EndTime = nil
		if *clearAttempts {
			status.Attempts = 0
		}
		reset++
	}
	if remaining == nil {
		remaining = []string{}
	}
	progress.FailedTopics = remaining
	progress.LastUpdateTime = time.Now()

	out, err := json.MarshalIndent(&progress, "", "  ")
	if err != nil {
		log.Fatalf("Marshaling progress: %v", err)
	}

	tmp := progressFile + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		log.Fatalf("Writing progress file: %v", err)
	}
	if err := os.Rename(tmp, progressFile); err != nil {
		log.Fatalf("Replacing progress file: %v", err)
	}

	fmt.Printf("Reset %d failed topics in %s\n", reset, progressFile)
}
